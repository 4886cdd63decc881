// Package services – QueryService
//
// This file implements QueryService, which answers questions against the
// indexed corpus while threading per-session conversation history through the
// generation chain. It validates the question, resolves or mints the session
// identifier, replays the session's past turns as chat history, and records
// the completed exchange.
//
// The turn is appended only after an answer was produced: a failed generation
// leaves the session log untouched, so retries see the same history the
// failed attempt saw.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include session identifiers and history sizes.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/domain"
	"github.com/docuchat/rag-backend/internal/llm"
	"github.com/docuchat/rag-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Answerer is the generation-chain contract required by QueryService.
type Answerer interface {
	Answer(ctx context.Context, model, question string, history []llm.Message) (string, error)
}

// QueryService coordinates history replay, retrieval-grounded generation,
// and chat-log persistence.
type QueryService struct {
	DB    *gorm.DB
	Chain Answerer

	// DefaultModel is used when a request does not name a model.
	DefaultModel string

	// MaxQuestionRunes caps accepted questions by rune length. Zero disables
	// the cap.
	MaxQuestionRunes int
}

// Ask answers one question within a session.
//
// Semantics:
//   - question must be non-blank (ErrEmptyQuestion) and within the configured
//     length cap (ErrTooLong).
//   - A blank sessionID starts a fresh session: a new UUID is minted and the
//     question is answered with empty history.
//   - A known sessionID replays that session's turns, oldest first, as
//     alternating user/assistant messages.
//   - An unknown non-blank sessionID behaves like a fresh session under the
//     caller's identifier; it is not an error.
//   - model falls back to DefaultModel when blank.
//
// The exchange is persisted only on success; generation and retrieval errors
// propagate unchanged and leave no trace in the log.
func (s *QueryService) Ask(ctx context.Context, sessionID, question, model string) (*domain.ChatTurn, error) {
	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.MaxQuestionRunes > 0 && utf8.RuneCountInString(question) > s.MaxQuestionRunes {
		return nil, ErrTooLong
	}

	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
		span.SetAttributes(attribute.Bool("session.new", true))
	}
	if model == "" {
		model = s.DefaultModel
	}

	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("history.messages", len(history)))

	answer, err := s.Chain.Answer(ctx, model, question, history)
	if err != nil {
		return nil, err
	}

	return repo.AppendTurn(ctx, s.DB, sessionID, question, answer, model)
}

// History replays a session's turns as alternating user/assistant messages,
// oldest exchange first. Unknown sessions yield an empty slice.
func (s *QueryService) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	turns, err := repo.ListTurns(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	msgs := make([]llm.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: roleUser, Content: t.Question},
			llm.Message{Role: roleAssistant, Content: t.Answer},
		)
	}
	return msgs, nil
}
