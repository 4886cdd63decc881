// Query HTTP handlers.
//
// This file exposes REST endpoints for conversational question answering:
//   - POST /query                  (answer a question, optionally within a session)
//   - GET  /sessions/{id}/turns    (list a session's recorded exchanges)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (QueryService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header along with a session_id and
// a previous successful result exists for (session, key), the handler returns
// that recorded turn and sets `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/chain"
	"github.com/docuchat/rag-backend/internal/domain"
	"github.com/docuchat/rag-backend/internal/http/middleware"
	"github.com/docuchat/rag-backend/internal/repo"
	"github.com/docuchat/rag-backend/internal/services"
	"github.com/docuchat/rag-backend/internal/utils"
	"github.com/docuchat/rag-backend/internal/vectorstore"
)

//
// DTOs
//

// QueryRequest is the JSON payload for asking a question.
//
// Question is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// a maximum rune count, which can be configured in QueryService.
type QueryRequest struct {
	// Question is the user's question. It must be non-empty.
	Question string `json:"question" binding:"required,min=1" example:"What does the report say about retention?"`
	// SessionID continues an existing conversation; omit to start a new one.
	SessionID string `json:"session_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Model optionally overrides the configured default generation model.
	Model string `json:"model,omitempty" example:"gpt-4o-mini"`
}

// QueryResponse is the JSON envelope for an answered question.
type QueryResponse struct {
	// TurnID identifies the recorded exchange (used for feedback).
	TurnID int64 `json:"turn_id" example:"42"`
	// SessionID identifies the conversation; echo it back to continue.
	SessionID string `json:"session_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Answer is the grounded reply.
	Answer string `json:"answer"`
	// Model is the generation model that produced the answer.
	Model string `json:"model" example:"gpt-4o-mini"`
}

// ListTurnsResponse contains a session's recorded exchanges, oldest first.
type ListTurnsResponse struct {
	SessionID string            `json:"session_id"`
	Turns     []domain.ChatTurn `json:"turns"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeQuestion normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeQuestion(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxQuestionRunes inspects the concrete QueryService for a configured
// question-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxQuestionRunes(querySvc QueryService) int {
	const fallback = 4000
	if qs, okSvc := querySvc.(*services.QueryService); okSvc {
		if qs.MaxQuestionRunes > 0 {
			return qs.MaxQuestionRunes
		}
	}
	return fallback
}

// getIdempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// Idempotency-Key header directly when the validator is not installed.
func getIdempotencyKey(c *gin.Context) (string, bool) {
	if v := middleware.GetIdempotencyKey(c); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

//
// Handlers
//

// Query godoc
// @ID          query
// @Summary     Ask a question about the indexed documents
// @Description Answers the question using retrieval over the indexed corpus. When a
// @Description session_id is supplied, the session's past exchanges condition the
// @Description answer; otherwise a new session is started and its id returned.
// @Description Supports idempotency via the Idempotency-Key header (same session and
// @Description key → same recorded turn).
// @Tags        Query
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.QueryRequest  true  "Question payload"
//
// @Success     200  {object}  handlers.QueryResponse        "Grounded answer"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse        "Retrieval failed"
// @Failure     502  {object}  handlers.ErrorResponse        "Generation unavailable"
// @Router      /query [post]
func (h *Handlers) Query(c *gin.Context) {
	ctx := c.Request.Context()

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	question := sanitizeQuestion(req.Question)
	maxRunes := discoverMaxQuestionRunes(h.querySvc)
	if maxRunes > 0 && utf8.RuneCountInString(question) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("question too long: max %d runes", maxRunes))
		return
	}
	if question == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)

	// Idempotency (replay path) – only meaningful with an explicit session.
	idemKey, _ := getIdempotencyKey(c)
	if idemKey != "" && sessionID != "" {
		if svc, okSvc := h.querySvc.(*services.QueryService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetTurn(ctx, svc.DB, rec.TurnID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, QueryResponse{
						TurnID:    prev.ID,
						SessionID: prev.SessionID,
						Answer:    prev.Answer,
						Model:     prev.Model,
					})
					return
				}
			}
		}
	}

	// Normal processing (service has a second guard for length).
	turn, err := h.querySvc.Ask(ctx, sessionID, question, strings.TrimSpace(req.Model))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyQuestion):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("question too long: max %d runes", maxRunes))
		case errors.Is(err, chain.ErrGenerationUnavailable):
			fail(c, http.StatusBadGateway, ErrCodeGenerationUnavailable, "generation service unavailable")
		case errors.Is(err, vectorstore.ErrIndexFailure):
			fail(c, http.StatusInternalServerError, ErrCodeIndexFailed, "retrieval failed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.querySvc.(*services.QueryService); okSvc && svc.DB != nil {
			ttl := h.IdempotencyTTL
			if ttl <= 0 {
				ttl = 24 * time.Hour
			}
			_, _ = repo.CreateIdempotency(ctx, svc.DB, turn.SessionID, idemKey, turn.ID, http.StatusOK, ttl)
		}
	}

	middleware.ObserveQueryAnswered()
	ok(c, http.StatusOK, QueryResponse{
		TurnID:    turn.ID,
		SessionID: turn.SessionID,
		Answer:    turn.Answer,
		Model:     turn.Model,
	})
}

// ListSessionTurns godoc
// @ID          listSessionTurns
// @Summary     List a session's exchanges
// @Description Returns the recorded question/answer turns for a session, oldest first.
// @Description Supports weak ETag via If-None-Match and may return 304. Unknown
// @Description sessions yield an empty list.
// @Tags        Query
// @Produce     json
//
// @Param       id             path    string  true  "Session ID (UUID)"  format(uuid)
// @Param       limit          query   int     false "Return only the most recent N turns"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListTurnsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id}/turns [get]
func (h *Handlers) ListSessionTurns(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.querySvc.(*services.QueryService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.TurnsStats(ctx, db, sessionID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"turns:%s:%d:%d:%d"`, sessionID, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}

		turns, err := repo.ListTurns(ctx, db, sessionID)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		if turns == nil {
			turns = []domain.ChatTurn{}
		}
		// A positive limit keeps only the tail (most recent turns), still
		// oldest first within the window.
		if limit > 0 && len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
		ok(c, http.StatusOK, ListTurnsResponse{SessionID: sessionID, Turns: turns})
		return
	}

	fail(c, http.StatusInternalServerError, ErrCodeInternal, "query service unavailable")
}
