// Package chain implements the conversational retrieval chain: a two-stage
// pipeline that first rewrites the incoming question into a standalone query
// using the session history, then answers it from retrieved context.
//
// The chain is stateless between invocations. All conversational state is
// passed in by the caller on every call, and the generation model is a
// per-call parameter; nothing is cached across requests.
//
// Observability: Answer is OpenTelemetry-instrumented; spans carry the model
// identifier, history length, and retrieved-chunk count.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docuchat/rag-backend/internal/llm"
)

// ErrGenerationUnavailable indicates that the generation service failed
// during reformulation or final answering. The chain does not retry and
// never substitutes a partial or fabricated answer.
var ErrGenerationUnavailable = errors.New("generation service unavailable")

// contextualizePrompt instructs the model to resolve pronouns and ellipsis
// against the chat history without answering the question.
const contextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone " +
	"question which can be understood without the chat history. Do NOT answer " +
	"the question, just reformulate it if needed and otherwise return it as is."

// answerPromptFormat frames the grounded generation call. The retrieved
// context block is substituted for %s; an empty block is passed through
// unchanged so the model may answer from general knowledge or state that no
// supporting material was found.
const answerPromptFormat = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, say that you don't know. " +
	"Keep the answer concise.\n\nContext:\n%s"

// Generator produces text from a prompt; satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, model, system string, msgs []llm.Message) (string, error)
}

// Retriever supplies context chunks for a standalone query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// Chain orchestrates reformulation, retrieval, and grounded generation.
type Chain struct {
	generator Generator
	retriever Retriever
}

// New constructs a Chain over the given collaborators.
func New(generator Generator, retriever Retriever) *Chain {
	return &Chain{generator: generator, retriever: retriever}
}

// Answer runs one full request/response cycle: rewrite the question against
// history, retrieve supporting chunks for the rewritten query, and generate
// the final answer conditioned on {context, history, original question}.
//
// The two generation calls are sequential dependent stages; the second
// stage's input is built from the first stage's output plus retrieval.
// Zero retrieved chunks do not fail the call: generation proceeds with an
// empty context block.
func (c *Chain) Answer(ctx context.Context, model, question string, history []llm.Message) (string, error) {
	tr := otel.Tracer("chain")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("gen.model", model),
			attribute.Int("history.turns", len(history)),
		),
	)
	defer span.End()

	standalone, err := c.reformulate(ctx, model, question, history)
	if err != nil {
		return "", err
	}

	chunks, err := c.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("retrieval.chunks", len(chunks)))

	system := fmt.Sprintf(answerPromptFormat, strings.Join(chunks, "\n\n"))
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	answer, err := c.generator.Generate(ctx, model, system, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	return strings.TrimSpace(answer), nil
}

// reformulate produces the standalone retrieval query. With no prior turns
// there is nothing to resolve, so the question passes through without a
// generation call.
func (c *Chain) reformulate(ctx context.Context, model, question string, history []llm.Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	out, err := c.generator.Generate(ctx, model, contextualizePrompt, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}
