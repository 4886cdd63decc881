package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docuchat/rag-backend/internal/llm"
)

// scriptedGenerator returns canned outputs in call order and records every
// call's inputs.
type scriptedGenerator struct {
	outputs []string
	err     error
	calls   []genCall
}

type genCall struct {
	model  string
	system string
	msgs   []llm.Message
}

func (g *scriptedGenerator) Generate(_ context.Context, model, system string, msgs []llm.Message) (string, error) {
	g.calls = append(g.calls, genCall{model: model, system: system, msgs: msgs})
	if g.err != nil {
		return "", g.err
	}
	out := ""
	if n := len(g.calls) - 1; n < len(g.outputs) {
		out = g.outputs[n]
	}
	return out, nil
}

type recordingRetriever struct {
	gotQuery string
	chunks   []string
	err      error
}

func (r *recordingRetriever) Retrieve(_ context.Context, query string) ([]string, error) {
	r.gotQuery = query
	return r.chunks, r.err
}

func TestAnswer_EmptyHistory_SkipsReformulation(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"the answer"}}
	ret := &recordingRetriever{chunks: []string{"chunk A", "chunk B"}}
	c := New(gen, ret)

	out, err := c.Answer(context.Background(), "gpt-4o-mini", "what is X", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out != "the answer" {
		t.Fatalf("unexpected answer %q", out)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected exactly one generation call with empty history, got %d", len(gen.calls))
	}
	if ret.gotQuery != "what is X" {
		t.Fatalf("retrieval received %q, want the literal question", ret.gotQuery)
	}
	if !strings.Contains(gen.calls[0].system, "chunk A\n\nchunk B") {
		t.Fatalf("context block missing from system prompt: %q", gen.calls[0].system)
	}
	if gen.calls[0].model != "gpt-4o-mini" {
		t.Fatalf("model not forwarded: %q", gen.calls[0].model)
	}
}

func TestAnswer_WithHistory_RetrievalGetsExpandedQuery(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "tell me about the Raft protocol"},
		{Role: "assistant", Content: "Raft is a consensus protocol."},
	}
	gen := &scriptedGenerator{outputs: []string{"what is the cost of the Raft protocol", "final"}}
	ret := &recordingRetriever{}
	c := New(gen, ret)

	out, err := c.Answer(context.Background(), "m", "what about its cost?", history)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out != "final" {
		t.Fatalf("unexpected answer %q", out)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected two generation calls, got %d", len(gen.calls))
	}
	// Retrieval must see the expanded query, not the literal pronoun form.
	if ret.gotQuery != "what is the cost of the Raft protocol" {
		t.Fatalf("retrieval received %q", ret.gotQuery)
	}
	// The reformulation call carries the fixed instruction, history, and question.
	first := gen.calls[0]
	if !strings.Contains(first.system, "standalone") {
		t.Fatalf("reformulation system prompt unexpected: %q", first.system)
	}
	if len(first.msgs) != 3 || first.msgs[2].Content != "what about its cost?" {
		t.Fatalf("reformulation messages unexpected: %+v", first.msgs)
	}
	// The answer call carries the original question, not the rewrite.
	second := gen.calls[1]
	if second.msgs[len(second.msgs)-1].Content != "what about its cost?" {
		t.Fatalf("final call must carry the original question: %+v", second.msgs)
	}
}

func TestAnswer_EmptyRetrieval_StillGenerates(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"general knowledge answer"}}
	ret := &recordingRetriever{chunks: nil}
	c := New(gen, ret)

	out, err := c.Answer(context.Background(), "m", "q", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if out != "general knowledge answer" {
		t.Fatalf("unexpected answer %q", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(gen.calls[0].system), "Context:") {
		t.Fatalf("expected empty context block, got %q", gen.calls[0].system)
	}
}

func TestAnswer_GeneratorError_ReturnsGenerationUnavailable(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("503")}
	c := New(gen, &recordingRetriever{})

	_, err := c.Answer(context.Background(), "m", "q", nil)
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("chain must not retry, got %d calls", len(gen.calls))
	}
}

func TestAnswer_ReformulationError_NoRetrievalNoAnswer(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("down")}
	ret := &recordingRetriever{}
	c := New(gen, ret)

	_, err := c.Answer(context.Background(), "m", "q", []llm.Message{{Role: "user", Content: "prior"}})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	if ret.gotQuery != "" {
		t.Fatal("retrieval must not run when reformulation fails")
	}
}

func TestAnswer_BlankReformulation_FallsBackToQuestion(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"   ", "done"}}
	ret := &recordingRetriever{}
	c := New(gen, ret)

	if _, err := c.Answer(context.Background(), "m", "original", []llm.Message{{Role: "user", Content: "x"}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ret.gotQuery != "original" {
		t.Fatalf("expected fallback to original question, got %q", ret.gotQuery)
	}
}

func TestAnswer_RetrievalError_Propagates(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"unused"}}
	ret := &recordingRetriever{err: errors.New("index down")}
	c := New(gen, ret)

	if _, err := c.Answer(context.Background(), "m", "q", nil); err == nil {
		t.Fatal("expected retrieval error to propagate")
	}
	if len(gen.calls) != 0 {
		t.Fatal("final generation must not run when retrieval fails")
	}
}
