package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/docuchat/rag-backend/internal/vectorstore"
)

type fakeSearcher struct {
	gotQuery string
	gotK     int
	hits     []vectorstore.SearchResult
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	f.gotQuery, f.gotK = query, k
	return f.hits, f.err
}

func TestNew_DefaultTopK(t *testing.T) {
	r := New(&fakeSearcher{}, 0)
	if r.TopK() != DefaultTopK {
		t.Fatalf("expected default top-k %d, got %d", DefaultTopK, r.TopK())
	}
}

func TestRetrieve_StripsScoresKeepsOrder(t *testing.T) {
	fs := &fakeSearcher{hits: []vectorstore.SearchResult{
		{Content: "first", Score: 0.9, DocumentID: 1},
		{Content: "second", Score: 0.5, DocumentID: 2},
	}}
	r := New(fs, 4)

	texts, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if fs.gotQuery != "q" || fs.gotK != 4 {
		t.Fatalf("search called with (%q, %d)", fs.gotQuery, fs.gotK)
	}
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}

func TestRetrieve_PropagatesError(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("down")}
	if _, err := New(fs, 1).Retrieve(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	texts, err := New(&fakeSearcher{}, 2).Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(texts) != 0 {
		t.Fatalf("expected no texts, got %v", texts)
	}
}

func TestRetrieve_LexicalFallbackOnSearchError(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("embedder down")}
	src := func(context.Context) ([]string, error) {
		return []string{
			"retries happen nightly for failed invoices",
			"gardening tips for spring",
		}, nil
	}
	r := New(fs, 1, WithLexicalFallback(src))

	texts, err := r.Retrieve(context.Background(), "failed invoices retries")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(texts) != 1 || texts[0] != "retries happen nightly for failed invoices" {
		t.Fatalf("unexpected fallback texts: %v", texts)
	}
}

func TestRetrieve_FallbackSourceErrorSurfacesSearchError(t *testing.T) {
	searchErr := errors.New("embedder down")
	fs := &fakeSearcher{err: searchErr}
	src := func(context.Context) ([]string, error) { return nil, errors.New("db down too") }

	_, err := New(fs, 2, WithLexicalFallback(src)).Retrieve(context.Background(), "q")
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected original search error, got %v", err)
	}
}
