// Package retriever adapts the vector store's similarity search to the
// fixed top-k contract consumed by the conversational chain. It exists as a
// seam: swapping in re-ranking or recency filtering later only touches this
// package, not the chain.
//
// An optional lexical fallback keeps retrieval alive in degraded mode: when
// vector search fails (typically because the embedding service is down), the
// chunk texts are ranked by keyword overlap instead.
package retriever

import (
	"context"

	"github.com/docuchat/rag-backend/internal/search"
	"github.com/docuchat/rag-backend/internal/vectorstore"
)

// DefaultTopK is the number of chunks handed to the chain per query.
const DefaultTopK = 3

// Searcher is the similarity-search capability required from the index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
}

// ChunkSource supplies all chunk texts for lexical fallback ranking.
type ChunkSource func(ctx context.Context) ([]string, error)

// Retriever returns the texts of the top-k most similar chunks for a query.
type Retriever struct {
	index    Searcher
	topK     int
	fallback ChunkSource
}

// Option configures optional Retriever behavior.
type Option func(*Retriever)

// WithLexicalFallback enables keyword-overlap ranking over src's chunks when
// vector search fails.
func WithLexicalFallback(src ChunkSource) Option {
	return func(r *Retriever) { r.fallback = src }
}

// New constructs a Retriever. A non-positive topK falls back to DefaultTopK.
func New(index Searcher, topK int, opts ...Option) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	r := &Retriever{index: index, topK: topK}
	for _, o := range opts {
		o(r)
	}
	return r
}

// TopK returns the configured number of chunks per retrieval.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve runs a similarity search and strips scores and metadata,
// preserving retrieval order. When vector search fails and a lexical
// fallback is configured, the query is answered from keyword overlap
// instead; the original search error is surfaced only if the fallback
// cannot produce chunks either.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	hits, err := r.index.Search(ctx, query, r.topK)
	if err != nil {
		if r.fallback == nil {
			return nil, err
		}
		chunks, ferr := r.fallback(ctx)
		if ferr != nil {
			return nil, err
		}
		results := search.New(chunks).TopK(query, r.topK)
		texts := make([]string, len(results))
		for i, res := range results {
			texts[i] = res.Content
		}
		return texts, nil
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Content
	}
	return texts, nil
}
