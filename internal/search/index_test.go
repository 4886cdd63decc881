package search

import (
	"testing"
)

func TestNew_SkipsEmptyAndTokenless(t *testing.T) {
	idx := New([]string{"", "   ", "!!! ???", "gophers build services"})
	got := idx.TopK("gophers", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Content != "gophers build services" {
		t.Fatalf("content = %q", got[0].Content)
	}
}

func TestTopK_RanksByJaccard(t *testing.T) {
	idx := New([]string{
		"the billing service retries failed invoices nightly",
		"invoices are stored as immutable ledger rows",
		"gardening tips for the summer season",
	})

	got := idx.TopK("how are failed invoices retried", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Content != "the billing service retries failed invoices nightly" {
		t.Fatalf("best match = %q", got[0].Content)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %v vs %v", got[0].Score, got[1].Score)
	}
}

func TestTopK_DeterministicTieBreaks(t *testing.T) {
	// Same overlap and token count: shorter text wins, then lexicographic.
	idx := New([]string{
		"zz alpha beta",
		"aa alpha beta",
	})
	got := idx.TopK("alpha beta", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Content != "aa alpha beta" {
		t.Fatalf("tie break order wrong: %q first", got[0].Content)
	}
}

func TestTopK_EmptyInputs(t *testing.T) {
	idx := New([]string{"some indexed chunk"})
	if res := idx.TopK("", 3); res != nil {
		t.Fatalf("empty query should yield nil, got %v", res)
	}
	if res := idx.TopK("   ", 3); res != nil {
		t.Fatalf("blank query should yield nil, got %v", res)
	}
	empty := New(nil)
	if res := empty.TopK("anything", 3); res != nil {
		t.Fatalf("empty index should yield nil, got %v", res)
	}
	// Zero-overlap chunks never appear.
	if res := idx.TopK("completely unrelated terms", 3); len(res) != 0 {
		t.Fatalf("expected no results, got %v", res)
	}
}

func TestTopK_DefaultKAndCap(t *testing.T) {
	chunks := []string{
		"alpha one", "alpha two", "alpha three", "alpha four", "alpha five",
	}
	idx := New(chunks)
	if got := idx.TopK("alpha", 0); len(got) != 3 {
		t.Fatalf("k<=0 should default to 3, got %d", len(got))
	}
	if got := idx.TopK("alpha", 100); len(got) != len(chunks) {
		t.Fatalf("k beyond corpus should return all, got %d", len(got))
	}
}

func TestOptions_StopwordsAndLimits(t *testing.T) {
	idx := New(
		[]string{"the cat sat", "a dog ran", "tiny"},
		WithStopwords([]string{"the", "a"}),
		WithMinChunkRunes(6),
	)
	// "tiny" dropped by min length; stopwords removed from token sets.
	got := idx.TopK("the dog", 5)
	if len(got) != 1 || got[0].Content != "a dog ran" {
		t.Fatalf("unexpected results: %v", got)
	}

	capped := New([]string{"alpha one", "alpha two", "alpha three"}, WithMaxChunks(2))
	if got := capped.TopK("alpha", 10); len(got) != 2 {
		t.Fatalf("max chunks cap ignored, got %d", len(got))
	}
}

func TestTokenize_UnicodeAware(t *testing.T) {
	idx := New([]string{"café au lait für alle"})
	got := idx.TopK("CAFÉ FÜR", 1)
	if len(got) != 1 {
		t.Fatalf("expected accent/case-insensitive match, got %v", got)
	}
}
