// Package vectorstore implements the persistent vector index: chunk texts
// embedded into vectors, tagged with the owning document id, and searched
// by cosine similarity.
//
// The store is the error-containment boundary of the indexing pipeline. Raw
// embedding-service and storage errors never escape: they are logged here
// and converted to the package sentinels (ErrIndexFailure, ErrNotIndexed)
// so that callers get a plain success/failure signal to drive compensation
// (e.g. rolling back a freshly created document record).
//
// Concurrency: reads and writes go through SQLite with WAL, which gives
// single-writer-at-a-time semantics. Interleaving Add and Delete for the
// same document id is a caller obligation; the store does not lock per
// document.
package vectorstore

import (
	"context"
	"errors"
	"sort"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrIndexFailure indicates an embedding or storage error during an
	// index operation. The underlying cause is logged, not returned.
	ErrIndexFailure = errors.New("vector index failure")

	// ErrNotIndexed is returned by Delete when no record carries the given
	// document id, distinguishing "nothing to delete" from success.
	ErrNotIndexed = errors.New("document not indexed")
)

// Embedder produces a vector representation of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Record is one stored chunk. The auto-incremented ID doubles as the
// stable insertion order used to break similarity ties.
type Record struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	DocumentID int64  `gorm:"not null;index:idx_chunks_document"`
	Content    string `gorm:"type:text;not null"`
	Embedding  []byte `gorm:"type:blob;not null"`
	CreatedAt  time.Time
}

// TableName implements the GORM tabler interface.
func (Record) TableName() string { return "chunks" }

// SearchResult is one similarity hit, highest-similarity results first.
type SearchResult struct {
	Content    string
	Score      float64
	DocumentID int64
}

// Store is a SQLite-backed vector index. Safe for concurrent use.
type Store struct {
	db       *gorm.DB
	embedder Embedder
	log      zerolog.Logger
}

// Open creates or opens the index database at path and migrates its schema.
func Open(path string, embedder Embedder, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return New(db, embedder, log), nil
}

// New wraps an existing GORM handle. The schema must already contain the
// chunks table (see Open).
func New(db *gorm.DB, embedder Embedder, log zerolog.Logger) *Store {
	return &Store{db: db, embedder: embedder, log: log}
}

// Add embeds every chunk text, tags the records with docID, and appends them
// in one transaction. Any embedding or storage error aborts the whole batch:
// a partially indexed document is never left queryable.
func (s *Store) Add(ctx context.Context, docID int64, chunks []string) error {
	records := make([]Record, 0, len(chunks))
	for i, text := range chunks {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.log.Error().Err(err).Int64("document_id", docID).Int("chunk", i).
				Msg("embedding failed during index add")
			return ErrIndexFailure
		}
		records = append(records, Record{
			DocumentID: docID,
			Content:    text,
			Embedding:  encodeVector(vec),
			CreatedAt:  time.Now().UTC(),
		})
	}
	if len(records) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	}); err != nil {
		s.log.Error().Err(err).Int64("document_id", docID).Int("chunks", len(records)).
			Msg("storage failed during index add")
		return ErrIndexFailure
	}
	return nil
}

// Search embeds the query and returns the k nearest records by cosine
// similarity, highest first, ties broken by insertion order. If the index
// holds fewer than k records, all of them are returned.
func (s *Store) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("embedding failed during search")
		return nil, ErrIndexFailure
	}

	var records []Record
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		s.log.Error().Err(err).Msg("storage failed during search")
		return nil, ErrIndexFailure
	}

	results := make([]SearchResult, 0, len(records))
	for _, r := range records {
		results = append(results, SearchResult{
			Content:    r.Content,
			Score:      cosineSimilarity(qvec, decodeVector(r.Embedding)),
			DocumentID: r.DocumentID,
		})
	}
	// Stable sort over the id-ascending slice keeps insertion order on ties.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Exists reports whether at least one record carries docID, without
// retrieving content.
func (s *Store) Exists(ctx context.Context, docID int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Record{}).
		Where("document_id = ?", docID).Count(&n).Error; err != nil {
		s.log.Error().Err(err).Int64("document_id", docID).Msg("storage failed during exists check")
		return false, ErrIndexFailure
	}
	return n > 0, nil
}

// Delete removes every record tagged with docID as one batch. It checks
// existence first so that deleting a never-indexed document fails with
// ErrNotIndexed instead of reporting a no-op as success.
func (s *Store) Delete(ctx context.Context, docID int64) error {
	ok, err := s.Exists(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn().Int64("document_id", docID).Msg("delete requested for unindexed document")
		return ErrNotIndexed
	}

	if err := s.db.WithContext(ctx).
		Where("document_id = ?", docID).Delete(&Record{}).Error; err != nil {
		s.log.Error().Err(err).Int64("document_id", docID).Msg("storage failed during index delete")
		return ErrIndexFailure
	}
	return nil
}

// Texts returns every chunk text in insertion order, without embeddings.
// It feeds the lexical fallback index used when the embedder is down.
func (s *Store) Texts(ctx context.Context) ([]string, error) {
	var texts []string
	if err := s.db.WithContext(ctx).Model(&Record{}).
		Order("id ASC").Pluck("content", &texts).Error; err != nil {
		s.log.Error().Err(err).Msg("storage failed during text scan")
		return nil, ErrIndexFailure
	}
	return texts, nil
}

// Count returns the total number of chunk records in the index.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		s.log.Error().Err(err).Msg("storage failed during count")
		return 0, ErrIndexFailure
	}
	return n, nil
}
