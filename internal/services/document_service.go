// Package services – DocumentService
//
// This file implements DocumentService, the application-level component that
// owns the document lifecycle: ingesting an uploaded file into the corpus
// (metadata row + vector index entries) and removing it from both stores.
//
// Ingestion sequencing keeps the metadata row and the index in step: the row
// is created first so its generated ID can tag the chunks, and it is removed
// again if indexing fails, so a failed upload leaves no trace. Deletion runs
// index-first for the same reason: a document whose chunks are gone but whose
// row survives is recoverable, the reverse is not.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the document identifier and chunk counts where applicable.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/domain"
	"github.com/docuchat/rag-backend/internal/segment"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DocumentRepo defines the repository contract required by DocumentService.
// Implementations are responsible for persistence of document metadata.
type DocumentRepo interface {
	// CreateDocument inserts a new document row and assigns its ID.
	CreateDocument(ctx context.Context, db *gorm.DB, filename string) (*domain.Document, error)

	// ListDocuments returns all document rows, newest first.
	ListDocuments(ctx context.Context, db *gorm.DB) ([]domain.Document, error)

	// GetDocument fetches a document by ID.
	GetDocument(ctx context.Context, db *gorm.DB, id int64) (*domain.Document, error)

	// DeleteDocument hard-deletes a document row.
	DeleteDocument(ctx context.Context, db *gorm.DB, id int64) error
}

// Indexer defines the vector-index contract required by DocumentService.
type Indexer interface {
	// Add embeds and persists all chunks for the document, all-or-nothing.
	Add(ctx context.Context, docID int64, chunks []string) error

	// Delete removes every chunk of the document.
	Delete(ctx context.Context, docID int64) error
}

// DocumentService coordinates document metadata and the vector index.
type DocumentService struct {
	DB        *gorm.DB
	Repo      DocumentRepo
	Segmenter *segment.Segmenter
	Index     Indexer
}

// NewDocumentService constructs a DocumentService with a default segmenter
// when none is supplied.
func NewDocumentService(db *gorm.DB, r DocumentRepo, idx Indexer, seg *segment.Segmenter) *DocumentService {
	if seg == nil {
		seg = segment.New()
	}
	return &DocumentService{DB: db, Repo: r, Segmenter: seg, Index: idx}
}

// Upload ingests one file into the corpus: it validates the format, extracts
// and chunks the text, creates the metadata row, and indexes every chunk
// under the new document ID.
//
// Sequencing and failure semantics:
//   - Unsupported extensions are rejected before anything is written
//     (segment.ErrUnsupportedFormat).
//   - Files that yield no text after extraction are rejected with
//     ErrEmptyDocument; nothing is written.
//   - If indexing fails after the metadata row was created, the row is
//     deleted again and vectorstore.ErrIndexFailure is returned, so a failed
//     upload is invisible to later listings.
//
// On success it returns the persisted document and the number of chunks
// indexed for it.
func (s *DocumentService) Upload(ctx context.Context, filename string, content []byte) (*domain.Document, int, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(attribute.String("document.filename", filename)),
	)
	defer span.End()

	format, err := segment.DetectFormat(filename)
	if err != nil {
		return nil, 0, err
	}

	chunks, err := s.Segmenter.Segment(content, format)
	if err != nil {
		return nil, 0, err
	}
	if len(chunks) == 0 {
		return nil, 0, ErrEmptyDocument
	}
	span.SetAttributes(attribute.Int("document.chunks", len(chunks)))

	doc, err := s.Repo.CreateDocument(ctx, s.DB, filename)
	if err != nil {
		return nil, 0, err
	}

	if err := s.Index.Add(ctx, doc.ID, chunks); err != nil {
		// Roll the metadata row back so the corpus stays consistent.
		_ = s.Repo.DeleteDocument(ctx, s.DB, doc.ID)
		return nil, 0, err
	}

	return doc, len(chunks), nil
}

// List returns all uploaded documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.Repo.ListDocuments(ctx, s.DB)
}

// Delete removes a document from both stores: chunks first, then the
// metadata row.
//
// The index delete is the gate: the metadata row is only removed after the
// index confirms the chunks are gone. A document whose metadata exists but
// whose chunks were never indexed surfaces vectorstore.ErrNotIndexed and
// both stores are left untouched. Unknown IDs yield ErrDocumentNotFound.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("document.id", id)),
	)
	defer span.End()

	if _, err := s.Repo.GetDocument(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err := s.Index.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.Repo.DeleteDocument(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}
