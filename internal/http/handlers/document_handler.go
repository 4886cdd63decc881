// Document HTTP handlers.
//
// This file exposes REST endpoints for the document corpus:
//   - POST   /documents       (upload and index a file)
//   - GET    /documents       (list indexed documents, ETag support)
//   - DELETE /documents/{id}  (remove a document and its chunks)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/domain"
	"github.com/docuchat/rag-backend/internal/http/middleware"
	"github.com/docuchat/rag-backend/internal/llm"
	"github.com/docuchat/rag-backend/internal/repo"
	"github.com/docuchat/rag-backend/internal/segment"
	"github.com/docuchat/rag-backend/internal/services"
	"github.com/docuchat/rag-backend/internal/vectorstore"
)

//
// Service contracts (context-aware)
//

// DocumentService defines document lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DocumentService interface {
	// Upload ingests one file and returns the document plus chunk count.
	Upload(ctx context.Context, filename string, content []byte) (*domain.Document, int, error)
	// List returns all indexed documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)
	// Delete removes a document and its chunks.
	Delete(ctx context.Context, id int64) error
}

// QueryService defines question answering over the corpus.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type QueryService interface {
	// Ask answers a question within a session and records the turn.
	Ask(ctx context.Context, sessionID, question, model string) (*domain.ChatTurn, error)
	// History replays a session's turns as chat messages, oldest first.
	History(ctx context.Context, sessionID string) ([]llm.Message, error)
}

// FeedbackService defines operations to capture feedback on answered turns.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type FeedbackService interface {
	// Leave submits a feedback value (-1 or 1) for turnID.
	Leave(ctx context.Context, turnID int64, value int) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for documents, queries, and feedback.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	docSvc   DocumentService
	querySvc QueryService
	fbSvc    FeedbackService

	// MaxUploadBytes caps accepted file sizes. Zero disables the cap.
	MaxUploadBytes int64

	// IdempotencyTTL bounds how long stored query replays stay valid.
	// Zero falls back to 24 hours.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(docSvc DocumentService, querySvc QueryService, fbSvc FeedbackService) *Handlers {
	return &Handlers{docSvc: docSvc, querySvc: querySvc, fbSvc: fbSvc}
}

//
// DTOs
//

// UploadDocumentResponse is the JSON envelope for a successfully indexed file.
type UploadDocumentResponse struct {
	ID       int64  `json:"id" example:"7"`
	Filename string `json:"filename" example:"survey-2025.pdf"`
	Chunks   int    `json:"chunks" example:"12"`
}

// ListDocumentsResponse wraps the indexed documents.
type ListDocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}

//
// Handlers
//

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload and index a document
// @Description Accepts a PDF, DOC/DOCX, or HTML file, extracts and chunks its text,
// @Description and indexes every chunk for retrieval. The file is sent as multipart
// @Description form data under the "file" field.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file  formData  file  true  "Document file (pdf, doc, docx, html)"
//
// @Success     201  {object}  handlers.UploadDocumentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or unreadable file"
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported format"
// @Failure     422  {object}  handlers.ErrorResponse  "No extractable text"
// @Failure     500  {object}  handlers.ErrorResponse  "Indexing failed"
// @Router      /documents [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart "file" field required`)
		return
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadLarge,
			fmt.Sprintf("file too large: max %d bytes", h.MaxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}

	doc, chunks, err := h.docSvc.Upload(c.Request.Context(), fh.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, segment.ErrUnsupportedFormat):
			fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFormat,
				"file format not supported: use pdf, doc/docx, or html")
		case errors.Is(err, services.ErrEmptyDocument):
			fail(c, http.StatusUnprocessableEntity, ErrCodeEmptyDocument,
				"document contains no extractable text")
		case errors.Is(err, vectorstore.ErrIndexFailure):
			fail(c, http.StatusInternalServerError, ErrCodeIndexFailed, "failed to index document")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		}
		return
	}

	middleware.ObserveDocumentIndexed(chunks)
	ok(c, http.StatusCreated, UploadDocumentResponse{
		ID:       doc.ID,
		Filename: doc.Filename,
		Chunks:   chunks,
	})
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List indexed documents
// @Description Returns all documents in the corpus, newest first. Supports weak ETag
// @Description via If-None-Match and may return 304.
// @Tags        Documents
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object} handlers.ListDocumentsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.docSvc.(*services.DocumentService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.DocumentsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"documents:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	docs, err := h.docSvc.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	ok(c, http.StatusOK, ListDocumentsResponse{Documents: docs})
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Removes the document's chunks from the index and its metadata row.
// @Tags        Documents
// @Produce     json
//
// @Param       id  path  int  true  "Document ID"  example(7)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid document id"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a positive integer")
		return
	}

	if err := h.docSvc.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrDocumentNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
		case errors.Is(err, vectorstore.ErrNotIndexed):
			fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed,
				"document has no indexed chunks; metadata left in place")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		}
		return
	}

	noContent(c)
}
