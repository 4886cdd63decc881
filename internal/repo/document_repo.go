// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a document is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateDocument(ctx, db, filename) -> *domain.Document, error
//     Inserts a new Document row; the generated integer ID tags the
//     document's chunks in the vector index.
//
//   - ListDocuments(ctx, db) -> []domain.Document, error
//     Returns all documents, ordered by creation time descending.
//
//   - GetDocument(ctx, db, id) -> *domain.Document, error
//     Fetches a single document by ID, or ErrNotFound if missing.
//
//   - DeleteDocument(ctx, db, id) -> error
//     Hard-deletes a document row. Returns ErrNotFound when no row matched.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.DocumentService) which keeps the row in step with the
// vector index.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDocument inserts a new Document row with the given filename and a
// UTC timestamp. The database assigns the integer ID.
//
// On success, it returns the persisted Document. On failure, it returns a
// DB error.
func CreateDocument(ctx context.Context, db *gorm.DB, filename string) (*domain.Document, error) {
	d := &domain.Document{
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns all documents, ordered by creation time descending
// (most recent upload first). It returns an empty slice when nothing has been
// uploaded. On DB error, it returns the error.
func ListDocuments(ctx context.Context, db *gorm.DB) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetDocument fetches a single document by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetDocument(ctx context.Context, db *gorm.DB, id int64) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument hard-deletes the document row identified by id. If no rows
// are affected, it returns ErrNotFound. On DB error, the raw error is
// returned.
func DeleteDocument(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
