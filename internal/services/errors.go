// Package services defines the business logic for documents, queries, and
// feedback. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Document-related errors.
var (
	// ErrDocumentNotFound indicates that the requested document does not
	// exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmptyDocument is returned when an uploaded file yields no text
	// after extraction, so there is nothing to index.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrEmptyQuestion is returned when a query request contains an empty
	// question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrTooLong is returned when a question exceeds the maximum configured
	// length limit.
	ErrTooLong = errors.New("question too long")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (currently -1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrTurnNotFound indicates that the requested chat turn does not exist.
	ErrTurnNotFound = errors.New("turn not found")

	// ErrDuplicateFeedback is returned when feedback already exists for the
	// targeted turn.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
