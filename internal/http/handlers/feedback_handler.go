// Feedback HTTP handlers.
//
// This file exposes the REST endpoint for submitting feedback on answered
// turns:
//   - POST /turns/{id}/feedback  (create feedback)
//
// Handlers in this file are transport-thin: they validate input, delegate to
// application services, and translate domain/service errors into HTTP results.
// Feedback values are constrained to {-1, +1} to represent negative/positive
// reactions respectively.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/rag-backend/internal/services"
)

// LeaveFeedbackRequest is the JSON payload for creating feedback on a turn.
//
// Value must be one of:
//   - +1 : positive feedback
//   - -1 : negative feedback
//
// The binding tag enforces the domain constraint at the transport layer.
type LeaveFeedbackRequest struct {
	// Value is the feedback signal: +1 (positive) or -1 (negative).
	Value   int     `json:"value" binding:"required,oneof=-1 1" example:"1"`
	Comment *string `json:"comment,omitempty" example:"Answer matched the report"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Leave feedback on an answered turn
// @Description Records positive (+1) or negative (-1) feedback for a recorded exchange.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       id    path    int  true  "Turn ID"  example(42)
// @Param       body  body    handlers.LeaveFeedbackRequest true "Feedback payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     404  {object} handlers.ErrorResponse "Turn not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /turns/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}

	turnID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || turnID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "turn id must be a positive integer")
		return
	}

	if err := h.fbSvc.Leave(c.Request.Context(), turnID, req.Value); err != nil {
		switch err {
		case services.ErrTurnNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "turn not found")
		case services.ErrInvalidFeedback:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		case services.ErrDuplicateFeedback:
			fail(c, http.StatusConflict, ErrCodeConflict, "feedback already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	noContent(c)
}
