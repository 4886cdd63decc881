package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/rag-backend/internal/services"
)

func newFeedbackRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/turns/:id/feedback", h.LeaveFeedback)
	return r
}

func TestLeaveFeedback_BindingError(t *testing.T) {
	fb := stubFBSvc{fn: func(ctx context.Context, turnID int64, value int) error {
		t.Fatalf("service should not be called on binding error")
		return nil
	}}
	h := New(stubDocSvc{}, stubQuerySvc{}, fb)
	r := newFeedbackRouter(h)

	w := httptest.NewRecorder()
	// Missing "value" or invalid value → binding error
	req := httptest.NewRequest(http.MethodPost, "/turns/1/feedback", bytes.NewBufferString(`{"value":0}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("binding error expected 400, got %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Message == "" {
		t.Fatalf("expected error message in response")
	}
}

func TestLeaveFeedback_InvalidTurnID(t *testing.T) {
	fb := stubFBSvc{fn: func(ctx context.Context, turnID int64, value int) error {
		t.Fatalf("service should not be called for invalid turn id")
		return nil
	}}
	h := New(stubDocSvc{}, stubQuerySvc{}, fb)
	r := newFeedbackRouter(h)

	for _, id := range []string{"abc", "0", "-4"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/turns/"+id+"/feedback", bytes.NewBufferString(`{"value":1}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %d", id, w.Code)
		}
	}
}

func TestLeaveFeedback_ErrorMappings(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not_found", services.ErrTurnNotFound, http.StatusNotFound},
		{"invalid", services.ErrInvalidFeedback, http.StatusBadRequest},
		{"duplicate", services.ErrDuplicateFeedback, http.StatusConflict},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError}, // any other error
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			fb := stubFBSvc{fn: func(ctx context.Context, turnID int64, value int) error {
				if turnID != 42 {
					t.Fatalf("expected turnID 42, got %d", turnID)
				}
				if value != 1 {
					t.Fatalf("expected value 1, got %d", value)
				}
				return tc.err
			}}
			h := New(stubDocSvc{}, stubQuerySvc{}, fb)
			r := newFeedbackRouter(h)

			body := bytes.NewBufferString(`{"value":1}`)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/turns/42/feedback", body)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d. body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code == "" || er.Message == "" {
				t.Fatalf("error envelope missing fields: %+v", er)
			}
		})
	}
}

func TestLeaveFeedback_Success204(t *testing.T) {
	var got struct {
		id  int64
		val int
	}
	fb := stubFBSvc{fn: func(ctx context.Context, turnID int64, value int) error {
		got.id = turnID
		got.val = value
		return nil
	}}
	h := New(stubDocSvc{}, stubQuerySvc{}, fb)
	r := newFeedbackRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/turns/123/feedback", bytes.NewBufferString(`{"value":-1}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body for 204")
	}
	if got.id != 123 || got.val != -1 {
		t.Fatalf("service args mismatch: %+v", got)
	}
}
