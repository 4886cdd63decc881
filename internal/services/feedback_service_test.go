package services

import (
	"context"
	"errors"
	"testing"

	"github.com/docuchat/rag-backend/internal/domain"
	"github.com/docuchat/rag-backend/internal/repo"
)

func TestLeave_InvalidValue(t *testing.T) {
	s := &FeedbackService{DB: newServiceDB(t)}
	for _, v := range []int{0, 2, -2, 100} {
		if err := s.Leave(context.Background(), 1, v); !errors.Is(err, ErrInvalidFeedback) {
			t.Fatalf("value %d: expected ErrInvalidFeedback, got %v", v, err)
		}
	}
}

func TestLeave_TurnNotFound(t *testing.T) {
	s := &FeedbackService{DB: newServiceDB(t)}
	if err := s.Leave(context.Background(), 404, 1); !errors.Is(err, ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound, got %v", err)
	}
}

func TestLeave_SuccessAndDuplicate(t *testing.T) {
	db := newServiceDB(t)
	s := &FeedbackService{DB: db}
	ctx := context.Background()

	turn, err := repo.AppendTurn(ctx, db, "s1", "q", "a", "m")
	if err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	if err := s.Leave(ctx, turn.ID, 1); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	var fb domain.Feedback
	if err := db.First(&fb, "turn_id = ?", turn.ID).Error; err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	if fb.Value != 1 {
		t.Fatalf("expected value 1, got %d", fb.Value)
	}

	if err := s.Leave(ctx, turn.ID, -1); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("expected ErrDuplicateFeedback, got %v", err)
	}
}
