// Package domain defines the persistence models for documents, chat turns,
// and feedback. These types are mapped with GORM and form the metadata and
// chat-log layer of the application; chunk records live in the separate
// vector index database.
package domain

import "time"

// Document is the metadata record for one uploaded file. Its integer ID is
// generated at creation time and is the join key into the vector index:
// every chunk produced from this document is tagged with it.
//
// Rows are hard-deleted together with their chunks; a Document row without
// indexed chunks (or vice versa) is a reportable inconsistency.
type Document struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Filename  string    `json:"filename"   gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// ChatTurn is one question/answer exchange within a session. Turns are
// append-only and ordered by insertion; replaying a session's turns oldest
// first reproduces the exact pairing and order used to condition later
// answers.
//
// The session itself is not stored as an entity — it exists only as the
// grouping key over turns.
type ChatTurn struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"session_id" gorm:"type:char(36);not null;index:idx_session_turns,priority:1"`
	Question  string    `json:"question"   gorm:"type:text;not null"`
	Answer    string    `json:"answer"     gorm:"type:text;not null"`
	Model     string    `json:"model"      gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_session_turns,priority:2"`
}

// TableName returns the database table name for ChatTurn.
func (ChatTurn) TableName() string { return "chat_turns" }

// Feedback is a rating on a single answered turn: +1 (helpful) or -1 (not
// helpful). One feedback row per turn, enforced by a unique index.
type Feedback struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	TurnID    int64     `json:"turn_id"    gorm:"not null;uniqueIndex:ux_feedback_turn"`
	Value     int       `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time `json:"created_at"`

	// Turn is the rated exchange. Feedback is cascade-deleted if the turn
	// is removed.
	Turn ChatTurn `json:"-" gorm:"foreignKey:TurnID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
