package store

import (
	"context"
	"errors"
	"time"
)

// Session statuses. A session owns a document iff it is finalized.
const (
	SessionActive    = "active"
	SessionFinalized = "finalized"
)

// Turn roles.
const (
	RoleUser    = "user"
	RoleAdvisor = "advisor"
)

var (
	// ErrSessionNotFound is returned for unknown session identifiers.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDocumentNotFound is returned when a session has no assessment yet.
	ErrDocumentNotFound = errors.New("assessment not found")
)

// Session is the unit of conversation continuity and finalization state.
type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one message in a session's log. Turns are immutable once
// appended and totally ordered by Seq.
type Turn struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sessions, their append-only message logs and their
// finalized assessment documents. Implementations do not serialize
// concurrent writers themselves; the advisor holds a per-session lock, so
// each method only has to be individually atomic.
//
// Assessment documents travel as raw JSON: the advisor package owns the
// shape, the store just keeps the bytes.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)

	AppendTurn(ctx context.Context, sessionID string, t Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// Finalize stores the assessment document and flips the session to
	// finalized as one atomic step, so the session-has-a-document-iff-
	// finalized invariant holds even across storage failures. Calling it
	// again for the same session overwrites the document, which lets a
	// retry after a transient failure converge.
	Finalize(ctx context.Context, sessionID string, doc []byte) error
	GetDocument(ctx context.Context, sessionID string) ([]byte, error)
}
