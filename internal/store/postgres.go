package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres is the durable Store, backed by the schema in migrations/.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings a Postgres connection from a DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s Session) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, status, created_at) VALUES ($1, $2, $3)`,
		s.ID, s.Status, s.CreatedAt)
	return err
}

func (p *Postgres) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, status, created_at FROM sessions WHERE id=$1`, id).
		Scan(&s.ID, &s.Status, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// Finalize writes the assessment and the status flip in one transaction.
// The document insert is an upsert so a retry after a partial failure
// converges instead of tripping over the primary key.
func (p *Postgres) Finalize(ctx context.Context, sessionID string, doc []byte) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (session_id, payload, created_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (session_id) DO UPDATE SET payload=EXCLUDED.payload`,
		sessionID, doc)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status=$1 WHERE id=$2`, SessionFinalized, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

func (p *Postgres) AppendTurn(ctx context.Context, sessionID string, t Turn) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		sessionID, t.Seq, t.Role, t.Content, t.CreatedAt)
	return err
}

func (p *Postgres) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT seq, role, content, created_at FROM turns WHERE session_id=$1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) GetDocument(ctx context.Context, sessionID string) ([]byte, error) {
	var doc []byte
	err := p.DB.QueryRowContext(ctx,
		`SELECT payload FROM assessments WHERE session_id=$1`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
