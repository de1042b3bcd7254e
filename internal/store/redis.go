package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	turnsKeySuffix   = ":turns"
	docKeySuffix     = ":assessment"
)

// Redis keeps sessions as JSON values, logs as lists and assessments as
// JSON values. Useful where conversations are disposable and a relational
// database is not worth running.
type Redis struct {
	client *redis.Client
}

// NewRedis connects and pings a redis-backed Store.
func NewRedis(ctx context.Context, addr, password string, db int, timeout time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) CreateSession(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+s.ID, data, 0).Err()
}

func (r *Redis) GetSession(ctx context.Context, id string) (Session, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Finalize ships the status flip and the assessment in one MULTI/EXEC
// pipeline so redis applies both or neither.
func (r *Redis) Finalize(ctx context.Context, sessionID string, doc []byte) error {
	s, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.Status = SessionFinalized
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sessionID, data, 0)
	pipe.Set(ctx, sessionKeyPrefix+sessionID+docKeySuffix, doc, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) AppendTurn(ctx context.Context, sessionID string, t Turn) error {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, sessionKeyPrefix+sessionID+turnsKeySuffix, data).Err()
}

func (r *Redis) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	vals, err := r.client.LRange(ctx, sessionKeyPrefix+sessionID+turnsKeySuffix, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Redis) GetDocument(ctx context.Context, sessionID string) ([]byte, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+sessionID+docKeySuffix).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}
