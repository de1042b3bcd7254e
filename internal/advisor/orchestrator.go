package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devy-ai/devy/internal/store"
	"github.com/devy-ai/devy/provider"
)

// Messages shown to the user around finalization. The raw assessment JSON
// is never used as a visible reply.
const (
	ClosingMessage    = "Here is your personalized career assessment:"
	ExtractionApology = "I tried to put your assessment together but hit a snag formatting it. Let's keep chatting for a bit and I'll try again."
)

// Config tunes the conversation loop.
type Config struct {
	// MaxHistoryTurns bounds the prompt context. Beyond it, the earliest
	// user turn and the most recent turns are kept. Zero means unbounded.
	MaxHistoryTurns int
	// GenerateTimeout caps a single model call; past it the turn fails as
	// retryable instead of hanging.
	GenerateTimeout time.Duration
}

// Result is the outcome of one submitted user message.
type Result struct {
	Reply     string
	Finalized bool
	Document  *RecommendationDocument
}

// Advisor drives the conversation: it sequences turns, calls the language
// model, detects completion and finalizes sessions. All mutations of one
// session are serialized through a per-session lock; different sessions
// proceed in parallel.
type Advisor struct {
	store  store.Store
	llm    provider.Provider
	cfg    Config
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires an Advisor. The provider and store are injected; the package
// holds no global client state.
func New(st store.Store, llm provider.Provider, cfg Config, logger *log.Logger) *Advisor {
	if cfg.MaxHistoryTurns < 0 {
		cfg.MaxHistoryTurns = 0
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ADVISOR] ", log.LstdFlags)
	}
	return &Advisor{
		store:  st,
		llm:    llm,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (a *Advisor) lockFor(sessionID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[sessionID] = l
	}
	return l
}

// GetOrCreate returns the session for id, or a brand-new active session
// with a fresh identifier when id is empty or unknown.
func (a *Advisor) GetOrCreate(ctx context.Context, id string) (store.Session, error) {
	if id != "" {
		s, err := a.store.GetSession(ctx, id)
		if err == nil {
			return s, nil
		}
		if err != store.ErrSessionNotFound {
			return store.Session{}, err
		}
	}
	return a.createSession(ctx)
}

// Get looks a session up; unknown identifiers yield ErrSessionNotFound.
func (a *Advisor) Get(ctx context.Context, id string) (store.Session, error) {
	return a.store.GetSession(ctx, id)
}

// Reset detaches the current session and returns a brand-new one. The old
// session must exist; it, its log and any document stay retrievable under
// the old identifier for audit.
func (a *Advisor) Reset(ctx context.Context, id string) (store.Session, error) {
	if _, err := a.store.GetSession(ctx, id); err != nil {
		return store.Session{}, err
	}
	return a.createSession(ctx)
}

func (a *Advisor) createSession(ctx context.Context) (store.Session, error) {
	s := store.Session{
		ID:        uuid.NewString(),
		Status:    store.SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateSession(ctx, s); err != nil {
		return store.Session{}, fmt.Errorf("create session: %w", err)
	}
	a.logger.Printf("created session %s", s.ID)
	return s, nil
}

// History returns the session's full message log in order.
func (a *Advisor) History(ctx context.Context, sessionID string) ([]store.Turn, error) {
	return a.store.ListTurns(ctx, sessionID)
}

// Document returns the finalized assessment for a session, if any.
func (a *Advisor) Document(ctx context.Context, sessionID string) (*RecommendationDocument, error) {
	if _, err := a.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	raw, err := a.store.GetDocument(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var doc RecommendationDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode stored assessment: %w", err)
	}
	return &doc, nil
}

// Submit handles one user message end to end: append, generate, detect,
// and either reply or finalize.
//
// Failure behavior, in caller terms:
//   - empty/oversized input: error, no state change;
//   - model failure or timeout: the user turn stays appended (deliberate
//     at-least-once append, also on caller abort), ErrUpstream returned;
//     resubmitting the same text does not duplicate the turn;
//   - completion marker present but invalid: session stays active, nothing
//     else is appended, the ExtractionError is returned together with an
//     apology reply the caller can show;
//   - storage failure while finalizing: the atomic Finalize leaves the
//     session active with no document, so resubmitting the same text
//     retries the whole finalization.
func (a *Advisor) Submit(ctx context.Context, sessionID, text string) (*Result, error) {
	text, err := sanitizeMessage(text)
	if err != nil {
		return nil, err
	}

	lock := a.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == store.SessionFinalized {
		return nil, ErrSessionFinalized
	}

	turns, err := a.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load message log: %w", err)
	}

	// A retry after an upstream failure resubmits text that is already the
	// tail of the log; appending it again would duplicate the turn.
	if n := len(turns); n == 0 || turns[n-1].Role != store.RoleUser || turns[n-1].Content != text {
		turn := store.Turn{
			Seq:       len(turns) + 1,
			Role:      store.RoleUser,
			Content:   text,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.AppendTurn(ctx, sessionID, turn); err != nil {
			return nil, fmt.Errorf("append user turn: %w", err)
		}
		turns = append(turns, turn)
	}

	genCtx, cancel := context.WithTimeout(ctx, a.cfg.GenerateTimeout)
	defer cancel()
	raw, err := a.llm.Generate(genCtx, buildContext(turns, a.cfg.MaxHistoryTurns))
	if err != nil {
		a.logger.Printf("session %s: model call failed: %v", sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if !IsComplete(raw) {
		reply := store.Turn{
			Seq:       len(turns) + 1,
			Role:      store.RoleAdvisor,
			Content:   raw,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.AppendTurn(ctx, sessionID, reply); err != nil {
			return nil, fmt.Errorf("append advisor turn: %w", err)
		}
		return &Result{Reply: raw, Finalized: false}, nil
	}

	doc, err := Extract(raw)
	if err != nil {
		// The model claimed completion but the payload did not hold up.
		// The session stays active and the conversation continues.
		a.logger.Printf("session %s: assessment rejected: %v", sessionID, err)
		return &Result{Reply: ExtractionApology, Finalized: false}, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}
	if err := a.store.Finalize(ctx, sessionID, payload); err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	closing := store.Turn{
		Seq:       len(turns) + 1,
		Role:      store.RoleAdvisor,
		Content:   ClosingMessage,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendTurn(ctx, sessionID, closing); err != nil {
		return nil, fmt.Errorf("append closing turn: %w", err)
	}

	a.logger.Printf("session %s finalized for %q", sessionID, doc.UserSummary.Name)
	return &Result{Reply: ClosingMessage, Finalized: true, Document: doc}, nil
}
