package advisor

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devy-ai/devy/internal/store"
	"github.com/devy-ai/devy/provider"
)

// fakeLLM replays scripted replies. The string "ERR" scripts a failure.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	delay   time.Duration
	calls   int
}

func (f *fakeLLM) Generate(_ context.Context, _ []provider.Message) (string, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	reply := "tell me more"
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	if reply == "ERR" {
		return "", errors.New("boom")
	}
	return reply, nil
}

func newTestAdvisor(t *testing.T, replies ...string) (*Advisor, *store.Memory, *fakeLLM) {
	t.Helper()
	st := store.NewMemory()
	llm := &fakeLLM{replies: replies}
	return New(st, llm, Config{MaxHistoryTurns: 20, GenerateTimeout: time.Second}, nil), st, llm
}

func mustSession(t *testing.T, a *Advisor) store.Session {
	t.Helper()
	s, err := a.GetOrCreate(context.Background(), "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return s
}

func TestSubmitPlainReply(t *testing.T) {
	a, _, _ := newTestAdvisor(t, "What subjects do you enjoy?")
	s := mustSession(t, a)

	res, err := a.Submit(context.Background(), s.ID, "hi, I'm Sam")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Finalized || res.Document != nil {
		t.Fatalf("plain prose must not finalize: %+v", res)
	}
	if res.Reply != "What subjects do you enjoy?" {
		t.Fatalf("reply = %q", res.Reply)
	}

	turns, _ := a.History(context.Background(), s.ID)
	if len(turns) != 2 || turns[0].Role != store.RoleUser || turns[1].Role != store.RoleAdvisor {
		t.Fatalf("unexpected log: %+v", turns)
	}
	if _, err := a.Document(context.Background(), s.ID); !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("active session must have no document, got %v", err)
	}
}

func TestSubmitEmptyInput(t *testing.T) {
	a, _, llm := newTestAdvisor(t)
	s := mustSession(t, a)

	for _, in := range []string{"", "   ", "<br/>"} {
		if _, err := a.Submit(context.Background(), s.ID, in); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Submit(%q): want ErrEmptyMessage, got %v", in, err)
		}
	}
	turns, _ := a.History(context.Background(), s.ID)
	if len(turns) != 0 {
		t.Fatalf("empty input must not change the log: %+v", turns)
	}
	if llm.calls != 0 {
		t.Fatalf("model must not be called for rejected input, calls=%d", llm.calls)
	}
}

func TestUpstreamFailureRetainsUserTurnAndRetryDoesNotDuplicate(t *testing.T) {
	a, _, _ := newTestAdvisor(t, "ERR", "Nice to meet you!")
	s := mustSession(t, a)

	_, err := a.Submit(context.Background(), s.ID, "hello there")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
	turns, _ := a.History(context.Background(), s.ID)
	if len(turns) != 1 || turns[0].Role != store.RoleUser {
		t.Fatalf("user turn must survive the failure: %+v", turns)
	}

	res, err := a.Submit(context.Background(), s.ID, "hello there")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Reply != "Nice to meet you!" {
		t.Fatalf("retry reply = %q", res.Reply)
	}
	turns, _ = a.History(context.Background(), s.ID)
	if len(turns) != 2 {
		t.Fatalf("retry must not duplicate the user turn: %+v", turns)
	}
}

func TestFinalizeOnValidAssessment(t *testing.T) {
	a, _, _ := newTestAdvisor(t,
		"Tell me about your hobbies!",
		"All done!\n```json\n"+validAssessmentJSON()+"\n```",
	)
	s := mustSession(t, a)
	ctx := context.Background()

	if _, err := a.Submit(ctx, s.ID, "hi, I'm Sam"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	res, err := a.Submit(ctx, s.ID, "I love building things")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !res.Finalized || res.Document == nil {
		t.Fatalf("expected finalization: %+v", res)
	}
	if res.Reply != ClosingMessage {
		t.Fatalf("visible reply must be the closing message, got %q", res.Reply)
	}

	got, err := a.Get(ctx, s.ID)
	if err != nil || got.Status != store.SessionFinalized {
		t.Fatalf("session status = %q (%v), want finalized", got.Status, err)
	}
	doc, err := a.Document(ctx, s.ID)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.UserSummary.Name != "Sam" {
		t.Fatalf("stored document name = %q", doc.UserSummary.Name)
	}

	turns, _ := a.History(ctx, s.ID)
	last := turns[len(turns)-1]
	if last.Role != store.RoleAdvisor || last.Content != ClosingMessage {
		t.Fatalf("raw JSON must never appear as the visible reply: %+v", last)
	}

	if _, err := a.Submit(ctx, s.ID, "one more thing"); !errors.Is(err, ErrSessionFinalized) {
		t.Fatalf("submit after finalization: want ErrSessionFinalized, got %v", err)
	}
}

func TestExtractionFailureKeepsSessionActive(t *testing.T) {
	bad := strings.Replace(validAssessmentJSON(), "Frontend Developer", "Astronaut", 1)
	a, _, _ := newTestAdvisor(t, bad)
	s := mustSession(t, a)
	ctx := context.Background()

	res, err := a.Submit(ctx, s.ID, "am I done yet?")
	if !IsExtractionError(err) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
	if res == nil || res.Reply != ExtractionApology || res.Finalized {
		t.Fatalf("expected apology reply, got %+v", res)
	}

	got, _ := a.Get(ctx, s.ID)
	if got.Status != store.SessionActive {
		t.Fatalf("session must stay active, got %q", got.Status)
	}
	turns, _ := a.History(ctx, s.ID)
	if len(turns) != 1 || turns[0].Role != store.RoleUser {
		t.Fatalf("log must hold only the user turn: %+v", turns)
	}
	if _, err := a.Document(ctx, s.ID); !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("no document may exist after failed extraction, got %v", err)
	}
}

// flakyStore fails Finalize a set number of times before delegating.
type flakyStore struct {
	store.Store
	failures int
}

func (f *flakyStore) Finalize(ctx context.Context, sessionID string, doc []byte) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("storage blip")
	}
	return f.Store.Finalize(ctx, sessionID, doc)
}

func TestFinalizeStorageFailureKeepsInvariantAndRetryConverges(t *testing.T) {
	st := &flakyStore{Store: store.NewMemory(), failures: 1}
	llm := &fakeLLM{replies: []string{validAssessmentJSON(), validAssessmentJSON()}}
	a := New(st, llm, Config{MaxHistoryTurns: 20, GenerateTimeout: time.Second}, nil)
	s := mustSession(t, a)
	ctx := context.Background()

	if _, err := a.Submit(ctx, s.ID, "assess me"); err == nil {
		t.Fatal("expected the first finalization to fail")
	}
	got, _ := a.Get(ctx, s.ID)
	if got.Status != store.SessionActive {
		t.Fatalf("session must stay active after a failed finalize, got %q", got.Status)
	}
	if _, err := a.Document(ctx, s.ID); !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("no document may exist while the session is active, got %v", err)
	}

	res, err := a.Submit(ctx, s.ID, "assess me")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Finalized || res.Document == nil {
		t.Fatalf("retry must finalize: %+v", res)
	}
	got, _ = a.Get(ctx, s.ID)
	if got.Status != store.SessionFinalized {
		t.Fatalf("status = %q", got.Status)
	}
	turns, _ := a.History(ctx, s.ID)
	if len(turns) != 2 || turns[0].Role != store.RoleUser || turns[1].Content != ClosingMessage {
		t.Fatalf("retry must not duplicate the user turn: %+v", turns)
	}
}

// A session has a document iff it is finalized, across arbitrary reply
// sequences.
func TestDocumentIffFinalized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bad := strings.Replace(validAssessmentJSON(), `"match_score":90`, `"match_score":900`, 1)
	ctx := context.Background()

	for run := 0; run < 20; run++ {
		var replies []string
		for i := 0; i < 8; i++ {
			switch rng.Intn(4) {
			case 0:
				replies = append(replies, validAssessmentJSON())
			case 1:
				replies = append(replies, bad)
			default:
				replies = append(replies, "tell me more about that")
			}
		}
		a, _, _ := newTestAdvisor(t, replies...)
		s := mustSession(t, a)

		for i := 0; i < len(replies); i++ {
			_, err := a.Submit(ctx, s.ID, "another message")
			if err != nil && !IsExtractionError(err) && !errors.Is(err, ErrSessionFinalized) {
				t.Fatalf("run %d: %v", run, err)
			}

			sess, _ := a.Get(ctx, s.ID)
			_, docErr := a.Document(ctx, s.ID)
			hasDoc := docErr == nil
			if hasDoc != (sess.Status == store.SessionFinalized) {
				t.Fatalf("run %d: document/finalized invariant broken: status=%s hasDoc=%v", run, sess.Status, hasDoc)
			}
		}
	}
}

func TestConcurrentSubmitsSerialize(t *testing.T) {
	st := store.NewMemory()
	llm := &fakeLLM{delay: 10 * time.Millisecond}
	a := New(st, llm, Config{GenerateTimeout: time.Second}, nil)
	s := mustSession(t, a)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, msg := range []string{"first message", "second message"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			if _, err := a.Submit(ctx, s.ID, m); err != nil {
				t.Errorf("Submit(%q): %v", m, err)
			}
		}(msg)
	}
	wg.Wait()

	turns, _ := a.History(ctx, s.ID)
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d: %+v", len(turns), turns)
	}
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Fatalf("sequence corrupted at %d: %+v", i, turns)
		}
		wantRole := store.RoleUser
		if i%2 == 1 {
			wantRole = store.RoleAdvisor
		}
		if turn.Role != wantRole {
			t.Fatalf("turns interleaved: %+v", turns)
		}
	}
}

func TestResetRetainsOldSessionForAudit(t *testing.T) {
	a, _, _ := newTestAdvisor(t, validAssessmentJSON())
	s := mustSession(t, a)
	ctx := context.Background()

	if _, err := a.Submit(ctx, s.ID, "assess me"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	fresh, err := a.Reset(ctx, s.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if fresh.ID == s.ID {
		t.Fatal("reset must hand out a new identifier")
	}
	if fresh.Status != store.SessionActive {
		t.Fatalf("fresh session status = %q", fresh.Status)
	}
	turns, err := a.History(ctx, fresh.ID)
	if err != nil || len(turns) != 0 {
		t.Fatalf("fresh session log must be empty: %v %+v", err, turns)
	}
	if _, err := a.Document(ctx, fresh.ID); !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("fresh session must have no document, got %v", err)
	}

	// the finalized session stays retrievable under its old identifier
	doc, err := a.Document(ctx, s.ID)
	if err != nil || doc.UserSummary.Name != "Sam" {
		t.Fatalf("old assessment lost after reset: %v", err)
	}
}

func TestResetUnknownSession(t *testing.T) {
	a, _, _ := newTestAdvisor(t)
	if _, err := a.Reset(context.Background(), "not-a-session"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestGetOrCreateUnknownIDGetsFreshIdentifier(t *testing.T) {
	a, _, _ := newTestAdvisor(t)
	s, err := a.GetOrCreate(context.Background(), "not-a-session")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.ID == "not-a-session" || s.ID == "" {
		t.Fatalf("expected fresh identifier, got %q", s.ID)
	}
	if _, err := a.Get(context.Background(), "not-a-session"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("unknown id must stay unknown, got %v", err)
	}
}
