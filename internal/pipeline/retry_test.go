package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgallion1/postchunk/internal/doctree"
	"github.com/dgallion1/postchunk/internal/store"
)

// busyStore fails the first n upserts with a busy error.
type busyStore struct {
	n     int
	calls int
}

func (s *busyStore) IsUpToDate(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (s *busyStore) UpsertDocument(_ context.Context, _ store.Document, sections []doctree.Section) (store.UpsertResult, error) {
	s.calls++
	if s.calls <= s.n {
		return store.UpsertResult{}, fmt.Errorf("%w: locked", store.ErrBusy)
	}
	return store.UpsertResult{Sections: len(sections)}, nil
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("upsert: %w", store.ErrBusy)) {
		t.Error("expected wrapped ErrBusy to be retryable")
	}
	if IsRetryable(errors.New("constraint failed")) || IsRetryable(nil) {
		t.Error("expected other errors not to be retryable")
	}
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond} {
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: expected %v <= d < %v, got %v", attempt, base, base+base/2, d)
		}
	}
	if d := Backoff(20); d >= 3*time.Second {
		t.Errorf("expected capped backoff, got %v", d)
	}
}

func TestProcessFile_RetriesBusyStore(t *testing.T) {
	f := newFixture(t, Options{})
	bs := &busyStore{n: 2}
	proc := NewProcessor(bs, f.proc.sectioner, discardLogger(), Options{})

	res, err := proc.ProcessFile(context.Background(), f.file(t, "notes/git"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeIndexed || bs.calls != 3 {
		t.Errorf("expected success on third attempt, got %s after %d calls", res.Outcome, bs.calls)
	}
}

func TestProcessFile_GivesUpWhenAlwaysBusy(t *testing.T) {
	f := newFixture(t, Options{})
	bs := &busyStore{n: MaxRetries + 10}
	proc := NewProcessor(bs, f.proc.sectioner, discardLogger(), Options{})

	res, err := proc.ProcessFile(context.Background(), f.file(t, "notes/git"), false)
	if !errors.Is(err, store.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if res.Outcome != OutcomeFailed || bs.calls != MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", MaxRetries+1, bs.calls)
	}
}
