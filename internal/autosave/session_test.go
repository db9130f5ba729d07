package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	saves []int
	fail  error
}

func (r *recorder) save(_ context.Context, doc int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	r.saves = append(r.saves, doc)
	return doc, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recorder) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func add(n int) func(int) int {
	return func(v int) int { return v + n }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEditsInsideWindowCollapseIntoOneWrite(t *testing.T) {
	rec := &recorder{}
	s := New(0, rec.save, WithDebounce[int](50*time.Millisecond))

	for i := 1; i <= 3; i++ {
		if err := s.Edit(add(i)); err != nil {
			t.Fatalf("edit: %v", err)
		}
	}
	if !s.Pending() {
		t.Fatal("expected pending edits")
	}

	waitFor(t, func() bool { return rec.count() > 0 })
	time.Sleep(150 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", rec.count())
	}
	if rec.last() != 6 {
		t.Fatalf("expected final state 6, got %d", rec.last())
	}
	if s.Pending() {
		t.Fatal("expected no pending edits after save")
	}
}

func TestSaveNowWritesOnceAndCancelsTimer(t *testing.T) {
	rec := &recorder{}
	s := New(10, rec.save, WithDebounce[int](50*time.Millisecond))

	if err := s.Edit(add(5)); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("save now: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", rec.count())
	}
	if rec.last() != 15 {
		t.Fatalf("expected 15, got %d", rec.last())
	}
}

func TestSaveNowWithoutEditsStillWrites(t *testing.T) {
	rec := &recorder{}
	s := New(7, rec.save)
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("save now: %v", err)
	}
	if rec.count() != 1 || rec.last() != 7 {
		t.Fatalf("expected one write of 7, got %v", rec.saves)
	}
}

func TestFailedSaveKeepsLocalEdits(t *testing.T) {
	rec := &recorder{}
	rec.setFail(errors.New("backend down"))

	var mu sync.Mutex
	var reported []error
	s := New(0, rec.save,
		WithDebounce[int](20*time.Millisecond),
		OnError[int](func(err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		}),
	)

	if err := s.Edit(add(4)); err != nil {
		t.Fatalf("edit: %v", err)
	}
	waitFor(t, func() bool { return s.Err() != nil })

	if s.Local() != 4 {
		t.Fatalf("local edits lost: %d", s.Local())
	}
	if !s.Pending() {
		t.Fatal("expected edits to stay pending after failure")
	}
	mu.Lock()
	if len(reported) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(reported))
	}
	mu.Unlock()

	rec.setFail(nil)
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.last() != 4 || s.Pending() || s.Err() != nil {
		t.Fatalf("retry should write the kept edits: saves=%v pending=%v", rec.saves, s.Pending())
	}
}

func TestSaveNowReturnsError(t *testing.T) {
	rec := &recorder{}
	rec.setFail(errors.New("boom"))
	s := New(1, rec.save)
	if err := s.SaveNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOnSavedReceivesStoredDocument(t *testing.T) {
	stored := func(_ context.Context, doc int) (int, error) { return doc * 10, nil }
	var got int
	s := New(1, stored, OnSaved[int](func(v int) { got = v }))
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("save now: %v", err)
	}
	if got != 10 || s.Local() != 10 {
		t.Fatalf("expected stored form 10, got callback=%d local=%d", got, s.Local())
	}
}

func TestCloseFlushesAndRejectsEdits(t *testing.T) {
	rec := &recorder{}
	s := New(0, rec.save, WithDebounce[int](time.Hour))
	if err := s.Edit(add(2)); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rec.count() != 1 || rec.last() != 2 {
		t.Fatalf("expected close to flush, got %v", rec.saves)
	}
	if err := s.Edit(add(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseWithoutEditsDoesNotWrite(t *testing.T) {
	rec := &recorder{}
	s := New(0, rec.save)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("expected no writes, got %d", rec.count())
	}
}
