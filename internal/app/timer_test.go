package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTimerRecoversDeadlineAcrossActivations(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	clock := newFakeClock()

	first := app.NewTimerWithClock(store, "quiz-1", "u1", 10*time.Second, clock.Now, time.Hour)
	remaining, err := first.Activate(ctx)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if remaining != 10*time.Second {
		t.Fatalf("expected 10s remaining, got %s", remaining)
	}

	// simulate a reload 4 seconds later: the persisted deadline is reused,
	// not re-derived from now + duration
	clock.Advance(4 * time.Second)
	second := app.NewTimerWithClock(store, "quiz-1", "u1", 10*time.Second, clock.Now, time.Hour)
	remaining, err = second.Activate(ctx)
	if err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if remaining != 6*time.Second {
		t.Fatalf("expected 6s remaining after 4s absence, got %s", remaining)
	}
}

func TestTimerPastDeadlineFiresExpiryImmediately(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	clock := newFakeClock()

	first := app.NewTimerWithClock(store, "quiz-1", "u1", 10*time.Second, clock.Now, time.Hour)
	if _, err := first.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}

	clock.Advance(15 * time.Second)
	second := app.NewTimerWithClock(store, "quiz-1", "u1", 10*time.Second, clock.Now, time.Hour)
	remaining, err := second.Activate(ctx)
	if err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if remaining > 0 {
		t.Fatalf("expected non-positive remaining, got %s", remaining)
	}

	var fired int32
	second.Run(func(time.Duration) {}, func() { atomic.AddInt32(&fired, 1) })
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected synchronous expiry, fired=%d", fired)
	}
	// a second Run must not fire again
	second.Run(func(time.Duration) {}, func() { atomic.AddInt32(&fired, 1) })
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expiry fired more than once: %d", fired)
	}
}

func TestTimerTicksThenExpiresOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()

	timer := app.NewTimerWithClock(store, "quiz-1", "u1", 40*time.Millisecond, time.Now, 10*time.Millisecond)
	if _, err := timer.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var ticks, fired int32
	done := make(chan struct{})
	timer.Run(
		func(time.Duration) { atomic.AddInt32(&ticks, 1) },
		func() {
			atomic.AddInt32(&fired, 1)
			close(done)
		},
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never expired")
	}
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected exactly one expiry, got %d", fired)
	}
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("expected at least one tick before expiry")
	}
}

func TestTimerStopPreventsLateExpiry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()

	timer := app.NewTimerWithClock(store, "quiz-1", "u1", 30*time.Millisecond, time.Now, 5*time.Millisecond)
	if _, err := timer.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var fired int32
	timer.Run(func(time.Duration) {}, func() { atomic.AddInt32(&fired, 1) })
	timer.Stop()

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expiry fired after Stop")
	}
}

func TestUntimedQuizNeverStartsCountdown(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()

	timer := app.NewTimerWithClock(store, "quiz-1", "u1", 0, time.Now, time.Millisecond)
	if timer.Enabled() {
		t.Fatalf("zero duration should disable the timer")
	}
	if _, err := timer.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("untimed session must not persist deadline keys")
	}

	var fired int32
	timer.Run(func(time.Duration) {}, func() { atomic.AddInt32(&fired, 1) })
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("untimed session must never expire")
	}
}
