package app

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Timer drives the countdown for a timed attempt session. The absolute
// deadline is persisted on first activation and read back unchanged on every
// later activation, so time that elapsed while the session was away still
// counts down. Remaining time is always re-sampled against the wall clock
// rather than decremented, which keeps the countdown self-correcting.
//
// A duration of zero or less disables the timer entirely.
type Timer struct {
	store    StateStore
	quizID   string
	userID   string
	duration time.Duration
	interval time.Duration
	now      func() time.Time

	deadline time.Time

	mu      sync.Mutex
	stop    chan struct{}
	running bool
	fired   bool
}

func NewTimer(store StateStore, quizID, userID string, duration time.Duration) *Timer {
	return NewTimerWithClock(store, quizID, userID, duration, time.Now, time.Second)
}

// NewTimerWithClock is test-only for deterministic countdowns.
func NewTimerWithClock(store StateStore, quizID, userID string, duration time.Duration, now func() time.Time, interval time.Duration) *Timer {
	return &Timer{
		store:    store,
		quizID:   quizID,
		userID:   userID,
		duration: duration,
		interval: interval,
		now:      now,
	}
}

// Enabled reports whether the session is timed at all.
func (t *Timer) Enabled() bool {
	return t.duration > 0
}

// Activate loads the persisted deadline, or computes and persists one if this
// is the first activation for the session. It returns the remaining time; a
// non-positive remainder means the deadline has already passed.
func (t *Timer) Activate(ctx context.Context) (time.Duration, error) {
	if !t.Enabled() {
		return 0, nil
	}

	raw, ok, err := t.store.Get(ctx, deadlineKey(t.quizID, t.userID))
	if err != nil {
		return 0, err
	}
	if ok {
		if millis, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			t.deadline = time.UnixMilli(millis)
			return t.deadline.Sub(t.now()), nil
		}
		// corrupt value, fall through and start fresh
	}

	start := t.now()
	t.deadline = start.Add(t.duration)
	if err := t.store.Set(ctx, startKey(t.quizID, t.userID), strconv.FormatInt(start.UnixMilli(), 10)); err != nil {
		return 0, err
	}
	if err := t.store.Set(ctx, deadlineKey(t.quizID, t.userID), strconv.FormatInt(t.deadline.UnixMilli(), 10)); err != nil {
		return 0, err
	}
	return t.deadline.Sub(t.now()), nil
}

// Remaining re-samples the wall clock against the stored deadline.
func (t *Timer) Remaining() time.Duration {
	if !t.Enabled() || t.deadline.IsZero() {
		return 0
	}
	return t.deadline.Sub(t.now())
}

// Run starts the tick cadence after Activate. onTick receives the remaining
// time roughly once per interval; onExpire fires exactly once, and fires
// synchronously from Run when the deadline has already passed. Once Stop has
// been called expiry can no longer fire.
func (t *Timer) Run(onTick func(time.Duration), onExpire func()) {
	if !t.Enabled() {
		return
	}

	t.mu.Lock()
	if t.running || t.fired {
		t.mu.Unlock()
		return
	}
	if t.deadline.Sub(t.now()) <= 0 {
		t.fired = true
		t.mu.Unlock()
		onExpire()
		return
	}
	t.stop = make(chan struct{})
	t.running = true
	stop := t.stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				remaining := t.deadline.Sub(t.now())
				if remaining > 0 {
					onTick(remaining)
					continue
				}
				t.mu.Lock()
				if t.fired || !t.running {
					t.mu.Unlock()
					return
				}
				t.fired = true
				t.running = false
				t.mu.Unlock()
				onExpire()
				return
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the tick cadence and latches the expiry so it cannot fire after
// a terminal state. Safe to call multiple times and on untimed sessions.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		close(t.stop)
		t.running = false
	}
	t.fired = true
}
