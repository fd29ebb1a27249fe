// Package status tracks saga outcomes per student and lets callers
// block until an outcome arrives.
package status

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Outcome is the terminal result of one student's saga.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// ErrTimeout reports that no outcome arrived within the wait window.
var ErrTimeout = errors.New("timed out waiting for saga outcome")

// Waiter hands out one-shot outcome channels keyed by student id.
// Multiple callers may wait on the same student; Resolve wakes all of
// them.
type Waiter struct {
	mu      sync.Mutex
	waiting map[int][]chan Outcome
}

func NewWaiter() *Waiter {
	return &Waiter{waiting: make(map[int][]chan Outcome)}
}

// Wait blocks until the student's saga resolves, the timeout elapses,
// or ctx is canceled.
func (w *Waiter) Wait(ctx context.Context, studentID int, timeout time.Duration) (Outcome, error) {
	ch := make(chan Outcome, 1)

	w.mu.Lock()
	w.waiting[studentID] = append(w.waiting[studentID], ch)
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-ch:
		return outcome, nil
	case <-timer.C:
		w.drop(studentID, ch)
		return "", ErrTimeout
	case <-ctx.Done():
		w.drop(studentID, ch)
		return "", ctx.Err()
	}
}

// Resolve delivers the outcome to every waiter registered for the
// student and reports how many it woke.
func (w *Waiter) Resolve(studentID int, outcome Outcome) int {
	w.mu.Lock()
	channels := w.waiting[studentID]
	delete(w.waiting, studentID)
	w.mu.Unlock()

	for _, ch := range channels {
		ch <- outcome
	}
	return len(channels)
}

func (w *Waiter) drop(studentID int, ch chan Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	channels := w.waiting[studentID]
	for i, candidate := range channels {
		if candidate == ch {
			w.waiting[studentID] = append(channels[:i], channels[i+1:]...)
			break
		}
	}
	if len(w.waiting[studentID]) == 0 {
		delete(w.waiting, studentID)
	}
}
