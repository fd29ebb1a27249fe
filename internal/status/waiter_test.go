package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWaiterResolveWakesWaiter(t *testing.T) {
	t.Parallel()

	waiter := NewWaiter()
	done := make(chan struct{})
	var outcome Outcome
	var err error

	go func() {
		defer close(done)
		outcome, err = waiter.Wait(context.Background(), 2, 2*time.Second)
	}()

	// Give the waiter a moment to register.
	for i := 0; i < 100; i++ {
		if waiter.Resolve(2, Succeeded) > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	<-done
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Succeeded {
		t.Fatalf("expected succeeded, got %q", outcome)
	}
}

func TestWaiterTimeout(t *testing.T) {
	t.Parallel()

	waiter := NewWaiter()
	_, err := waiter.Wait(context.Background(), 3, 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Resolving after a timeout finds no registered waiter.
	if woken := waiter.Resolve(3, Failed); woken != 0 {
		t.Fatalf("expected 0 waiters after timeout, got %d", woken)
	}
}

func TestWaiterContextCancel(t *testing.T) {
	t.Parallel()

	waiter := NewWaiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waiter.Wait(ctx, 4, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaiterResolvesAllWaitersForSameStudent(t *testing.T) {
	t.Parallel()

	waiter := NewWaiter()
	const waiters = 3

	var wg sync.WaitGroup
	results := make(chan Outcome, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := waiter.Wait(context.Background(), 7, 2*time.Second)
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			results <- outcome
		}()
	}

	woken := 0
	for i := 0; i < 200 && woken < waiters; i++ {
		woken += waiter.Resolve(7, Failed)
		time.Sleep(2 * time.Millisecond)
	}

	wg.Wait()
	close(results)
	got := 0
	for outcome := range results {
		if outcome != Failed {
			t.Fatalf("expected failed, got %q", outcome)
		}
		got++
	}
	if got != waiters {
		t.Fatalf("expected %d resolved waiters, got %d", waiters, got)
	}
}
