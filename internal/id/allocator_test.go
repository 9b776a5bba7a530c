package id

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestFixed(t *testing.T) {
	t.Parallel()

	allocator := NewFixed()
	for i := 0; i < 3; i++ {
		got, err := allocator.Alloc(t.Context())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 1 {
			t.Errorf("id mismatch: got %d, want 1", got)
		}
		allocator.Release(got)
	}
}

func TestPool_distinctIDs(t *testing.T) {
	t.Parallel()

	pool := NewPool(0)
	seen := map[uint16]struct{}{}
	for i := 0; i < 100; i++ {
		got, err := pool.Alloc(t.Context())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == 0 {
			t.Error("allocated the reserved id 0")
		}
		if _, ok := seen[got]; ok {
			t.Errorf("duplicate id: %d", got)
		}
		seen[got] = struct{}{}
	}
}

func TestPool_reuseAfterRelease(t *testing.T) {
	t.Parallel()

	pool := NewPool(2)

	first, err := pool.Alloc(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := pool.Alloc(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("duplicate id: %d", first)
	}

	pool.Release(first)

	third, err := pool.Alloc(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != first {
		t.Errorf("released id not reused: got %d, want %d", third, first)
	}
}

func TestPool_exhaustionTimesOut(t *testing.T) {
	t.Parallel()

	pool := NewPool(1)
	if _, err := pool.Alloc(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := pool.Alloc(ctx)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error mismatch: got %v, want %v", err, ErrExhausted)
	}
}

func TestPool_blockedAllocWakesOnRelease(t *testing.T) {
	t.Parallel()

	pool := NewPool(1)
	held, err := pool.Alloc(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var got uint16
	var allocErr error
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		got, allocErr = pool.Alloc(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	pool.Release(held)
	wg.Wait()

	if allocErr != nil {
		t.Fatalf("unexpected error: %v", allocErr)
	}
	if got != held {
		t.Errorf("id mismatch: got %d, want %d", got, held)
	}
}

func TestPool_concurrentStress(t *testing.T) {
	t.Parallel()

	pool := NewPool(8)
	inFlight := sync.Map{}

	eg := errgroup.Group{}
	for i := 0; i < 32; i++ {
		eg.Go(func() error {
			for j := 0; j < 50; j++ {
				ctx, cancel := context.WithTimeout(t.Context(), time.Second)
				got, err := pool.Alloc(ctx)
				cancel()
				if err != nil {
					return err
				}

				if _, loaded := inFlight.LoadOrStore(got, struct{}{}); loaded {
					t.Errorf("id %d handed out while in flight", got)
				}
				inFlight.Delete(got)
				pool.Release(got)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
