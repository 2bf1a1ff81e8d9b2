package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockPruneStore implements PruneStore for testing
type mockPruneStore struct {
	mu       sync.Mutex
	calls    []int
	pruneErr error
	removed  int64
}

func (m *mockPruneStore) PruneChatHistory(ctx context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, keep)
	if m.pruneErr != nil {
		return 0, m.pruneErr
	}
	return m.removed, nil
}

func (m *mockPruneStore) getCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int{}, m.calls...)
}

func TestChatPruneWorker_RunsOnSchedule(t *testing.T) {
	store := &mockPruneStore{removed: 3}
	worker := NewChatPruneWorker(store, 50*time.Millisecond, 50)

	ctx, cancel := context.WithCancel(context.Background())

	go worker.Run(ctx)

	// Wait for at least 2 ticks
	time.Sleep(120 * time.Millisecond)
	cancel()

	calls := store.getCalls()
	if len(calls) < 2 {
		t.Errorf("Expected at least 2 prune calls, got %d", len(calls))
	}

	for _, keep := range calls {
		if keep != 50 {
			t.Errorf("Expected keep count 50, got %d", keep)
		}
	}
}

func TestChatPruneWorker_DoesNotRunImmediately(t *testing.T) {
	store := &mockPruneStore{removed: 3}
	worker := NewChatPruneWorker(store, 1*time.Hour, 50)

	ctx, cancel := context.WithCancel(context.Background())

	go worker.Run(ctx)

	// Wait a short time - should NOT have pruned yet
	time.Sleep(50 * time.Millisecond)
	cancel()

	calls := store.getCalls()
	if len(calls) != 0 {
		t.Errorf("Expected 0 prune calls (does not run immediately), got %d", len(calls))
	}
}

func TestChatPruneWorker_GracefulShutdown(t *testing.T) {
	store := &mockPruneStore{removed: 3}
	worker := NewChatPruneWorker(store, 1*time.Hour, 50)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	// Cancel immediately
	cancel()

	select {
	case <-done:
		// Success
	case <-time.After(1 * time.Second):
		t.Error("Worker did not stop within 1 second")
	}
}

func TestChatPruneWorker_HandlesStoreError(t *testing.T) {
	store := &mockPruneStore{pruneErr: errors.New("database error")}
	worker := NewChatPruneWorker(store, 50*time.Millisecond, 50)

	ctx, cancel := context.WithCancel(context.Background())

	go worker.Run(ctx)

	// Wait for at least 2 ticks (should continue despite errors)
	time.Sleep(120 * time.Millisecond)
	cancel()

	calls := store.getCalls()
	if len(calls) < 2 {
		t.Errorf("Expected at least 2 prune calls (continues on error), got %d", len(calls))
	}
}

func TestChatPruneWorker_UsesConfiguredKeep(t *testing.T) {
	store := &mockPruneStore{removed: 1}
	worker := NewChatPruneWorker(store, 50*time.Millisecond, 25)

	ctx, cancel := context.WithCancel(context.Background())

	go worker.Run(ctx)

	// Wait for first tick
	time.Sleep(70 * time.Millisecond)
	cancel()

	calls := store.getCalls()
	if len(calls) == 0 {
		t.Fatal("Expected at least 1 prune call")
	}

	if calls[0] != 25 {
		t.Errorf("Expected keep count 25, got %d", calls[0])
	}
}
