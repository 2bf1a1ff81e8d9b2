package worker

import (
	"context"
	"log/slog"
	"time"
)

// PruneStore defines the store operations needed by the chat prune worker.
type PruneStore interface {
	PruneChatHistory(ctx context.Context, keep int) (int64, error)
}

// ChatPruneWorker trims chat history beyond the newest keep messages per
// user, matching the API read limit so unreachable rows don't accumulate.
type ChatPruneWorker struct {
	store    PruneStore
	interval time.Duration
	keep     int
}

// NewChatPruneWorker creates a worker with the given store, interval and
// per-user retention count.
func NewChatPruneWorker(store PruneStore, interval time.Duration, keep int) *ChatPruneWorker {
	return &ChatPruneWorker{
		store:    store,
		interval: interval,
		keep:     keep,
	}
}

// Run starts the worker loop. Prunes on each interval tick, not on start,
// so service startup stays cheap. Respects context cancellation for
// graceful shutdown.
func (w *ChatPruneWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "chat-prune",
		"keep", w.keep,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "chat-prune",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

// prune runs one pass and logs any errors without stopping the loop.
func (w *ChatPruneWorker) prune(ctx context.Context) {
	removed, err := w.store.PruneChatHistory(ctx, w.keep)
	if err != nil {
		slog.Error("chat prune failed",
			"component", "worker",
			"worker", "chat-prune",
			"error", err,
		)
		return
	}
	if removed > 0 {
		slog.Info("chat history pruned",
			"component", "worker",
			"worker", "chat-prune",
			"removed", removed,
		)
	}
}
