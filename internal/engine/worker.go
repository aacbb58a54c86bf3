package engine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// Worker processes claimed executions from the queue until the context is
// cancelled.
func Worker(ctx context.Context, id int, m *Manager, queue <-chan *domain.Execution) {
	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case exec := <-queue:
			slog.Info("Worker starting execution", "worker_id", id, "execution_id", exec.ID)
			RunExecution(ctx, m, exec.ID, workerID)
			slog.Info("Worker finished execution", "worker_id", id, "execution_id", exec.ID)
		}
	}
}
