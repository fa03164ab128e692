package update

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Trigger describes the push that caused an update. It is used for logging
// only and is never passed to the update command.
type Trigger struct {
	Ref        string
	Pusher     string
	Commits    int
	DeliveryID string
}

// Dispatcher starts update runs in the background. Dispatch never blocks on
// the run and there is no retry, deduplication or mutual exclusion: two
// dispatches close together run concurrently.
type Dispatcher struct {
	runner Runner
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher for runner.
func NewDispatcher(runner Runner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		logger: logger,
	}
}

// Dispatch launches one update run and returns immediately. The outcome is
// only logged.
func (d *Dispatcher) Dispatch(t Trigger) {
	logger := d.logger
	if t.DeliveryID != "" {
		logger = logger.With("delivery", t.DeliveryID)
	}
	// Runs may overlap, so every line of one run carries its id.
	logger = logger.With("run", uuid.NewString())

	logger.Info("Executing update script...")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(logger)
	}()
}

func (d *Dispatcher) run(logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update failed", "error", r)
		}
	}()

	result, err := d.runner.Run(context.Background())
	if err != nil {
		logger.Error("Update failed", "error", err)
		if result != nil && result.Stderr != "" {
			logger.Error("Update stderr", "stderr", result.Stderr)
		}
		return
	}

	if result.Stderr != "" {
		logger.Warn("Update stderr", "stderr", result.Stderr)
	}
	logger.Info("Update output", "stdout", result.Stdout)
	logger.Info("Update completed successfully", "duration", result.Duration)
}

// Wait blocks until every dispatched run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
