// Package worker runs periodic background tasks such as the idle session
// sweep, each on its own ticker, with bounded runs and graceful shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type schedule struct {
	task  Task
	every time.Duration
}

// Worker runs registered tasks on fixed intervals until stopped.
type Worker struct {
	schedules map[string]schedule
	config    Config
	logger    *slog.Logger

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		schedules: make(map[string]schedule),
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Register schedules task to run every interval. Call this before Start().
func (w *Worker) Register(task Task, every time.Duration) error {
	if w.started {
		return fmt.Errorf("register %s: worker already started", task.Name())
	}
	if every < w.config.MinInterval {
		return fmt.Errorf("register %s: interval %v is below the minimum %v", task.Name(), every, w.config.MinInterval)
	}
	name := task.Name()
	if _, exists := w.schedules[name]; exists {
		w.logger.Warn("Overwriting existing task", "task", name)
	}
	w.schedules[name] = schedule{task: task, every: every}
	w.logger.Debug("Registered task", "task", name, "every", every)
	return nil
}

// Start launches one goroutine per registered task.
func (w *Worker) Start(ctx context.Context) {
	w.started = true
	for _, s := range w.schedules {
		w.wg.Add(1)
		go w.runTask(ctx, s)
	}

	w.logger.Info("Worker started", "tasks", len(w.schedules))
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// runTask is the loop for a single task. It exits when stopCh is closed,
// ctx is done, or the task fails permanently.
func (w *Worker) runTask(ctx context.Context, s schedule) {
	defer w.wg.Done()

	logger := w.logger.With("task", s.task.Name())
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Task stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runOnce(ctx, s.task); err != nil {
				if IsPermanent(err) {
					logger.Warn("Task failed with permanent error, unscheduling", "error", err)
					return
				}
				logger.Error("Task failed", "error", err)
			}
		}
	}
}

// runOnce executes one pass of task under the configured timeout.
func (w *Worker) runOnce(ctx context.Context, task Task) error {
	runCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()
	return task.Run(runCtx)
}
