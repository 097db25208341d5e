package utils

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var ErrShutdown = errors.New("process manager is shut down")

// BackgroundProcessManager owns the long-running loops of the exchange
// (sweeper, HTTP listener) and stops them together.
type BackgroundProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	processes map[string]*processInfo
	closed    bool
}

type processInfo struct {
	cancel      context.CancelFunc
	description string
	startedAt   time.Time
}

func NewBackgroundProcessManager(parent context.Context) *BackgroundProcessManager {
	ctx, cancel := context.WithCancel(parent)
	return &BackgroundProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*processInfo),
	}
}

// StartProcess runs fn in its own goroutine. A process registered under an
// existing name replaces it. Panics are recovered and logged.
func (bpm *BackgroundProcessManager) StartProcess(name, description string, fn func(ctx context.Context)) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if bpm.closed {
		return ErrShutdown
	}
	if _, exists := bpm.processes[name]; exists {
		slog.Warn("Process already exists, stopping existing one",
			slog.String("type", "sys"),
			slog.String("process", name))
		bpm.stopProcessLocked(name)
	}

	processCtx, processCancel := context.WithCancel(bpm.ctx)
	info := &processInfo{
		cancel:      processCancel,
		description: description,
		startedAt:   time.Now(),
	}
	bpm.processes[name] = info

	bpm.wg.Add(1)
	go func() {
		defer bpm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background process panic",
					slog.String("type", "error"),
					slog.String("process", name),
					slog.Any("panic", r))
			}
			bpm.forget(name, info)
		}()

		slog.Info("Starting background process",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.String("description", description))

		fn(processCtx)

		slog.Info("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.Duration("ran_for", time.Since(info.startedAt)))
	}()
	return nil
}

func (bpm *BackgroundProcessManager) StopProcess(name string) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	bpm.stopProcessLocked(name)
}

func (bpm *BackgroundProcessManager) stopProcessLocked(name string) {
	if process, exists := bpm.processes[name]; exists {
		process.cancel()
		delete(bpm.processes, name)
		slog.Info("Stopped background process",
			slog.String("type", "sys"),
			slog.String("process", name))
	}
}

// forget drops a finished process unless it was already replaced.
func (bpm *BackgroundProcessManager) forget(name string, info *processInfo) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	if bpm.processes[name] == info {
		info.cancel()
		delete(bpm.processes, name)
	}
}

// Shutdown cancels every process and waits up to timeout for them to return.
func (bpm *BackgroundProcessManager) Shutdown(timeout time.Duration) error {
	bpm.mu.Lock()
	bpm.closed = true
	count := len(bpm.processes)
	bpm.mu.Unlock()

	slog.Info("Shutting down background processes",
		slog.String("type", "sys"),
		slog.Int("process_count", count))

	bpm.cancel()

	done := make(chan struct{})
	go func() {
		bpm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background processes stopped gracefully", slog.String("type", "sys"))
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "sys"),
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// Running lists the names of live processes, sorted.
func (bpm *BackgroundProcessManager) Running() []string {
	bpm.mu.RLock()
	defer bpm.mu.RUnlock()
	names := make([]string, 0, len(bpm.processes))
	for name := range bpm.processes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
