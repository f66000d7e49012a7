package sse

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultQueueSize is the capacity of each update queue
const DefaultQueueSize = 1024

// Refresher performs the targeted fetches triggered by update notifications
type Refresher interface {
	// RefreshSplits fetches split changes up to at least changeNumber
	RefreshSplits(ctx context.Context, changeNumber int64) error

	// RefreshSegment fetches changes of one segment up to at least changeNumber
	RefreshSegment(ctx context.Context, name string, changeNumber int64) error

	// LocalKill marks a split as killed in the local cache
	LocalKill(ctx context.Context, splitName, defaultTreatment string, changeNumber int64) error
}

type splitTask struct {
	changeNumber int64
	kill         *FlagKill
}

type segmentTask struct {
	name         string
	changeNumber int64
}

// Workers consume queued split and segment updates, one goroutine per queue.
// Updates that pile up while a refresh is running are coalesced so only the
// highest change number is fetched.
type Workers struct {
	refresher Refresher
	splits    chan splitTask
	segments  chan segmentTask

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewWorkers creates stopped workers backed by queues of the given size.
// A size of 0 uses DefaultQueueSize.
func NewWorkers(refresher Refresher, queueSize int) *Workers {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Workers{
		refresher: refresher,
		splits:    make(chan splitTask, queueSize),
		segments:  make(chan segmentTask, queueSize),
	}
}

// AddSplitUpdate queues a split refresh
func (w *Workers) AddSplitUpdate(changeNumber int64) {
	w.enqueueSplit(splitTask{changeNumber: changeNumber})
}

// AddSplitKill queues a local kill followed by a split refresh
func (w *Workers) AddSplitKill(kill FlagKill) {
	w.enqueueSplit(splitTask{changeNumber: kill.ChangeNumber, kill: &kill})
}

// AddSegmentUpdate queues a segment refresh
func (w *Workers) AddSegmentUpdate(name string, changeNumber int64) {
	select {
	case w.segments <- segmentTask{name: name, changeNumber: changeNumber}:
	default:
		slog.Warn("Segment update queue full, dropping update",
			"segment", name, "change_number", changeNumber)
	}
}

func (w *Workers) enqueueSplit(task splitTask) {
	select {
	case w.splits <- task:
	default:
		slog.Warn("Split update queue full, dropping update", "change_number", task.changeNumber)
	}
}

// Start launches the worker goroutines. It is a no-op if they already run.
func (w *Workers) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.runSplits(gctx)
		return nil
	})
	g.Go(func() error {
		w.runSegments(gctx)
		return nil
	})

	w.cancel = cancel
	w.group = g
	slog.Debug("Update workers started")
}

// Stop cancels in-flight refreshes and waits for the workers to exit.
// Queued updates are kept for the next Start.
func (w *Workers) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}

	w.cancel()
	_ = w.group.Wait()
	w.cancel = nil
	w.group = nil
	slog.Debug("Update workers stopped")
}

// Running reports whether the workers are started
func (w *Workers) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *Workers) runSplits(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.splits:
			batch := []splitTask{task}
		drain:
			for {
				select {
				case next := <-w.splits:
					batch = append(batch, next)
				default:
					break drain
				}
			}
			w.applySplits(ctx, batch)
		}
	}
}

func (w *Workers) applySplits(ctx context.Context, batch []splitTask) {
	var target int64
	for _, task := range batch {
		if task.kill != nil {
			err := w.refresher.LocalKill(ctx, task.kill.SplitName, task.kill.DefaultTreatment, task.changeNumber)
			if err != nil {
				slog.Error("Failed to kill split locally",
					"split", task.kill.SplitName, "change_number", task.changeNumber, "error", err)
			}
		}
		target = max(target, task.changeNumber)
	}

	if err := w.refresher.RefreshSplits(ctx, target); err != nil && ctx.Err() == nil {
		slog.Error("Failed to refresh splits", "change_number", target, "error", err)
	}
}

func (w *Workers) runSegments(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.segments:
			pending := map[string]int64{task.name: task.changeNumber}
			order := []string{task.name}
		drain:
			for {
				select {
				case next := <-w.segments:
					if _, seen := pending[next.name]; !seen {
						order = append(order, next.name)
					}
					pending[next.name] = max(pending[next.name], next.changeNumber)
				default:
					break drain
				}
			}
			for _, name := range order {
				if ctx.Err() != nil {
					return
				}
				if err := w.refresher.RefreshSegment(ctx, name, pending[name]); err != nil && ctx.Err() == nil {
					slog.Error("Failed to refresh segment",
						"segment", name, "change_number", pending[name], "error", err)
				}
			}
		}
	}
}
