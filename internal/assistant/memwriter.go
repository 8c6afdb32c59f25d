package assistant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/memory"
)

const memoryWriteTimeout = 30 * time.Second

// MemoryJob is one exchange to persist to long-term memory.
type MemoryJob struct {
	UserID   string
	Messages []memory.Message
	Metadata map[string]any
}

// MemoryWriter persists exchanges in the background so replies never wait
// on the memory backend. The queue is bounded; jobs that do not fit are
// dropped.
type MemoryWriter struct {
	store   memory.Store
	log     *logger.Logger
	onError func(MemoryJob, error)

	mu     sync.RWMutex
	closed bool
	queue  chan MemoryJob
	group  errgroup.Group
}

// MemoryWriterOption customises a MemoryWriter.
type MemoryWriterOption func(*MemoryWriter)

// WithWriteErrorHandler replaces the default log-and-continue handling of
// failed writes.
func WithWriteErrorHandler(fn func(MemoryJob, error)) MemoryWriterOption {
	return func(w *MemoryWriter) { w.onError = fn }
}

// NewMemoryWriter starts workers goroutines draining a queue of queueSize.
func NewMemoryWriter(store memory.Store, queueSize, workers int, log *logger.Logger, opts ...MemoryWriterOption) *MemoryWriter {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	w := &MemoryWriter{
		store: store,
		log:   log,
		queue: make(chan MemoryJob, queueSize),
	}
	for _, opt := range opts {
		opt(w)
	}
	for i := 0; i < workers; i++ {
		w.group.Go(func() error {
			for job := range w.queue {
				w.write(job)
			}
			return nil
		})
	}
	return w
}

// Enqueue schedules job. It reports false when the queue is full or the
// writer is closed.
func (w *MemoryWriter) Enqueue(job MemoryJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- job:
		return true
	default:
		w.log.Warn("memory queue full, dropping exchange", "user_id", job.UserID)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (w *MemoryWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	return w.group.Wait()
}

func (w *MemoryWriter) write(job MemoryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), memoryWriteTimeout)
	defer cancel()

	if _, err := w.store.Add(ctx, job.Messages, job.UserID, job.Metadata); err != nil {
		if w.onError != nil {
			w.onError(job, err)
			return
		}
		w.log.Warn("memory write failed", "user_id", job.UserID, "error", err)
	}
}
