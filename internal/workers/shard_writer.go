package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"prohori/pkg/e"
)

// WriteFunc is one mutation. It runs on the shard goroutine that owns its key.
type WriteFunc func(ctx context.Context) error

type writeJob struct {
	ctx    context.Context
	fn     WriteFunc
	result chan error
}

// ShardWriter serializes mutations per key: every key hashes to exactly one
// shard and each shard runs its jobs one at a time. Keys on different shards
// run in parallel.
type ShardWriter struct {
	logger *slog.Logger
	shards []chan writeJob

	startOnce sync.Once
	done      chan struct{}
}

func NewShardWriter(shards, queueSize int, logger *slog.Logger) *ShardWriter {
	if shards <= 0 {
		shards = 16
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	w := &ShardWriter{
		logger: logger,
		shards: make([]chan writeJob, shards),
		done:   make(chan struct{}),
	}
	for i := range w.shards {
		w.shards[i] = make(chan writeJob, queueSize)
	}
	return w
}

// Run processes jobs until ctx is done. Jobs still queued at that point are
// answered with ErrCanceled and never executed.
func (w *ShardWriter) Run(ctx context.Context) {
	started := false
	w.startOnce.Do(func() { started = true })
	if !started {
		return
	}

	var wg sync.WaitGroup
	for i := range w.shards {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.worker(ctx, w.shards[i])
		}(i)
	}
	w.logger.Info("shard writer started", slog.Int("shards", len(w.shards)))

	wg.Wait()
	close(w.done)
	w.logger.Info("shard writer stopped")
}

// Do queues fn on the shard owning key and waits for its result. If ctx
// ends before fn starts, fn never runs and a timeout error is returned.
func (w *ShardWriter) Do(ctx context.Context, key uuid.UUID, fn WriteFunc) error {
	const op = "workers.ShardWriter.Do"

	job := writeJob{ctx: ctx, fn: fn, result: make(chan error, 1)}
	shard := w.shards[xxhash.Sum64(key[:])%uint64(len(w.shards))]

	select {
	case shard <- job:
	case <-ctx.Done():
		return e.FromContext(ctx, op)
	case <-w.done:
		return fmt.Errorf("%s: writer stopped: %w", op, e.ErrCanceled)
	}

	select {
	case err := <-job.result:
		return err
	case <-w.done:
		select {
		case err := <-job.result:
			return err
		default:
			return fmt.Errorf("%s: writer stopped: %w", op, e.ErrCanceled)
		}
	}
}

func (w *ShardWriter) worker(ctx context.Context, jobs <-chan writeJob) {
	for {
		select {
		case <-ctx.Done():
			w.drain(jobs)
			return
		case job := <-jobs:
			w.process(job)
		}
	}
}

func (w *ShardWriter) process(job writeJob) {
	if err := job.ctx.Err(); err != nil {
		job.result <- e.FromContext(job.ctx, "workers.ShardWriter.process")
		return
	}
	job.result <- job.fn(job.ctx)
}

func (w *ShardWriter) drain(jobs <-chan writeJob) {
	for {
		select {
		case job := <-jobs:
			job.result <- fmt.Errorf("workers.ShardWriter.drain: %w", e.ErrCanceled)
		default:
			return
		}
	}
}
