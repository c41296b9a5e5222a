package workers_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"prohori/internal/workers"
	"prohori/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWriter(t *testing.T, shards int) *workers.ShardWriter {
	t.Helper()
	w := workers.NewShardWriter(shards, 16, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)
	return w
}

func TestShardWriter_SerializesSameKey(t *testing.T) {
	t.Parallel()

	w := startWriter(t, 8)
	key := uuid.New()

	var running, maxRunning int32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Do(context.Background(), key, func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				counter++
				time.Sleep(100 * time.Microsecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if maxRunning != 1 {
		t.Fatalf("same-key jobs overlapped: %d", maxRunning)
	}
}

func TestShardWriter_DifferentShardsRunInParallel(t *testing.T) {
	t.Parallel()

	const shards = 4
	w := startWriter(t, shards)

	a := uuid.New()
	b := uuid.New()
	for xxhash.Sum64(a[:])%shards == xxhash.Sum64(b[:])%shards {
		b = uuid.New()
	}

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = w.Do(context.Background(), a, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- w.Do(context.Background(), b, func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job on another shard was blocked")
	}
	close(release)
}

func TestShardWriter_ReturnsFnError(t *testing.T) {
	t.Parallel()

	w := startWriter(t, 2)
	want := errors.New("boom")
	err := w.Do(context.Background(), uuid.New(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestShardWriter_ExpiredContextSkipsJob(t *testing.T) {
	t.Parallel()

	w := startWriter(t, 2)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	ran := false
	err := w.Do(ctx, uuid.New(), func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, e.ErrDeadline) {
		t.Fatalf("expected ErrDeadline, got %v", err)
	}
	if ran {
		t.Fatalf("job ran after its deadline")
	}
}

func TestShardWriter_StoppedWriterRejects(t *testing.T) {
	t.Parallel()

	w := workers.NewShardWriter(2, 1, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := w.Do(context.Background(), uuid.New(), func(context.Context) error { return nil })
	if !errors.Is(err, e.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}
