//go:build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"prohori/internal/config"
	"prohori/internal/domain"
	"prohori/pkg/e"
)

func startRedis(t *testing.T) *Redis {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := NewRedis(ctx, config.RedisConfig{Enabled: true, Addr: fmt.Sprintf("%s:%s", host, port.Port())}, logger)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestAlertQueue_FIFO(t *testing.T) {
	r := startRedis(t)
	ctx := context.Background()
	q := NewAlertQueue(r.Client, "test:dispatch")

	first := domain.SosDispatch{AlertID: uuid.New(), Lat: 23.81, Lng: 90.41}
	second := domain.SosDispatch{AlertID: uuid.New(), Lat: 22.35, Lng: 91.78}
	for _, d := range []domain.SosDispatch{first, second} {
		if err := q.Enqueue(ctx, d); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	for _, want := range []domain.SosDispatch{first, second} {
		got, err := q.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got.AlertID != want.AlertID || got.Lat != want.Lat {
			t.Fatalf("got %+v want %+v", got, want)
		}
	}

	if _, err := q.Dequeue(ctx, time.Second); !errors.Is(err, e.ErrAlertQueueEmpty) {
		t.Fatalf("expected ErrAlertQueueEmpty, got %v", err)
	}
}

func TestSessionStore_SaveGetDeleteExpire(t *testing.T) {
	r := startRedis(t)
	ctx := context.Background()
	s := NewSessionStore(r)

	sess := domain.Session{Token: "tok", UserID: uuid.New(), Role: domain.RoleAdmin, ExpiresAt: time.Now().Add(time.Hour).UTC()}
	if err := s.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "tok")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != sess.UserID || got.Role != domain.RoleAdmin {
		t.Fatalf("session = %+v", got)
	}

	if err := s.Delete(ctx, "tok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "tok"); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.Save(ctx, domain.Session{Token: "short"}, 50*time.Millisecond); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}
