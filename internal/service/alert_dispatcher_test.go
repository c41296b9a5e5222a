package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"prohori/internal/config"
	"prohori/internal/domain"
	"prohori/internal/service"
	mock_service "prohori/internal/service/mocks"
	"prohori/pkg/e"
)

func dispatchConfig(url string) config.DispatchConfig {
	return config.DispatchConfig{
		URL:         url,
		Workers:     1,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		PollTimeout: 10 * time.Millisecond,
		Timeout:     time.Second,
	}
}

func TestAlertDispatcher_Deliver_OK(t *testing.T) {
	t.Parallel()

	alert := domain.SosDispatch{AlertID: uuid.New(), Lat: 23.81, Lng: 90.41}

	var got domain.SosDispatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request: %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := service.NewAlertDispatcher(discard, dispatchConfig(srv.URL), nil)
	if !d.Deliver(context.Background(), alert) {
		t.Fatalf("expected delivery")
	}
	if got.AlertID != alert.AlertID || got.Lat != alert.Lat {
		t.Fatalf("webhook got %+v", got)
	}
}

func TestAlertDispatcher_Deliver_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := service.NewAlertDispatcher(discard, dispatchConfig(srv.URL), nil)
	if !d.Deliver(context.Background(), domain.SosDispatch{AlertID: uuid.New()}) {
		t.Fatalf("expected delivery on third attempt")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d", n)
	}
}

func TestAlertDispatcher_Deliver_GivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := service.NewAlertDispatcher(discard, dispatchConfig(srv.URL), nil)
	if d.Deliver(context.Background(), domain.SosDispatch{AlertID: uuid.New()}) {
		t.Fatalf("expected failure")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestAlertDispatcher_Deliver_NoURLLogs(t *testing.T) {
	t.Parallel()

	d := service.NewAlertDispatcher(discard, dispatchConfig(""), nil)
	if !d.Deliver(context.Background(), domain.SosDispatch{AlertID: uuid.New()}) {
		t.Fatalf("log-only dispatch must succeed")
	}
}

func TestAlertDispatcher_Run_DrainsQueue(t *testing.T) {
	t.Parallel()

	delivered := make(chan uuid.UUID, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a domain.SosDispatch
		_ = json.NewDecoder(r.Body).Decode(&a)
		delivered <- a.AlertID
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	q := mock_service.NewMockAlertQueue(ctrl)

	id := uuid.New()
	first := q.EXPECT().Dequeue(gomock.Any(), 10*time.Millisecond).Return(domain.SosDispatch{AlertID: id}, nil)
	q.EXPECT().
		Dequeue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, timeout time.Duration) (domain.SosDispatch, error) {
			select {
			case <-ctx.Done():
				return domain.SosDispatch{}, e.FromContext(ctx, "test")
			case <-time.After(timeout):
				return domain.SosDispatch{}, e.ErrAlertQueueEmpty
			}
		}).
		After(first).
		AnyTimes()

	d := service.NewAlertDispatcher(discard, dispatchConfig(srv.URL), q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case got := <-delivered:
		if got != id {
			t.Fatalf("delivered %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("alert was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}
