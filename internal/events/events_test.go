package events

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"prohori/internal/domain"
)

func TestSubject(t *testing.T) {
	t.Parallel()

	cases := map[domain.EventType]string{
		domain.EventCreated:       "incidents.created",
		domain.EventStatusChanged: "incidents.status",
		domain.EventDeleted:       "incidents.deleted",
	}
	for typ, want := range cases {
		if got := Subject("incidents", typ); got != want {
			t.Fatalf("Subject(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var n Noop
	if err := n.Publish(context.Background(), domain.IncidentEvent{Type: domain.EventCreated, ID: uuid.New()}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
