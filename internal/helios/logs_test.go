package helios

import (
	"context"
	"net/http"
	"testing"
)

func TestLogsSubscribe(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/log/subscribe" {
			t.Errorf("request = %s %s, want GET /api/log/subscribe", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("filter"); got != DefaultEventFilter {
			t.Errorf("filter param = %q, want %q", got, DefaultEventFilter)
		}
		// 7 days, expressed as seconds back from now.
		if got := r.URL.Query().Get("include"); got != "-604800" {
			t.Errorf("include param = %q, want -604800", got)
		}
		writeEnvelope(t, w, map[string]any{"id": 2135})
	}))

	id, err := NewLogs(client, "").Subscribe(context.Background(), 7)
	if err != nil {
		t.Fatalf("Subscribe() error = %v, want nil", err)
	}
	if id != 2135 {
		t.Errorf("Subscribe() id = %d, want 2135", id)
	}
}

func TestLogsSubscribeCustomFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "DoorOpenTooLong" {
			t.Errorf("filter param = %q, want DoorOpenTooLong", got)
		}
		writeEnvelope(t, w, map[string]any{"id": 1})
	}))

	if _, err := NewLogs(client, "DoorOpenTooLong").Subscribe(context.Background(), 1); err != nil {
		t.Fatalf("Subscribe() error = %v, want nil", err)
	}
}

func TestLogsPull(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/log/pull" {
			t.Errorf("request = %s %s, want GET /api/log/pull", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "2135" {
			t.Errorf("id param = %q, want 2135", got)
		}
		writeEnvelope(t, w, map[string]any{
			"events": []map[string]any{
				{
					"id":      101,
					"event":   "UserAuthenticated",
					"utcTime": 1767264000,
					"params":  map[string]any{"name": "Alice"},
				},
				{
					"id":      102,
					"event":   "UserAuthenticated",
					"utcTime": 1767267600,
					"params":  map[string]any{"name": "Bob"},
				},
			},
		})
	}))

	events, err := NewLogs(client, "").Pull(context.Background(), 2135)
	if err != nil {
		t.Fatalf("Pull() error = %v, want nil", err)
	}
	if len(events) != 2 {
		t.Fatalf("Pull() returned %d events, want 2", len(events))
	}
	first := events[0]
	if first.ID != 101 || first.Type != "UserAuthenticated" || first.UTCTime != 1767264000 || first.Params.Name != "Alice" {
		t.Errorf("first event = %+v, want id 101 / Alice at 1767264000", first)
	}
}

func TestLogsPullEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, map[string]any{"events": []map[string]any{}})
	}))

	events, err := NewLogs(client, "").Pull(context.Background(), 1)
	if err != nil {
		t.Fatalf("Pull() error = %v, want nil", err)
	}
	if len(events) != 0 {
		t.Errorf("Pull() returned %d events, want 0", len(events))
	}
}

func TestLogsUnsubscribe(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/log/unsubscribe" {
			t.Errorf("request = %s %s, want POST /api/log/unsubscribe", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "2135" {
			t.Errorf("id param = %q, want 2135", got)
		}
		writeEnvelope(t, w, map[string]any{})
	}))

	if err := NewLogs(client, "").Unsubscribe(context.Background(), 2135); err != nil {
		t.Fatalf("Unsubscribe() error = %v, want nil", err)
	}
}
