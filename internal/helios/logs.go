package helios

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultEventFilter is the event type subscribed to when no filter is
// configured: successful authentications at the door.
const DefaultEventFilter = "UserAuthenticated"

// secondsPerDay converts a trailing window in days to the device's
// include parameter, which takes seconds relative to now.
const secondsPerDay = 86400

// Event is one device log event. UTCTime is Unix seconds; presentation
// (formatting, timezone) is the caller's concern.
type Event struct {
	ID      int64       `json:"id"`
	Type    string      `json:"event"`
	UTCTime int64       `json:"utcTime"`
	Params  EventParams `json:"params"`
}

// EventParams carries the event-type-specific payload. For access events
// the device reports the authenticated user's display name.
type EventParams struct {
	Name string `json:"name"`
}

// Logs manages event-log subscriptions on the device.
//
// The device buffers matching events per subscription; Pull drains the
// buffer. Subscriptions are device-held state and expire on their own, but
// callers should Unsubscribe when done rather than rely on expiry.
type Logs struct {
	client *Client
	filter string
}

// NewLogs creates a log gateway on the given client. An empty filter
// selects DefaultEventFilter.
func NewLogs(client *Client, filter string) *Logs {
	if filter == "" {
		filter = DefaultEventFilter
	}
	return &Logs{client: client, filter: filter}
}

// Subscribe creates a subscription for filtered events within the trailing
// windowDays and returns its id.
func (l *Logs) Subscribe(ctx context.Context, windowDays int) (int64, error) {
	query := url.Values{}
	query.Set("filter", l.filter)
	query.Set("include", fmt.Sprintf("-%d", windowDays*secondsPerDay))

	result, err := l.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/log/subscribe",
		query:  query,
	})
	if err != nil {
		return 0, fmt.Errorf("subscribing to %s events: %w", l.filter, err)
	}

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

// Pull retrieves the events currently buffered for a subscription.
func (l *Logs) Pull(ctx context.Context, subscriptionID int64) ([]Event, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(subscriptionID, 10))

	result, err := l.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/log/pull",
		query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("pulling subscription %d: %w", subscriptionID, err)
	}

	var payload struct {
		Events []Event `json:"events"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return nil, err
	}
	return payload.Events, nil
}

// Unsubscribe closes a subscription on the device.
func (l *Logs) Unsubscribe(ctx context.Context, subscriptionID int64) error {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(subscriptionID, 10))

	if _, err := l.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/log/unsubscribe",
		query:  query,
	}); err != nil {
		return fmt.Errorf("unsubscribing %d: %w", subscriptionID, err)
	}
	return nil
}
