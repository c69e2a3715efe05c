package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// writePoint hands one point to the non-blocking write API. Dropped
// silently when the client is not connected; the series is telemetry,
// never the system of record.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

// WriteAccessEvent records one successful entry from the device log.
//
// The event's own device timestamp is used, not the ingestion time, so
// backfilled events land at the right point in the series.
//
// Parameters:
//   - userName: Display name of the authenticated user
//   - eventType: Device event type (e.g., "UserAuthenticated")
//   - at: Time the entry happened according to the device
func (c *Client) WriteAccessEvent(userName string, eventType string, at time.Time) {
	c.writePoint(
		"access_events",
		map[string]string{"event_type": eventType},
		map[string]interface{}{"user": userName, "count": 1},
		at,
	)
}

// WriteDoorState records a derived door state observation.
//
// Parameters:
//   - switchID: Device switch number
//   - state: Derived state ("locked", "unlocked", "temporarily_opened")
func (c *Client) WriteDoorState(switchID int, state string) {
	c.writePoint(
		"door_state",
		map[string]string{"switch": strconv.Itoa(switchID)},
		map[string]interface{}{"state": state},
		time.Now(),
	)
}

// WriteEnrollment records the outcome of a fingerprint enrollment.
//
// Parameters:
//   - userUUID: Directory UUID of the target user
//   - status: Terminal status ("captured", "failed", "timed_out")
func (c *Client) WriteEnrollment(userUUID string, status string) {
	c.writePoint(
		"enrollments",
		map[string]string{"status": status},
		map[string]interface{}{"user_uuid": userUUID, "count": 1},
		time.Now(),
	)
}
