// Package events archives device access events and fans them out to the
// daemon's integrations.
//
// The device keeps its own event log, but only for a bounded window and
// only reachable while the device is up. The Recorder maintains a rolling
// subscription on the device, periodically pulls new events, and the Store
// persists them in SQLite so history survives device reboots and log
// rotation. Each new event is also pushed to MQTT, InfluxDB and WebSocket
// subscribers when those integrations are enabled.
//
//	device log ──pull── Recorder ──┬── Store (SQLite archive)
//	                               ├── MQTT (intercom/event/access)
//	                               ├── InfluxDB (access_events)
//	                               └── WebSocket broadcast
//
// Deduplication happens at the Store: the device assigns each event an id
// that is unique per event type, and re-pulled events are dropped on the
// (device_event_id, event_type) unique constraint.
package events
