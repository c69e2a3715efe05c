// Package influxdb provides optional time-series storage for the intercom
// daemon.
//
// It wraps the official influxdb-client-go v2 library with the daemon's
// patterns for connection management, batched writes, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series data for:
//   - Access events pulled from the device log (who entered, when)
//   - Derived door state observations
//   - Fingerprint enrollment outcomes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteAccessEvent("Alice", "UserAuthenticated", eventTime)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are surfaced via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
