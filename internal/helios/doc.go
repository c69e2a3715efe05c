// Package helios is a client for the HTTP API exposed by Helios-style IP
// intercom / access-control devices.
//
// The device speaks HTTPS with a self-signed certificate and HTTP basic
// auth, and every endpoint answers with the same JSON envelope:
//
//	{"success": true,  "result": {...}}
//	{"success": false, "error": {"code": 18}}
//
// This package manages:
//   - Request plumbing (TLS policy, credentials, query and multipart bodies)
//   - Directory CRUD (users, access PINs, fingerprint templates)
//   - Switch (door) status and control
//   - Event log subscriptions
//   - The fingerprint enrollment state machine
//
// # Architecture
//
// Client is the stateless request executor every gateway is built on.
// Directory, Switches and Logs are thin request/response gateways.
// Enroller is the one stateful component: it drives a device capture
// session over wall-clock time and merges the captured template into the
// target user's directory record.
//
//	Intercom → {Enroller, Directory, Switches, Logs} → Client → device
//
// The package never logs and never retries; it returns structured
// outcomes and wrapped errors for the caller to act on. Errors from the
// device itself carry their device code as *DeviceError.
//
// # Usage
//
//	ic := helios.New(helios.Config{
//	    Host:     "192.168.1.50",
//	    Username: "admin",
//	    Password: "secret",
//	}, helios.Options{})
//
//	state, err := ic.DoorStatus(ctx, 1)
//	result, err := ic.EnrollFingerprint(ctx, userID, 6, 2)
package helios
