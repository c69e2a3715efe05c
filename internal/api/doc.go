// Package api provides the HTTP REST API and WebSocket server for the
// intercom daemon.
//
// It exposes door control, directory management, fingerprint enrollment
// and the access-event archive to local clients (dashboards, scripts,
// home-automation glue). Routes live under /api/v1:
//
//	GET  /health                      liveness and version (public)
//	POST /auth/login                  operator login, returns a JWT (public)
//	POST /auth/ws-ticket              single-use WebSocket ticket
//	GET  /doors/{id}                  door lock state
//	POST /doors/{id}/open             momentary release
//	POST /doors/{id}/lock             end a hold
//	POST /doors/{id}/unlock           hold open
//	GET  /users                       directory listing
//	POST /users                       create user
//	GET  /users/{uuid}                full user record
//	DELETE /users/{uuid}              delete user
//	PATCH /users/{uuid}/access        patch PIN / fingerprint record
//	POST /users/{uuid}/fingerprints   run a fingerprint capture (blocking)
//	GET  /events                      archived access events
//	GET  /events/device               raw device entry log
//	GET  /ws?ticket=...               WebSocket event feed
//
// Authentication is a single operator account (see internal/auth): login
// issues an HS256 JWT, protected routes require it as a Bearer token, and
// WebSocket connections exchange it for a single-use ticket so the token
// never appears in a URL.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
