// Package auth provides authentication for the intercom daemon's local API.
//
// The daemon has a single operator account configured in config.yaml:
//   - Argon2id password hashing (OWASP 2025 recommendation), stored as a
//     PHC string so no plaintext secret lives in configuration
//   - Short-lived HS256 JWT access tokens for API requests
//
// Device credentials (basic auth to the intercom hardware) are a separate
// concern handled by the helios client.
package auth
