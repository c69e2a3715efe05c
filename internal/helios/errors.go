package helios

import (
	"errors"
	"fmt"
)

// Sentinel errors for device API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUserNotFound is returned by directory lookups when no record
	// matches the requested UUID. The device call itself succeeded; the
	// record simply does not exist.
	ErrUserNotFound = errors.New("helios: user not found")

	// ErrHTTPStatus is returned when the device answers with a non-2xx
	// HTTP status before any envelope can be decoded.
	ErrHTTPStatus = errors.New("helios: unexpected HTTP status")

	// ErrInvalidEnvelope is returned when a response body cannot be
	// decoded as the device's JSON envelope.
	ErrInvalidEnvelope = errors.New("helios: invalid response envelope")
)

// DeviceError is returned when the device understood a request but refused
// or failed it (envelope {"success": false, "error": {"code": N}}).
//
// The meaning of a code is endpoint-specific. Most callers treat any
// DeviceError as terminal; the enrollment engine is the one component that
// distinguishes transient from terminal codes while polling a capture
// session.
type DeviceError struct {
	// Code is the device-defined error code from the envelope.
	Code int
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("helios: device rejected request (code %d)", e.Code)
}

// IsDeviceCode reports whether err is a DeviceError carrying the given code.
func IsDeviceCode(err error, code int) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Code == code
}
