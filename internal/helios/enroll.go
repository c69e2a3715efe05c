package helios

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// terminalNoFingerCode is the device error code reported by a capture
// session once no finger has been presented for too long. Any other code
// from a result poll means the capture is still in progress.
const terminalNoFingerCode = 12

// Enrollment timing defaults. The poll cadence is the device
// documentation's recommended 3 seconds; the ceiling matches the device's
// own capture-session lifetime, so by the time it fires the session is
// dead on the device side too.
const (
	DefaultEnrollPollInterval = 3 * time.Second
	DefaultEnrollMaxDuration  = 60 * time.Second
)

// EnrollmentStatus is the terminal state of one enrollment session.
type EnrollmentStatus string

// Terminal enrollment states.
const (
	// EnrollmentCaptured: the device captured a template and it was
	// merged into the target user's directory record.
	EnrollmentCaptured EnrollmentStatus = "captured"

	// EnrollmentFailed: the device refused to start the session or
	// reported a terminal capture failure. Code carries the device code.
	EnrollmentFailed EnrollmentStatus = "failed"

	// EnrollmentTimedOut: the client-side ceiling elapsed without a
	// terminal device response.
	EnrollmentTimedOut EnrollmentStatus = "timed_out"
)

// EnrollmentResult is the structured outcome of one enrollment. Exactly
// one is produced per session; the engine performs no logging or other
// side effects beyond the directory merge on capture.
type EnrollmentResult struct {
	Status EnrollmentStatus

	// Template is the captured template blob. Set only on Captured.
	Template string

	// Code is the device error code. Set only on Failed.
	Code int
}

// EnrollConfig contains enrollment timing settings.
type EnrollConfig struct {
	// PollInterval is the delay between capture-result polls.
	// Zero means DefaultEnrollPollInterval.
	PollInterval time.Duration

	// MaxDuration is the hard ceiling on one enrollment, after which the
	// session is abandoned as TimedOut. Zero means
	// DefaultEnrollMaxDuration. A value shorter than PollInterval still
	// yields one result poll before the session is declared timed out.
	MaxDuration time.Duration
}

// Enroller drives fingerprint capture sessions.
//
// One call to Enroll owns one device session for its whole lifetime:
//
//	Idle → Starting → Polling → {Captured | Failed | TimedOut}
//
// Polls never overlap: the interval timer is re-armed only after the
// previous poll has returned, so responses are handled strictly in request
// order. The device enforces one capture per reader; this client does not
// arbitrate concurrent Enroll calls against the same reader.
type Enroller struct {
	client       *Client
	directory    *Directory
	pollInterval time.Duration
	maxDuration  time.Duration
}

// NewEnroller creates an enrollment engine on the given client and
// directory gateway.
func NewEnroller(client *Client, directory *Directory, cfg EnrollConfig) *Enroller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultEnrollPollInterval
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultEnrollMaxDuration
	}
	return &Enroller{
		client:       client,
		directory:    directory,
		pollInterval: cfg.PollInterval,
		maxDuration:  cfg.MaxDuration,
	}
}

// Enroll captures a fingerprint on the given reader and stores it on the
// user identified by userID under the given finger index.
//
// On capture the engine fetches the user's current record immediately
// before merging, prepends the new template to any existing fingerprint
// record (previously enrolled fingers are never dropped) and writes the
// merged value back. The returned result reflects the device outcome;
// a failure of the final directory write is returned as an error.
//
// Cancelling ctx during polling abandons the session: polling stops before
// the next request and no directory write happens. The device-side session
// still times out on its own.
func (e *Enroller) Enroll(ctx context.Context, userID string, finger, reader int) (EnrollmentResult, error) {
	// Starting. A device refusal here means no session was created.
	session, err := e.start(ctx, reader)
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return EnrollmentResult{Status: EnrollmentFailed, Code: devErr.Code}, nil
		}
		return EnrollmentResult{}, err
	}

	// Polling.
	deadline := time.Now().Add(e.maxDuration)
	timer := time.NewTimer(e.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return EnrollmentResult{}, fmt.Errorf("enrollment abandoned: %w", ctx.Err())
		case <-timer.C:
		}

		template, err := e.pollResult(ctx, session)
		switch {
		case err == nil:
			return e.storeTemplate(ctx, userID, finger, template)
		case IsDeviceCode(err, terminalNoFingerCode):
			return EnrollmentResult{Status: EnrollmentFailed, Code: terminalNoFingerCode}, nil
		case isDeviceError(err):
			// Transient: finger not placed yet, scan in progress.
			// Keep polling.
		default:
			return EnrollmentResult{}, err
		}

		// The ceiling is evaluated only after a transient poll, so every
		// session performs at least one poll even when MaxDuration is
		// shorter than PollInterval.
		if time.Now().After(deadline) {
			return EnrollmentResult{Status: EnrollmentTimedOut}, nil
		}

		timer.Reset(e.pollInterval)
	}
}

// start begins a capture session on the reader and returns its session id.
func (e *Enroller) start(ctx context.Context, reader int) (int64, error) {
	query := url.Values{}
	query.Set("reader", strconv.Itoa(reader))

	result, err := e.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/fingerenroll/start",
		query:  query,
	})
	if err != nil {
		return 0, err
	}

	var payload struct {
		Session int64 `json:"session"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return 0, err
	}
	return payload.Session, nil
}

// pollResult queries the capture result for a session. On success it
// returns the captured template; device codes come back as *DeviceError.
func (e *Enroller) pollResult(ctx context.Context, session int64) (string, error) {
	query := url.Values{}
	query.Set("session", strconv.FormatInt(session, 10))

	result, err := e.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/fingerenroll/result",
		query:  query,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Template string `json:"template"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return "", err
	}
	return payload.Template, nil
}

// storeTemplate merges a captured template into the user's directory
// record. The fetch happens immediately before the write to keep the
// read-merge-write race window as small as the protocol allows.
func (e *Enroller) storeTemplate(ctx context.Context, userID string, finger int, template string) (EnrollmentResult, error) {
	user, err := e.directory.Get(ctx, userID)
	if err != nil {
		return EnrollmentResult{}, fmt.Errorf("fetching user for template merge: %w", err)
	}

	existing := ""
	if user.Access != nil {
		existing = user.Access.Fingerprints
	}

	merged := MergeFingerprint(existing, template, finger)
	if err := e.directory.UpdateAccess(ctx, userID, AccessUpdate{Fingerprints: &merged}); err != nil {
		return EnrollmentResult{}, fmt.Errorf("storing merged template: %w", err)
	}

	return EnrollmentResult{Status: EnrollmentCaptured, Template: template}, nil
}

// MergeFingerprint builds the new fingerprint record: the fresh template,
// suffixed with its finger index, prepended to the existing record. The
// existing value is preserved byte for byte — merging never drops a
// previously enrolled finger.
func MergeFingerprint(existing, template string, finger int) string {
	entry := fmt.Sprintf("%s#fid=%d", template, finger)
	if existing == "" {
		return entry
	}
	return entry + ";" + existing
}

// isDeviceError reports whether err is any *DeviceError.
func isDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}
