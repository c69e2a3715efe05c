package helios

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// defaultTimeout bounds one device request when no timeout is configured.
const defaultTimeout = 10 * time.Second

// Config contains connection settings for one device.
type Config struct {
	// Host is the device IP address or hostname. The API base URL is
	// derived from it as https://<host>/api.
	Host string

	// Username and Password are the HTTP basic-auth credentials of a
	// device account with API privileges.
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification. The
	// devices ship with self-signed certificates, so production
	// deployments routinely need this on. It is an explicit operator
	// trust decision; traffic is still encrypted.
	InsecureSkipVerify bool

	// Timeout is the per-request timeout. Zero means defaultTimeout.
	Timeout time.Duration
}

// Client is the stateless request executor for the device API.
//
// It owns the HTTP transport, TLS policy and credentials, and decodes the
// envelope every endpoint shares. It attaches no meaning to device error
// codes and never retries; both are the caller's concern.
//
// All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a device API client from the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- self-signed device certs, operator opt-in
			MinVersion:         tls.VersionTLS12,
		},
	}

	return &Client{
		baseURL:  "https://" + cfg.Host + "/api",
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// request describes one call to the device API.
type request struct {
	method string
	path   string

	// query carries URL query parameters (switch control, log
	// subscriptions, enrollment sessions).
	query url.Values

	// form carries multipart form fields. Directory endpoints take their
	// JSON payload as a blob under a fixed field name.
	form map[string]string
}

// envelope is the uniform response shape returned by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

// envelopeError carries the device-defined failure code.
type envelopeError struct {
	Code int `json:"code"`
}

// do executes one request against the device and returns the raw result
// payload from the envelope.
//
// Failure modes:
//   - transport or non-2xx HTTP failure: wrapped error, ErrHTTPStatus for
//     status failures
//   - undecodable body: ErrInvalidEnvelope
//   - {"success": false}: *DeviceError carrying the envelope's code
func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling device %s: %w", req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrHTTPStatus, req.path, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading device response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEnvelope, req.path, err)
	}

	if !env.Success {
		devErr := &DeviceError{}
		if env.Error != nil {
			devErr.Code = env.Error.Code
		}
		return nil, devErr
	}

	return env.Result, nil
}

// buildRequest assembles the HTTP request: URL with query string, multipart
// body when form fields are present, and basic-auth credentials.
func (c *Client) buildRequest(ctx context.Context, req request) (*http.Request, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	if len(req.form) > 0 {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		for field, value := range req.form {
			if err := writer.WriteField(field, value); err != nil {
				return nil, fmt.Errorf("writing multipart field %s: %w", field, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("finalising multipart body: %w", err)
		}
		body = buf
		contentType = writer.FormDataContentType()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building device request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.SetBasicAuth(c.username, c.password)

	return httpReq, nil
}

// decodeResult unmarshals an envelope result payload into dst.
func decodeResult(result json.RawMessage, dst any) error {
	if len(result) == 0 {
		return fmt.Errorf("%w: empty result payload", ErrInvalidEnvelope)
	}
	if err := json.Unmarshal(result, dst); err != nil {
		return fmt.Errorf("%w: decoding result: %w", ErrInvalidEnvelope, err)
	}
	return nil
}
