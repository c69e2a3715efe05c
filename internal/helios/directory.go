package helios

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Multipart field names the directory endpoints expect. Reads take their
// query blob under blob-json; writes take the records under blob-dir_new.
const (
	dirReadField  = "blob-json"
	dirWriteField = "blob-dir_new"
)

// User is a directory record. Fields the device was not asked for (or does
// not store) come back empty.
type User struct {
	UUID   string  `json:"uuid,omitempty"`
	Name   string  `json:"name,omitempty"`
	Email  string  `json:"email,omitempty"`
	Access *Access `json:"access,omitempty"`
}

// Access is the access-credential section of a directory record.
type Access struct {
	// PIN is the numeric door code, if one is assigned.
	PIN *int `json:"pin,omitempty"`

	// Fingerprints is the stored fingerprint record: a semicolon-delimited
	// ordered sequence of template strings, each suffixed with its finger
	// index ("<template>#fid=<n>"). Opaque to the client apart from the
	// merge in MergeFingerprint.
	Fingerprints string `json:"fpt,omitempty"`
}

// AccessUpdate is a sparse patch to a user's access configuration. Only
// non-nil fields are sent; the device leaves absent fields untouched.
type AccessUpdate struct {
	PIN          *int    `json:"pin,omitempty"`
	Fingerprints *string `json:"fpt,omitempty"`
}

// Directory performs CRUD operations on device user records.
//
// The wire format nominally supports batches; this gateway follows the
// device documentation's convention of one user per request.
type Directory struct {
	client *Client
}

// NewDirectory creates a directory gateway on the given client.
func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

// dirUsers is the result payload shared by query and get.
type dirUsers struct {
	Users []User `json:"users"`
}

// Query lists all users, returning only the requested fields
// (e.g. "name", "access.pin") per record.
func (d *Directory) Query(ctx context.Context, fields []string) ([]User, error) {
	blob, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, fmt.Errorf("encoding directory query: %w", err)
	}

	result, err := d.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/dir/query",
		form:   map[string]string{dirReadField: string(blob)},
	})
	if err != nil {
		return nil, fmt.Errorf("querying directory: %w", err)
	}

	var payload dirUsers
	if err := decodeResult(result, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// Get fetches one full user record by UUID.
//
// A user that does not exist is not a device failure: the call succeeds
// with an empty batch and Get returns ErrUserNotFound.
func (d *Directory) Get(ctx context.Context, uuid string) (*User, error) {
	blob, err := json.Marshal(map[string]any{
		"users": []map[string]string{{"uuid": uuid}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding directory get: %w", err)
	}

	result, err := d.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/dir/get",
		form:   map[string]string{dirReadField: string(blob)},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", uuid, err)
	}

	var payload dirUsers
	if err := decodeResult(result, &payload); err != nil {
		return nil, err
	}
	if len(payload.Users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uuid)
	}
	return &payload.Users[0], nil
}

// Create adds a new user with a name, email and access PIN.
// The device assigns the UUID.
func (d *Directory) Create(ctx context.Context, name, email string, pin int) error {
	blob, err := json.Marshal(map[string]any{
		"users": []map[string]any{{
			"name":   name,
			"email":  email,
			"access": map[string]int{"pin": pin},
		}},
	})
	if err != nil {
		return fmt.Errorf("encoding directory create: %w", err)
	}

	if _, err := d.client.do(ctx, request{
		method: http.MethodPut,
		path:   "/dir/create",
		form:   map[string]string{dirWriteField: string(blob)},
	}); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// UpdateAccess patches a user's access configuration. Only the fields set
// on upd are transmitted; merge semantics are the device's responsibility.
func (d *Directory) UpdateAccess(ctx context.Context, uuid string, upd AccessUpdate) error {
	blob, err := json.Marshal(map[string]any{
		"users": []map[string]any{{
			"uuid":   uuid,
			"access": upd,
		}},
	})
	if err != nil {
		return fmt.Errorf("encoding access update: %w", err)
	}

	if _, err := d.client.do(ctx, request{
		method: http.MethodPut,
		path:   "/dir/update",
		form:   map[string]string{dirWriteField: string(blob)},
	}); err != nil {
		return fmt.Errorf("updating access for %s: %w", uuid, err)
	}
	return nil
}

// Delete removes a user record by UUID.
func (d *Directory) Delete(ctx context.Context, uuid string) error {
	blob, err := json.Marshal(map[string]any{
		"users": []map[string]string{{"uuid": uuid}},
	})
	if err != nil {
		return fmt.Errorf("encoding directory delete: %w", err)
	}

	if _, err := d.client.do(ctx, request{
		method: http.MethodPut,
		path:   "/dir/delete",
		form:   map[string]string{dirWriteField: string(blob)},
	}); err != nil {
		return fmt.Errorf("deleting user %s: %w", uuid, err)
	}
	return nil
}
