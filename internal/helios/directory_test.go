package helios

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

// multipartField parses the request's multipart body and returns the named
// field's value.
func multipartField(t *testing.T, r *http.Request, field string) string {
	t.Helper()

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parsing multipart form: %v", err)
	}
	return r.FormValue(field)
}

func TestDirectoryQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/dir/query" {
			t.Errorf("request = %s %s, want POST /api/dir/query", r.Method, r.URL.Path)
		}

		var blob struct {
			Fields []string `json:"fields"`
		}
		if err := json.Unmarshal([]byte(multipartField(t, r, "blob-json")), &blob); err != nil {
			t.Fatalf("decoding query blob: %v", err)
		}
		if len(blob.Fields) != 2 || blob.Fields[0] != "name" || blob.Fields[1] != "access.pin" {
			t.Errorf("query fields = %v, want [name access.pin]", blob.Fields)
		}

		writeEnvelope(t, w, map[string]any{
			"users": []map[string]any{
				{"uuid": "u-1", "name": "Alice", "access": map[string]any{"pin": 1234}},
				{"uuid": "u-2", "name": "Bob"},
			},
		})
	}))

	users, err := NewDirectory(client).Query(context.Background(), []string{"name", "access.pin"})
	if err != nil {
		t.Fatalf("Query() error = %v, want nil", err)
	}
	if len(users) != 2 {
		t.Fatalf("Query() returned %d users, want 2", len(users))
	}
	if users[0].Name != "Alice" || users[0].Access == nil || users[0].Access.PIN == nil || *users[0].Access.PIN != 1234 {
		t.Errorf("first user = %+v, want Alice with pin 1234", users[0])
	}
	if users[1].Access != nil {
		t.Errorf("second user access = %+v, want nil", users[1].Access)
	}
}

func TestDirectoryGet(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dir/get" {
			t.Errorf("request path = %s, want /api/dir/get", r.URL.Path)
		}

		var blob struct {
			Users []struct {
				UUID string `json:"uuid"`
			} `json:"users"`
		}
		if err := json.Unmarshal([]byte(multipartField(t, r, "blob-json")), &blob); err != nil {
			t.Fatalf("decoding get blob: %v", err)
		}
		if len(blob.Users) != 1 || blob.Users[0].UUID != "u-1" {
			t.Errorf("get blob users = %+v, want single uuid u-1", blob.Users)
		}

		writeEnvelope(t, w, map[string]any{
			"users": []map[string]any{
				{"uuid": "u-1", "name": "Alice", "access": map[string]any{"fpt": "X#fid=3"}},
			},
		})
	}))

	user, err := NewDirectory(client).Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if user.UUID != "u-1" || user.Name != "Alice" {
		t.Errorf("Get() user = %+v, want u-1/Alice", user)
	}
	if user.Access == nil || user.Access.Fingerprints != "X#fid=3" {
		t.Errorf("Get() access = %+v, want fpt X#fid=3", user.Access)
	}
}

func TestDirectoryGetNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, map[string]any{"users": []map[string]any{}})
	}))

	_, err := NewDirectory(client).Get(context.Background(), "missing")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Get() error = %v, want ErrUserNotFound", err)
	}
}

func TestDirectoryCreate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/dir/create" {
			t.Errorf("request = %s %s, want PUT /api/dir/create", r.Method, r.URL.Path)
		}

		var blob struct {
			Users []struct {
				Name   string `json:"name"`
				Email  string `json:"email"`
				Access struct {
					PIN int `json:"pin"`
				} `json:"access"`
			} `json:"users"`
		}
		if err := json.Unmarshal([]byte(multipartField(t, r, "blob-dir_new")), &blob); err != nil {
			t.Fatalf("decoding create blob: %v", err)
		}
		if len(blob.Users) != 1 {
			t.Fatalf("create blob has %d users, want 1", len(blob.Users))
		}
		u := blob.Users[0]
		if u.Name != "Carol" || u.Email != "carol@example.com" || u.Access.PIN != 4321 {
			t.Errorf("create blob user = %+v, want Carol/carol@example.com/4321", u)
		}

		writeEnvelope(t, w, map[string]any{})
	}))

	if err := NewDirectory(client).Create(context.Background(), "Carol", "carol@example.com", 4321); err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
}

func TestDirectoryUpdateAccess(t *testing.T) {
	type wireAccess struct {
		PIN *int    `json:"pin"`
		Fpt *string `json:"fpt"`
	}

	tests := []struct {
		name   string
		update AccessUpdate
		want   wireAccess
	}{
		{
			name:   "fingerprints only",
			update: AccessUpdate{Fingerprints: strPtr("AB#fid=6")},
			want:   wireAccess{Fpt: strPtr("AB#fid=6")},
		},
		{
			name:   "pin only",
			update: AccessUpdate{PIN: intPtr(9999)},
			want:   wireAccess{PIN: intPtr(9999)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBlob string
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut || r.URL.Path != "/api/dir/update" {
					t.Errorf("request = %s %s, want PUT /api/dir/update", r.Method, r.URL.Path)
				}
				gotBlob = multipartField(t, r, "blob-dir_new")
				writeEnvelope(t, w, map[string]any{})
			}))

			if err := NewDirectory(client).UpdateAccess(context.Background(), "u-1", tt.update); err != nil {
				t.Fatalf("UpdateAccess() error = %v, want nil", err)
			}

			var blob struct {
				Users []struct {
					UUID   string     `json:"uuid"`
					Access wireAccess `json:"access"`
				} `json:"users"`
			}
			if err := json.Unmarshal([]byte(gotBlob), &blob); err != nil {
				t.Fatalf("decoding update blob: %v", err)
			}
			if len(blob.Users) != 1 || blob.Users[0].UUID != "u-1" {
				t.Fatalf("update blob users = %+v, want single uuid u-1", blob.Users)
			}

			got := blob.Users[0].Access
			switch {
			case tt.want.PIN != nil:
				if got.PIN == nil || *got.PIN != *tt.want.PIN {
					t.Errorf("update pin = %v, want %d", got.PIN, *tt.want.PIN)
				}
				if got.Fpt != nil {
					t.Errorf("update fpt = %q, want absent", *got.Fpt)
				}
			case tt.want.Fpt != nil:
				if got.Fpt == nil || *got.Fpt != *tt.want.Fpt {
					t.Errorf("update fpt = %v, want %q", got.Fpt, *tt.want.Fpt)
				}
				if got.PIN != nil {
					t.Errorf("update pin = %d, want absent", *got.PIN)
				}
			}
		})
	}
}

func TestDirectoryDelete(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/dir/delete" {
			t.Errorf("request = %s %s, want PUT /api/dir/delete", r.Method, r.URL.Path)
		}
		if got := multipartField(t, r, "blob-dir_new"); got != `{"users":[{"uuid":"u-9"}]}` {
			t.Errorf("delete blob = %s, want single uuid u-9", got)
		}
		writeEnvelope(t, w, map[string]any{})
	}))

	if err := NewDirectory(client).Delete(context.Background(), "u-9"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
