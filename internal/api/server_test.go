package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/doorlink/intercom-core/internal/auth"
	"github.com/doorlink/intercom-core/internal/events"
	"github.com/doorlink/intercom-core/internal/helios"
	"github.com/doorlink/intercom-core/internal/infrastructure/config"
	"github.com/doorlink/intercom-core/internal/infrastructure/logging"
)

const testJWTSecret = "unit-test-secret-with-32-chars!!"

// fakeGateway is a scriptable DeviceGateway for handler tests.
type fakeGateway struct {
	users     map[string]*helios.User
	state     helios.SwitchState
	stateErr  error
	actions   []helios.SwitchAction
	enrollRes helios.EnrollmentResult
	entries   []helios.AccessEntry
}

func newFakeGateway() *fakeGateway {
	pin := 1234
	return &fakeGateway{
		users: map[string]*helios.User{
			"u-1": {UUID: "u-1", Name: "Alice", Email: "alice@example.com", Access: &helios.Access{PIN: &pin, Fingerprints: "T#fid=6"}},
		},
		state:     helios.SwitchLocked,
		enrollRes: helios.EnrollmentResult{Status: helios.EnrollmentCaptured, Template: "AB12"},
	}
}

func (f *fakeGateway) Log(_ context.Context, _ int) ([]helios.AccessEntry, error) {
	return f.entries, nil
}

func (f *fakeGateway) DoorStatus(_ context.Context, _ int) (helios.SwitchState, error) {
	return f.state, f.stateErr
}

func (f *fakeGateway) ControlDoor(_ context.Context, action helios.SwitchAction, _ int) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeGateway) Users(_ context.Context) ([]helios.User, error) {
	out := make([]helios.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeGateway) User(_ context.Context, uuid string) (*helios.User, error) {
	u, ok := f.users[uuid]
	if !ok {
		return nil, helios.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeGateway) AddUser(_ context.Context, name, email string, pin int) error {
	f.users[name] = &helios.User{UUID: name, Name: name, Email: email, Access: &helios.Access{PIN: &pin}}
	return nil
}

func (f *fakeGateway) RemoveUser(_ context.Context, uuid string) error {
	if _, ok := f.users[uuid]; !ok {
		return helios.ErrUserNotFound
	}
	delete(f.users, uuid)
	return nil
}

func (f *fakeGateway) UpdateUserAccess(_ context.Context, uuid string, upd helios.AccessUpdate) error {
	u, ok := f.users[uuid]
	if !ok {
		return helios.ErrUserNotFound
	}
	if upd.PIN != nil {
		if u.Access == nil {
			u.Access = &helios.Access{}
		}
		u.Access.PIN = upd.PIN
	}
	if upd.Fingerprints != nil {
		if u.Access == nil {
			u.Access = &helios.Access{}
		}
		u.Access.Fingerprints = *upd.Fingerprints
	}
	return nil
}

func (f *fakeGateway) EnrollFingerprint(_ context.Context, uuid string, _, _ int) (helios.EnrollmentResult, error) {
	if _, ok := f.users[uuid]; !ok {
		return helios.EnrollmentResult{}, helios.ErrUserNotFound
	}
	return f.enrollRes, nil
}

// fakeArchive is a canned EventArchive.
type fakeArchive struct {
	events []events.ArchivedEvent
}

func (f *fakeArchive) Recent(_ context.Context, limit int) ([]events.ArchivedEvent, error) {
	if limit > 0 && limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

// newTestServer builds a Server wired to a fake gateway and returns it
// alongside an httptest server exposing its router.
func newTestServer(t *testing.T, gw DeviceGateway, archive EventArchive) (*Server, *httptest.Server) {
	t.Helper()

	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	s, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 120,
				Idle:  60,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
			Admin: config.AdminConfig{
				Username:     "admin",
				PasswordHash: hash,
			},
		},
		Logger:  logging.Default(),
		Device:  gw,
		Archive: archive,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.hub = NewHub(s.wsCfg, s.logger)

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(srv.Close)
	return s, srv
}

// bearerToken returns a signed access token accepted by the test server.
func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateAccessToken("admin", testJWTSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func authedRequest(t *testing.T, method, url string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	return req
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d", resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t, newFakeGateway(), nil)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestLogin(t *testing.T) {
	_, srv := newTestServer(t, newFakeGateway(), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid credentials", `{"username":"admin","password":"correct-horse"}`, http.StatusOK},
		{"wrong password", `{"username":"admin","password":"wrong"}`, http.StatusUnauthorized},
		{"wrong username", `{"username":"root","password":"correct-horse"}`, http.StatusUnauthorized},
		{"malformed body", `{not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("POST /auth/login error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body loginResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			claims, err := auth.ParseToken(body.AccessToken, testJWTSecret)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if claims.Subject != "admin" {
				t.Errorf("subject = %q, want admin", claims.Subject)
			}
			if body.TokenType != "Bearer" {
				t.Errorf("token_type = %q, want Bearer", body.TokenType)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, srv := newTestServer(t, newFakeGateway(), nil)

	// No token
	resp, err := http.Get(srv.URL + "/api/v1/users")
	if err != nil {
		t.Fatalf("GET /users error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// Garbage token
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /users error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// Valid token
	var users []userResponse
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/users", nil), http.StatusOK, &users)
	if len(users) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(users))
	}
	if users[0].Name != "Alice" {
		t.Errorf("name = %q, want Alice", users[0].Name)
	}
}

func TestDoorEndpoints(t *testing.T) {
	gw := newFakeGateway()
	gw.state = helios.SwitchUnlocked
	_, srv := newTestServer(t, gw, nil)

	var status doorStatusResponse
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/doors/1", nil), http.StatusOK, &status)
	if status.State != string(helios.SwitchUnlocked) {
		t.Errorf("state = %q, want %q", status.State, helios.SwitchUnlocked)
	}

	var cmd doorCommandResponse
	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/doors/1/open", nil), http.StatusOK, &cmd)
	if cmd.Action != string(helios.ActionOpen) {
		t.Errorf("action = %q, want %q", cmd.Action, helios.ActionOpen)
	}
	if len(gw.actions) != 1 || gw.actions[0] != helios.ActionOpen {
		t.Errorf("gateway actions = %v, want [open]", gw.actions)
	}

	// Malformed id never reaches the gateway
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/doors/zero", nil), http.StatusBadRequest, nil)
}

func TestUserEndpoints(t *testing.T) {
	gw := newFakeGateway()
	_, srv := newTestServer(t, gw, nil)

	var user userResponse
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/users/u-1", nil), http.StatusOK, &user)
	if user.Fingerprints != "T#fid=6" {
		t.Errorf("fingerprints = %q, want T#fid=6", user.Fingerprints)
	}

	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/users/u-missing", nil), http.StatusNotFound, nil)

	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users",
		[]byte(`{"name":"Carol","email":"carol@example.com","pin":4321}`)), http.StatusCreated, nil)
	if _, ok := gw.users["Carol"]; !ok {
		t.Error("Carol not created on gateway")
	}

	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users", []byte(`{"email":"x@example.com"}`)),
		http.StatusBadRequest, nil)

	doJSON(t, authedRequest(t, http.MethodPatch, srv.URL+"/api/v1/users/u-1/access",
		[]byte(`{"pin":9999}`)), http.StatusNoContent, nil)
	if got := *gw.users["u-1"].Access.PIN; got != 9999 {
		t.Errorf("pin = %d, want 9999", got)
	}

	doJSON(t, authedRequest(t, http.MethodPatch, srv.URL+"/api/v1/users/u-1/access", []byte(`{}`)),
		http.StatusBadRequest, nil)

	doJSON(t, authedRequest(t, http.MethodDelete, srv.URL+"/api/v1/users/u-1", nil), http.StatusNoContent, nil)
	if _, ok := gw.users["u-1"]; ok {
		t.Error("u-1 still present after delete")
	}
}

func TestEnrollEndpoint(t *testing.T) {
	gw := newFakeGateway()
	_, srv := newTestServer(t, gw, nil)

	var res enrollResponse
	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users/u-1/fingerprints",
		[]byte(`{"finger":6,"reader":2}`)), http.StatusOK, &res)
	if res.Status != string(helios.EnrollmentCaptured) {
		t.Errorf("status = %q, want %q", res.Status, helios.EnrollmentCaptured)
	}

	// Empty body selects device defaults
	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users/u-1/fingerprints", nil),
		http.StatusOK, &res)

	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users/u-missing/fingerprints", nil),
		http.StatusNotFound, nil)
}

func TestStateCallbacksFire(t *testing.T) {
	gw := newFakeGateway()
	gw.state = helios.SwitchUnlocked
	s, srv := newTestServer(t, gw, nil)

	var doorStates, enrollments []string
	s.onDoorState = func(switchID int, state string) {
		doorStates = append(doorStates, strconv.Itoa(switchID)+":"+state)
	}
	s.onEnrollment = func(userUUID, status string) {
		enrollments = append(enrollments, userUUID+":"+status)
	}

	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/doors/3/unlock", nil), http.StatusOK, nil)
	if len(doorStates) != 1 || doorStates[0] != "3:unlocked" {
		t.Errorf("door state callbacks = %v, want [3:unlocked]", doorStates)
	}

	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/users/u-1/fingerprints", nil),
		http.StatusOK, nil)
	if len(enrollments) != 1 || enrollments[0] != "u-1:captured" {
		t.Errorf("enrollment callbacks = %v, want [u-1:captured]", enrollments)
	}
}

func TestEventsEndpoint(t *testing.T) {
	archive := &fakeArchive{
		events: []events.ArchivedEvent{
			{ID: 2, Type: "UserAuthenticated", UserName: "Bob", Time: time.Unix(1767264100, 0).UTC(), RecordedAt: time.Unix(1767264101, 0).UTC()},
			{ID: 1, Type: "UserAuthenticated", UserName: "Alice", Time: time.Unix(1767264000, 0).UTC(), RecordedAt: time.Unix(1767264001, 0).UTC()},
		},
	}
	_, srv := newTestServer(t, newFakeGateway(), archive)

	var list []eventResponse
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/events", nil), http.StatusOK, &list)
	if len(list) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(list))
	}
	if list[0].User != "Bob" {
		t.Errorf("first user = %q, want Bob", list[0].User)
	}

	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/events?limit=1", nil), http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("len(events) = %d, want 1", len(list))
	}

	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/events?limit=junk", nil),
		http.StatusBadRequest, nil)
}

func TestEventsEndpointWithoutArchive(t *testing.T) {
	_, srv := newTestServer(t, newFakeGateway(), nil)

	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/events", nil),
		http.StatusServiceUnavailable, nil)
}

func TestDeviceLogEndpoint(t *testing.T) {
	gw := newFakeGateway()
	gw.entries = []helios.AccessEntry{{Name: "Alice", Time: time.Unix(1767264000, 0).UTC()}}
	_, srv := newTestServer(t, gw, nil)

	var list []struct {
		Name string `json:"name"`
		Time string `json:"time"`
	}
	doJSON(t, authedRequest(t, http.MethodGet, srv.URL+"/api/v1/events/device", nil), http.StatusOK, &list)
	if len(list) != 1 || list[0].Name != "Alice" {
		t.Fatalf("entries = %v, want one entry for Alice", list)
	}
}

func TestWSTicketSingleUse(t *testing.T) {
	s, srv := newTestServer(t, newFakeGateway(), nil)

	var body struct {
		Ticket string `json:"ticket"`
	}
	doJSON(t, authedRequest(t, http.MethodPost, srv.URL+"/api/v1/auth/ws-ticket", nil), http.StatusOK, &body)
	if body.Ticket == "" {
		t.Fatal("empty ticket")
	}

	if !s.tickets.consume(body.Ticket) {
		t.Error("first consume = false, want true")
	}
	if s.tickets.consume(body.Ticket) {
		t.Error("second consume = true, want false")
	}
}
