package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink/intercom-core/internal/helios"
)

// userResponse is the API projection of a directory record.
type userResponse struct {
	UUID         string `json:"uuid,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	PIN          *int   `json:"pin,omitempty"`
	Fingerprints string `json:"fingerprints,omitempty"`
}

// createUserRequest is the request body for POST /users.
type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	PIN   int    `json:"pin"`
}

// accessUpdateRequest is the request body for PATCH /users/{uuid}/access.
// Omitted fields are left untouched on the device.
type accessUpdateRequest struct {
	PIN          *int    `json:"pin"`
	Fingerprints *string `json:"fingerprints"`
}

// enrollRequest is the request body for POST /users/{uuid}/fingerprints.
// Zero values select the device defaults.
type enrollRequest struct {
	Finger int `json:"finger"`
	Reader int `json:"reader"`
}

// enrollResponse is the response body for a completed enrollment attempt.
type enrollResponse struct {
	Status string `json:"status"`
	Code   int    `json:"code,omitempty"`
}

func toUserResponse(u helios.User) userResponse {
	resp := userResponse{
		UUID:  u.UUID,
		Name:  u.Name,
		Email: u.Email,
	}
	if u.Access != nil {
		resp.PIN = u.Access.PIN
		resp.Fingerprints = u.Access.Fingerprints
	}
	return resp
}

// handleListUsers returns all directory users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.device.Users(r.Context())
	if err != nil {
		s.respondDeviceFailure(w, r, "user listing failed", err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetUser returns the full record for one user.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	user, err := s.device.User(r.Context(), uuid)
	if err != nil {
		if errors.Is(err, helios.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.respondDeviceFailure(w, r, "user lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// handleCreateUser creates a directory user.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	if err := s.device.AddUser(r.Context(), req.Name, req.Email, req.PIN); err != nil {
		s.respondDeviceFailure(w, r, "user creation failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// handleDeleteUser removes a directory user.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	if err := s.device.RemoveUser(r.Context(), uuid); err != nil {
		if errors.Is(err, helios.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.respondDeviceFailure(w, r, "user deletion failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateUserAccess patches a user's PIN and/or fingerprint record.
func (s *Server) handleUpdateUserAccess(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	var req accessUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PIN == nil && req.Fingerprints == nil {
		writeBadRequest(w, "at least one of pin or fingerprints is required")
		return
	}

	upd := helios.AccessUpdate{PIN: req.PIN, Fingerprints: req.Fingerprints}
	if err := s.device.UpdateUserAccess(r.Context(), uuid, upd); err != nil {
		if errors.Is(err, helios.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.respondDeviceFailure(w, r, "access update failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleEnrollFingerprint runs a fingerprint capture for the user.
//
// This handler blocks for the duration of the capture session (up to the
// configured enrollment deadline), so the route relies on the server's
// generous write timeout. The outcome is also broadcast on the
// "enrollment" WebSocket channel so dashboards can follow along.
func (s *Server) handleEnrollFingerprint(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	// An empty body means "use defaults"; anything else malformed is rejected.
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.device.EnrollFingerprint(r.Context(), uuid, req.Finger, req.Reader)
	if err != nil {
		if errors.Is(err, helios.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		if errors.Is(err, context.Canceled) {
			// Client went away mid-capture; nothing useful to write.
			return
		}
		s.respondDeviceFailure(w, r, "enrollment failed", err)
		return
	}

	s.hub.Broadcast(ChannelEnrollment, map[string]any{
		"user":   uuid,
		"status": string(result.Status),
	})
	if s.onEnrollment != nil {
		s.onEnrollment(uuid, string(result.Status))
	}

	writeJSON(w, http.StatusOK, enrollResponse{
		Status: string(result.Status),
		Code:   result.Code,
	})
}
