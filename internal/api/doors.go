package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink/intercom-core/internal/helios"
)

// doorStatusResponse is the response body for GET /doors/{id}.
type doorStatusResponse struct {
	Door  int    `json:"door"`
	State string `json:"state"`
}

// doorCommandResponse is the response body for door command endpoints.
type doorCommandResponse struct {
	Door   int    `json:"door"`
	Action string `json:"action"`
	State  string `json:"state"`
}

// handleDoorStatus returns the lock state of a door switch.
func (s *Server) handleDoorStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := doorID(w, r)
	if !ok {
		return
	}

	state, err := s.device.DoorStatus(r.Context(), id)
	if err != nil {
		s.respondDeviceFailure(w, r, "door status query failed", err)
		return
	}

	writeJSON(w, http.StatusOK, doorStatusResponse{Door: id, State: string(state)})
}

// handleDoorOpen momentarily releases the door lock.
func (s *Server) handleDoorOpen(w http.ResponseWriter, r *http.Request) {
	s.doorCommand(w, r, helios.ActionOpen)
}

// handleDoorLock ends a hold and returns the door to locked.
func (s *Server) handleDoorLock(w http.ResponseWriter, r *http.Request) {
	s.doorCommand(w, r, helios.ActionLock)
}

// handleDoorUnlock holds the door open until a lock command.
func (s *Server) handleDoorUnlock(w http.ResponseWriter, r *http.Request) {
	s.doorCommand(w, r, helios.ActionUnlock)
}

// doorCommand executes a door action, re-reads the resulting state and
// broadcasts it to WebSocket subscribers.
func (s *Server) doorCommand(w http.ResponseWriter, r *http.Request, action helios.SwitchAction) {
	id, ok := doorID(w, r)
	if !ok {
		return
	}

	if err := s.device.ControlDoor(r.Context(), action, id); err != nil {
		s.respondDeviceFailure(w, r, "door command failed", err)
		return
	}

	// Best effort: a failed re-read still means the command itself succeeded.
	state, err := s.device.DoorStatus(r.Context(), id)
	if err != nil {
		s.logger.Warn("door state re-read after command failed", "door", id, "error", err)
	} else {
		s.hub.Broadcast(ChannelDoorState, doorStatusResponse{Door: id, State: string(state)})
		if s.onDoorState != nil {
			s.onDoorState(id, string(state))
		}
	}

	writeJSON(w, http.StatusOK, doorCommandResponse{
		Door:   id,
		Action: string(action),
		State:  string(state),
	})
}

// doorID parses the {id} route parameter. It writes a 400 and returns
// ok=false on a malformed value.
func doorID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeBadRequest(w, "door id must be a positive integer")
		return 0, false
	}
	return id, true
}

// respondDeviceFailure maps gateway errors to HTTP responses: device
// refusals become 502 with the device code, everything else is a 500.
func (s *Server) respondDeviceFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	var devErr *helios.DeviceError
	if errors.As(err, &devErr) {
		writeDeviceError(w, "device refused request (code "+strconv.Itoa(devErr.Code)+")")
		return
	}
	writeInternalError(w, msg)
}
