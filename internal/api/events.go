package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/doorlink/intercom-core/internal/events"
)

// eventResponse is the API projection of an archived access event.
type eventResponse struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	User       string `json:"user,omitempty"`
	Time       string `json:"time"`
	RecordedAt string `json:"recorded_at"`
}

func toEventResponse(ev events.ArchivedEvent) eventResponse {
	return eventResponse{
		ID:         ev.ID,
		Type:       ev.Type,
		User:       ev.UserName,
		Time:       ev.Time.UTC().Format(time.RFC3339),
		RecordedAt: ev.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// handleListEvents returns the most recent archived access events.
//
// Query parameters:
//   - limit: maximum number of events (optional; store default applies)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event archive not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	archived, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("event archive query failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "event archive query failed")
		return
	}

	resp := make([]eventResponse, 0, len(archived))
	for _, ev := range archived {
		resp = append(resp, toEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAccessLog reads the device's own entry log directly (bypassing the
// local archive), mirroring what the intercom display would show.
//
// Query parameters:
//   - days: trailing window in days (optional; device default applies)
func (s *Server) handleAccessLog(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "days must be a positive integer")
			return
		}
		days = parsed
	}

	entries, err := s.device.Log(r.Context(), days)
	if err != nil {
		s.respondDeviceFailure(w, r, "device log query failed", err)
		return
	}

	type logEntry struct {
		Name string `json:"name"`
		Time string `json:"time"`
	}
	resp := make([]logEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, logEntry{Name: e.Name, Time: e.Time.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, resp)
}
