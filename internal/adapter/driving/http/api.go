package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/Wyydra/callbridge/internal/core/domain"
)

// Browser clients expect JavaScript's Date.toISOString layout.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

func now() string {
	return time.Now().UTC().Format(isoTimestamp)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Socket    domain.Stats `json:"socket"`
}

type meetingResponse struct {
	domain.MeetingCredentials
	Timestamp string `json:"timestamp"`
}

func (h *Handler) SocketStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Router.Stats())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now(),
		Socket:    h.Router.Stats(),
	})
}

func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Router.Calls())
}

// GetMeeting provisions conferencing credentials for ?role=&meetingId=.
func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	creds, err := h.Meetings.Join(r.Context(), q.Get("role"), q.Get("meetingId"))
	if err != nil {
		var perr *domain.ProvisionError
		switch {
		case errors.Is(err, domain.ErrInvalidRole):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid role", Details: err.Error()})
		case errors.As(err, &perr):
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: perr.Summary(), Details: perr.Err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Message: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, meetingResponse{MeetingCredentials: *creds, Timestamp: now()})
}
