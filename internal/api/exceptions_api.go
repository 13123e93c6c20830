package api

import (
	"net/http"

	"ptportal/internal/model"
)

// CreateExceptionRequest is the body of POST /api/exceptions.
// Omitting start_time closes the whole date.
type CreateExceptionRequest struct {
	Date      model.Date       `json:"date"`
	StartTime *model.ClockTime `json:"start_time,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// GET /api/exceptions?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	query, err := parseAvailabilityQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.svc.Exceptions(r.Context(), query.Start, query.End)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exceptions": list,
		"period":     Period{Start: query.Start.String(), End: query.End.String()},
	})
}

// POST /api/exceptions
func (s *HTTPServer) handleCreateException(w http.ResponseWriter, r *http.Request) {
	var req CreateExceptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	exc, err := s.svc.Blackout(r.Context(), req.Date, req.StartTime, req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exc)
}

// DELETE /api/exceptions/{id}
func (s *HTTPServer) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exception id")
		return
	}
	if err := s.svc.DeleteException(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
