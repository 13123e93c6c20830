package api

import (
	"fmt"
	"net/http"
	"strconv"

	"ptportal/internal/export"
	"ptportal/internal/model"
	"ptportal/internal/service"
)

// Period echoes the requested date range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityResponse is the response for GET /api/availability.
type AvailabilityResponse struct {
	Slots       []model.TimeSlot  `json:"slots"`
	Period      Period            `json:"period"`
	SessionType model.SessionType `json:"sessionType"`
}

// parseAvailabilityQuery reads start, end and session_type_id from the URL.
func parseAvailabilityQuery(r *http.Request) (service.Query, error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" || endStr == "" {
		return service.Query{}, fmt.Errorf("start and end are required")
	}

	start, err := model.ParseDate(startStr)
	if err != nil {
		return service.Query{}, fmt.Errorf("invalid start format; expected YYYY-MM-DD")
	}
	end, err := model.ParseDate(endStr)
	if err != nil {
		return service.Query{}, fmt.Errorf("invalid end format; expected YYYY-MM-DD")
	}

	query := service.Query{Start: start, End: end}
	if raw := q.Get("session_type_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return service.Query{}, fmt.Errorf("invalid session_type_id")
		}
		query.SessionTypeID = id
	}

	if err := service.ValidateRange(query.Start, query.End); err != nil {
		return service.Query{}, err
	}
	return query, nil
}

// handleAvailability returns bookable slots for a date range.
// GET /api/availability?start=YYYY-MM-DD&end=YYYY-MM-DD[&session_type_id=N]
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	query, err := parseAvailabilityQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Availability(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if res.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Slots:       res.Slots,
		Period:      Period{Start: query.Start.String(), End: query.End.String()},
		SessionType: res.SessionType,
	})
}

// handleAvailabilityExport returns the same slots as an xlsx workbook.
// GET /api/availability/export?start=...&end=...
func (s *HTTPServer) handleAvailabilityExport(w http.ResponseWriter, r *http.Request) {
	query, err := parseAvailabilityQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Availability(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	title := s.facilityName
	if res.SessionType.Name != "" && res.SessionType.ID != 0 {
		title = fmt.Sprintf("%s: %s", title, res.SessionType.Name)
	}

	filename := fmt.Sprintf("availability_%s_%s.xlsx", query.Start, query.End)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteSlots(w, title, res.Slots, s.svc.Location()); err != nil {
		s.log.Error().Err(err).Msg("Failed to write availability export")
	}
}

// handleSessionTypes lists active session types.
// GET /api/session-types
func (s *HTTPServer) handleSessionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.svc.SessionTypes(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionTypes": types})
}
