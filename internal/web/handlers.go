package web

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/example/waitlist-service/internal/models"
	"github.com/example/waitlist-service/internal/store"
	"github.com/example/waitlist-service/internal/validation"
)

var (
	scrubOnce   sync.Once
	scrubPolicy *bluemonday.Policy
)

// scrub strips all markup from free-text input at the API boundary. The
// validation package normalizes text too, but the HTML-aware policy is the
// security boundary for anything that ends up stored and redisplayed. The
// policy entity-escapes its output; the fields here are plain text, not
// HTML, so the escaping is undone to keep apostrophes and ampersands
// intact.
func scrub(s string) string {
	scrubOnce.Do(func() {
		scrubPolicy = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(scrubPolicy.Sanitize(s))
}

func scrubOptional(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := scrub(*s)
	return &cleaned
}

// submitRequest is the JSON body accepted by POST /api/waitlist.
type submitRequest struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	SubscribedNewsletter bool    `json:"subscribed_newsletter"`
	Message              *string `json:"message,omitempty"`
	Company              *string `json:"company,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	Source               string  `json:"source,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed_json", "request body is not valid JSON")
		return
	}

	data := models.FormData{
		Name:                 scrub(req.Name),
		Email:                scrub(req.Email),
		SubscribedNewsletter: req.SubscribedNewsletter,
		Message:              scrubOptional(req.Message),
		Company:              scrubOptional(req.Company),
		Phone:                scrubOptional(req.Phone),
	}

	checked := validation.ValidateAndSanitize(data)
	if !checked.IsValid {
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", "one or more fields are invalid", checked.Errors...)
		return
	}

	record, err := s.client.Submit(r.Context(), checked.SanitizedData, req.Source)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondData(w, http.StatusCreated, record)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_filter", err.Error())
		return
	}

	count, err := s.client.Count(r.Context(), filters)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.client.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

func (s *Server) handleEmailAvailable(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if verr := validation.ValidateField(models.FieldEmail, email); verr != nil {
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Message, *verr)
		return
	}

	exists, err := s.client.CheckEmailExists(r.Context(), email)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]bool{"available": !exists})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondStoreError maps the store taxonomy onto HTTP statuses. Raw error
// text never reaches clients.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		respondError(w, http.StatusConflict, "duplicate_email", "this email is already on the waitlist")
	case errors.Is(err, store.ErrMissingField):
		respondError(w, http.StatusUnprocessableEntity, "missing_field", "a required field is missing")
	case errors.Is(err, store.ErrConfiguration), errors.Is(err, store.ErrPermission):
		s.logger.Error().Err(err).Msg("web: store unavailable")
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "submissions are temporarily unavailable")
	case errors.Is(err, store.ErrTransient):
		s.logger.Warn().Err(err).Msg("web: transient store failure")
		respondError(w, http.StatusBadGateway, "store_unreachable", "the submission store could not be reached")
	default:
		s.logger.Error().Err(err).Msg("web: unexpected store failure")
		respondError(w, http.StatusInternalServerError, "internal", "an unexpected error occurred")
	}
}

// parseFilters reads the optional count query parameters: newsletter
// (bool), source, and an inclusive from/to submission-date range in
// RFC 3339.
func parseFilters(r *http.Request) (*models.Filters, error) {
	query := r.URL.Query()
	filters := &models.Filters{}
	hasFilter := false

	if raw := query.Get("newsletter"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("newsletter must be a boolean")
		}
		filters.SubscribedNewsletter = &parsed
		hasFilter = true
	}
	if source := query.Get("source"); source != "" {
		filters.Source = source
		hasFilter = true
	}
	if raw := query.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("from must be an RFC 3339 timestamp")
		}
		filters.SubmittedAfter = &ts
		hasFilter = true
	}
	if raw := query.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("to must be an RFC 3339 timestamp")
		}
		filters.SubmittedBefore = &ts
		hasFilter = true
	}

	if !hasFilter {
		return nil, nil
	}
	return filters, nil
}
