package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/schedule-api/internal/authz"
	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/notification"
	"github.com/stanstork/schedule-api/internal/recurrence"
	"github.com/stanstork/schedule-api/internal/repository"
)

const queryDateLayout = "2006-01-02"

type EventHandler struct {
	events        repository.EventRepository
	categories    repository.CategoryRepository
	notifications notification.Service
	validator     *Validator
	location      *time.Location
	logger        zerolog.Logger
}

type reminderRequest struct {
	Enabled bool `json:"enabled"`
	Minutes int  `json:"minutes" validate:"min=0,max=10080"`
}

type repeatRequest struct {
	Type      models.RepeatType `json:"type" validate:"required,repeat_type"`
	StartDate *time.Time        `json:"start_date"`
	EndDate   time.Time         `json:"end_date"`
}

type eventRequest struct {
	Title       string           `json:"title" validate:"required,min=1,max=200"`
	Description string           `json:"description" validate:"max=1000"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     time.Time        `json:"end_date" validate:"gtfield=StartDate"`
	AllDay      bool             `json:"all_day"`
	CategoryID  string           `json:"category_id" validate:"required,uuid"`
	Location    string           `json:"location" validate:"max=200"`
	Reminder    *reminderRequest `json:"reminder" validate:"omitempty"`
	Repeat      *repeatRequest   `json:"repeat" validate:"omitempty"`
}

type repeatPreviewRequest struct {
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date" validate:"gtfield=StartDate"`
	Repeat    repeatRequest `json:"repeat"`
}

type repeatPreviewResponse struct {
	Dates   []time.Time `json:"dates"`
	Count   int         `json:"count"`
	Warning string      `json:"warning,omitempty"`
}

// NewEventHandler builds the event handler. loc is the zone used to read
// date-only query parameters.
func NewEventHandler(events repository.EventRepository, categories repository.CategoryRepository, notifications notification.Service, validator *Validator, loc *time.Location, logger zerolog.Logger) *EventHandler {
	if loc == nil {
		loc = time.Local
	}
	return &EventHandler{
		events:        events,
		categories:    categories,
		notifications: notifications,
		validator:     validator,
		location:      loc,
		logger:        logger.With().Str("handler", "event").Logger(),
	}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	q := r.URL.Query()
	var filter models.EventFilter
	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		from, err := h.parseQueryTime(raw, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date")
			return
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		to, err := h.parseQueryTime(raw, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date")
			return
		}
		filter.To = &to
	}
	if raw := strings.TrimSpace(q.Get("category_id")); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category_id")
			return
		}
		filter.CategoryID = raw
	}

	events, err := h.events.List(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list events")
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	eventID, ok := pathID(w, r, "eventID", "event")
	if !ok {
		return
	}

	ev, err := h.events.Get(r.Context(), userID, eventID)
	if err != nil {
		h.writeLookupError(w, err, eventID, "failed to load event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"event": ev})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	ev, ok := h.decodeEvent(w, r, userID)
	if !ok {
		return
	}

	created, err := h.events.Create(r.Context(), ev)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create event")
		writeError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}
	h.refreshNotifications(r.Context(), userID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Event created successfully", "event": created})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	eventID, ok := pathID(w, r, "eventID", "event")
	if !ok {
		return
	}

	ev, ok := h.decodeEvent(w, r, userID)
	if !ok {
		return
	}
	ev.ID = eventID

	updated, err := h.events.Update(r.Context(), ev)
	if err != nil {
		h.writeLookupError(w, err, eventID, "failed to update event")
		return
	}
	h.refreshNotifications(r.Context(), userID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Event updated successfully", "event": updated})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	eventID, ok := pathID(w, r, "eventID", "event")
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), userID, eventID); err != nil {
		h.writeLookupError(w, err, eventID, "failed to delete event")
		return
	}
	h.refreshNotifications(r.Context(), userID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

// RepeatPreview expands a repeat rule without storing anything so the client
// can confirm large series.
func (h *EventHandler) RepeatPreview(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.UserIDFromRequest(r); !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req repeatPreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := models.Event{StartDate: req.StartDate, EndDate: req.EndDate}
	if msg := expandRepeat(&ev, req.Repeat); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	dates := ev.Repeat.Dates
	resp := repeatPreviewResponse{Dates: dates, Count: len(dates)}
	if len(dates) > recurrence.WarnOccurrences {
		resp.Warning = fmt.Sprintf("This repeat creates %d occurrences", len(dates))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	stats, err := h.events.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load event stats")
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// decodeEvent reads, validates and expands an event body. It writes the
// error response itself and reports whether the caller may continue.
func (h *EventHandler) decodeEvent(w http.ResponseWriter, r *http.Request, userID string) (models.Event, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return models.Event{}, false
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return models.Event{}, false
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return models.Event{}, false
	}

	if _, err := h.categories.Get(r.Context(), userID, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusBadRequest, "Category not found")
			return models.Event{}, false
		}
		h.logger.Error().Err(err).Str("category_id", req.CategoryID).Msg("failed to verify category")
		writeError(w, http.StatusInternalServerError, "Failed to verify category")
		return models.Event{}, false
	}

	ev := models.Event{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AllDay:      req.AllDay,
		Location:    req.Location,
	}
	if ev.Title == "" {
		writeError(w, http.StatusBadRequest, "title: is required")
		return models.Event{}, false
	}
	if req.Reminder != nil {
		ev.Reminder = &models.Reminder{Enabled: req.Reminder.Enabled, Minutes: req.Reminder.Minutes}
	}
	if req.Repeat != nil {
		if msg := expandRepeat(&ev, *req.Repeat); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return models.Event{}, false
		}
	}
	if ev.IsRepeating() && len(ev.Repeat.Dates) > recurrence.WarnOccurrences {
		h.logger.Warn().Str("user_id", userID).Int("occurrences", len(ev.Repeat.Dates)).Msg("large repeating series")
	}
	return ev, true
}

// expandRepeat attaches rep to ev and fills in its occurrence starts. The
// base interval moves to the first occurrence, keeping its duration. It
// returns a client error message when the rule is rejected.
func expandRepeat(ev *models.Event, rep repeatRequest) string {
	if rep.EndDate.IsZero() {
		return "repeat.end_date is required"
	}
	if !recurrence.Supported(rep.Type) {
		return fmt.Sprintf("Repeat type %q is not supported yet", rep.Type)
	}

	repeatStart := ev.StartDate
	if rep.StartDate != nil && !rep.StartDate.IsZero() {
		repeatStart = *rep.StartDate
	}
	if n := recurrence.DaySpan(repeatStart, rep.EndDate); n > recurrence.MaxOccurrences {
		return fmt.Sprintf("Repeat range produces %d occurrences, the limit is %d", n, recurrence.MaxOccurrences)
	}

	ev.Repeat = &models.Repeat{Type: rep.Type, EndDate: rep.EndDate}
	recurrence.ExpandEvent(ev, repeatStart)
	if len(ev.Repeat.Dates) == 0 {
		ev.Repeat = nil
		return "Repeat range produces no occurrences"
	}

	dur := ev.Duration()
	ev.StartDate = ev.Repeat.Dates[0]
	ev.EndDate = ev.StartDate.Add(dur)
	return ""
}

func (h *EventHandler) refreshNotifications(ctx context.Context, userID string) {
	if h.notifications == nil {
		return
	}
	if _, err := h.notifications.Refresh(ctx, userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to refresh notifications after event change")
	}
}

// parseQueryTime accepts RFC 3339 or a bare date. A bare end date covers the
// whole day.
func (h *EventHandler) parseQueryTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(queryDateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

func (h *EventHandler) writeLookupError(w http.ResponseWriter, err error, eventID, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	h.logger.Error().Err(err).Str("event_id", eventID).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Event request failed")
}
