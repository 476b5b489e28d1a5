package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/schedule-api/internal/authz"
	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/notification"
)

type NotificationHandler struct {
	service   notification.Service
	validator *Validator
	logger    zerolog.Logger
}

type createNotificationRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Message      string     `json:"message" validate:"required,max=1000"`
	Type         string     `json:"type" validate:"required,oneof=event system reminder"`
	EventID      *string    `json:"event_id" validate:"omitempty,uuid"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func NewNotificationHandler(service notification.Service, validator *Validator, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	q := r.URL.Query()
	var filter models.NotificationFilter
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		typ := models.NotificationType(raw)
		if !typ.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid notification type")
			return
		}
		filter.Type = typ
	}
	if raw := strings.TrimSpace(q.Get("unread_only")); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unread_only")
			return
		}
		filter.UnreadOnly = unread
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}

	notifications, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		writeError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// Create stores a notification written by the user. Generation never prunes
// it.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req createNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title: is required")
		return
	}

	in := notification.ManualInput{
		Title:        req.Title,
		Message:      req.Message,
		Type:         models.NotificationType(req.Type),
		ScheduledFor: req.ScheduledFor,
	}
	if req.EventID != nil {
		in.EventID = *req.EventID
	}

	notif, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		if errors.Is(err, notification.ErrUnknownEvent) {
			writeError(w, http.StatusBadRequest, "Event not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create notification")
		writeError(w, http.StatusInternalServerError, "Failed to create notification")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Notification created successfully", "notification": notif})
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	notifID, ok := pathID(w, r, "notificationID", "notification")
	if !ok {
		return
	}

	notif, err := h.service.Get(r.Context(), userID, notifID)
	if err != nil {
		h.writeLookupError(w, err, notifID, "failed to load notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"notification": notif})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	notifID, ok := pathID(w, r, "notificationID", "notification")
	if !ok {
		return
	}

	notif, err := h.service.MarkRead(r.Context(), userID, notifID)
	if err != nil {
		h.writeLookupError(w, err, notifID, "failed to mark notification as read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Notification marked as read", "notification": notif})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	n, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to mark all notifications as read")
		writeError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "All notifications marked as read", "updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	notifID, ok := pathID(w, r, "notificationID", "notification")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, notifID); err != nil {
		h.writeLookupError(w, err, notifID, "failed to delete notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted successfully"})
}

func (h *NotificationHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	n, err := h.service.DeleteRead(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete read notifications")
		writeError(w, http.StatusInternalServerError, "Failed to delete notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Read notifications deleted", "deleted": n})
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load notification stats")
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count unread notifications")
		writeError(w, http.StatusInternalServerError, "Failed to count notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": stats.Unread})
}

// Refresh runs notification generation for the caller immediately.
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	res, err := h.service.Refresh(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to refresh notifications")
		writeError(w, http.StatusInternalServerError, "Failed to refresh notifications")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *NotificationHandler) writeLookupError(w http.ResponseWriter, err error, notifID, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	h.logger.Error().Err(err).Str("notification_id", notifID).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Notification request failed")
}
