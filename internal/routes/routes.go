package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/schedule-api/internal/handlers"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Categories    *handlers.CategoryHandler
	Events        *handlers.EventHandler
	Notifications *handlers.NotificationHandler
	Health        http.HandlerFunc
}

// NewRouter sets up the API routes. authenticate guards everything except
// health, register and login.
func NewRouter(h Handlers, authenticate mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authenticate)

	protected.HandleFunc("/auth/me", h.Auth.Me).Methods(http.MethodGet)
	protected.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods(http.MethodPost)

	protected.HandleFunc("/users/profile", h.Users.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/users/profile", h.Users.UpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/users/change-password", h.Users.ChangePassword).Methods(http.MethodPut)
	protected.HandleFunc("/users/account", h.Users.DeleteAccount).Methods(http.MethodDelete)
	protected.HandleFunc("/users/stats", h.Users.Stats).Methods(http.MethodGet)

	protected.HandleFunc("/categories", h.Categories.List).Methods(http.MethodGet)
	protected.HandleFunc("/categories", h.Categories.Create).Methods(http.MethodPost)
	protected.HandleFunc("/categories/{categoryID}", h.Categories.Get).Methods(http.MethodGet)
	protected.HandleFunc("/categories/{categoryID}", h.Categories.Update).Methods(http.MethodPut)
	protected.HandleFunc("/categories/{categoryID}", h.Categories.Delete).Methods(http.MethodDelete)

	// Static paths are registered before {eventID} so they win the match.
	protected.HandleFunc("/events", h.Events.List).Methods(http.MethodGet)
	protected.HandleFunc("/events", h.Events.Create).Methods(http.MethodPost)
	protected.HandleFunc("/events/repeat-preview", h.Events.RepeatPreview).Methods(http.MethodPost)
	protected.HandleFunc("/events/stats/summary", h.Events.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/events/{eventID}", h.Events.Get).Methods(http.MethodGet)
	protected.HandleFunc("/events/{eventID}", h.Events.Update).Methods(http.MethodPut)
	protected.HandleFunc("/events/{eventID}", h.Events.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet)
	protected.HandleFunc("/notifications", h.Notifications.Create).Methods(http.MethodPost)
	protected.HandleFunc("/notifications/stats/summary", h.Notifications.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/unread-count", h.Notifications.UnreadCount).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/read-all", h.Notifications.MarkAllRead).Methods(http.MethodPut)
	protected.HandleFunc("/notifications/read-all", h.Notifications.DeleteRead).Methods(http.MethodDelete)
	protected.HandleFunc("/notifications/read", h.Notifications.DeleteRead).Methods(http.MethodDelete)
	protected.HandleFunc("/notifications/refresh", h.Notifications.Refresh).Methods(http.MethodPost)
	protected.HandleFunc("/notifications/{notificationID}", h.Notifications.Get).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/{notificationID}/read", h.Notifications.MarkRead).Methods(http.MethodPut)
	protected.HandleFunc("/notifications/{notificationID}", h.Notifications.Delete).Methods(http.MethodDelete)

	return router
}
