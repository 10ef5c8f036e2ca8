package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/handler/dto"
	"github.com/mtlprog/taskpulse/internal/middleware"
	"github.com/mtlprog/taskpulse/internal/notify"
	"github.com/mtlprog/taskpulse/internal/scheduler"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs notification checks on demand.
type Checker interface {
	TriggerManualCheck(ctx context.Context) (scheduler.RunReport, error)
	IsRunning() bool
}

// ProfileSource computes behaviour profiles.
type ProfileSource interface {
	ComputeProfile(ctx context.Context, userID string) domain.UserBehaviorProfile
}

// TaskLookup resolves the task a notification refers to.
type TaskLookup interface {
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)
}

// NotificationLister reads a user's stored notifications.
type NotificationLister interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}

// Emitter creates notifications.
type Emitter interface {
	Emit(ctx context.Context, p notify.EmitParams) (*domain.Notification, error)
}

// LiveServer holds websocket subscriptions open.
type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// Deps are the collaborators served over HTTP.
type Deps struct {
	DB            Pinger
	Checker       Checker
	Users         domain.UserRepository
	Tasks         TaskLookup
	Profiles      ProfileSource
	Notifications NotificationLister
	Emitter       Emitter
	Live          LiveServer
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	db            Pinger
	checker       Checker
	users         domain.UserRepository
	tasks         TaskLookup
	profiles      ProfileSource
	notifications NotificationLister
	emitter       Emitter
	live          LiveServer
}

// New creates a new Handler instance with all dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		db:            deps.DB,
		checker:       deps.Checker,
		users:         deps.Users,
		tasks:         deps.Tasks,
		profiles:      deps.Profiles,
		notifications: deps.Notifications,
		emitter:       deps.Emitter,
		live:          deps.Live,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, middleware.Logging(middleware.Recover(fn)))
	}

	api("GET /api/v1/scheduler/status", h.handleSchedulerStatus)
	api("POST /api/v1/notifications/check", h.handleTriggerCheck)
	api("POST /api/v1/notifications", h.handleCreateNotification)
	api("GET /api/v1/users/{id}/profile", h.handleGetProfile)
	api("GET /api/v1/users/{id}/notifications", h.handleListNotifications)

	mux.HandleFunc("GET /ws", h.handleWebSocket)
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// extractUserID extracts and validates the user ID from the path parameter.
// Returns (userID, true) if valid, ("", false) if invalid (error already sent to client).
func extractUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "user id is required")
		return "", false
	}

	if _, err := uuid.Parse(userID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID")
		return "", false
	}

	return userID, true
}
