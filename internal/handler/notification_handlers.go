package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/handler/dto"
	"github.com/mtlprog/taskpulse/internal/notify"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// handleTriggerCheck runs a notification check immediately.
func (h *Handler) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.checker.TriggerManualCheck(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCheckResponse(report))
}

// handleSchedulerStatus reports whether a check is executing.
func (h *Handler) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.SchedulerStatusResponse{Running: h.checker.IsRunning()})
}

// handleCreateNotification creates a non-deadline notification and pushes it live.
func (h *Handler) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	if _, err := uuid.Parse(req.UserID); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "user_id must be a valid UUID")
		return
	}
	if req.Category() == domain.CategoryDeadlineApproaching {
		respondError(w, http.StatusBadRequest, "RESERVED_CATEGORY", "deadline notifications are created by the scheduler")
		return
	}
	if req.ProjectID != nil {
		if _, err := uuid.Parse(*req.ProjectID); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project_id must be a valid UUID")
			return
		}
	}
	if req.GroupID != nil {
		if _, err := uuid.Parse(*req.GroupID); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "group_id must be a valid UUID")
			return
		}
	}

	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		respondDomainError(w, err)
		return
	}

	groupID := req.GroupID
	if req.ProjectID != nil {
		task, err := h.tasks.GetByID(r.Context(), *req.ProjectID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		switch {
		case groupID == nil:
			groupID = &task.GroupID
		case *groupID != task.GroupID:
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "group_id does not match the project's group")
			return
		}
	}

	n, err := h.emitter.Emit(r.Context(), notify.EmitParams{
		UserID:   req.UserID,
		Category: req.Category(),
		Title:    req.Title,
		Message:  req.Message,
		TaskID:   req.ProjectID,
		GroupID:  groupID,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, notify.NewPayload(n))
}

// handleListNotifications returns the user's most recent notifications.
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := extractUserID(w, r)
	if !ok {
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	notifications, err := h.notifications.ListForUser(r.Context(), userID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewNotificationsListResponse(notifications, limit))
}

// handleGetProfile returns the user's current behaviour profile.
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := extractUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ProfileResponse{
		UserID:  user.ID,
		Name:    user.Name,
		Profile: h.profiles.ComputeProfile(r.Context(), user.ID),
	})
}

// handleWebSocket subscribes the caller to live notifications for user_id.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID")
		return
	}

	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		respondDomainError(w, err)
		return
	}

	// Serve writes its own response on upgrade failure.
	if err := h.live.Serve(w, r, userID); err != nil {
		slog.Warn("websocket session failed", "user_id", userID, "error", err)
	}
}
