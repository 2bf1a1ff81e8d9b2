package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/coach"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

const maxNameLength = 200

// Handler implements the API handlers
type Handler struct {
	store        store.Store
	coach        coach.Service
	apiKey       string
	adminID      string
	version      string
	historyLimit int
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, c coach.Service, apiKey, adminID, version string, historyLimit int) *Handler {
	return &Handler{
		store:        s,
		coach:        c,
		apiKey:       apiKey,
		adminID:      adminID,
		version:      version,
		historyLimit: historyLimit,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountUsers(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, types.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		UserCount: count,
	})
}

// Init handles POST /api/init: upsert identity, return the full snapshot.
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	var req types.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	resp, err := h.store.InitUser(r.Context(), req)
	if err != nil {
		slog.Error("init failed", "error", err, "telegram_id", req.TelegramID)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, resp)
}

// Onboarding handles POST /api/user/onboarding.
func (h *Handler) Onboarding(w http.ResponseWriter, r *http.Request) {
	var req types.OnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	completed, err := h.store.SetOnboarding(r.Context(), req.TelegramID, req.OnboardingCompleted)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, types.OnboardingResponse{Success: true, OnboardingCompleted: completed})
}

// CreateHabit handles POST /api/habits.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req types.CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	c.Add(validation.ValidateRequired("name", req.Name))
	c.Add(validation.ValidateMaxLength("name", req.Name, maxNameLength))
	if req.Type != "" {
		c.Add(validation.ValidateEnum("type", string(req.Type),
			[]string{string(types.HabitPositive), string(types.HabitNegative)}))
	}
	c.Add(validation.ValidateNonNegative("targetValue", req.TargetValue))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	habit, err := h.store.CreateHabit(r.Context(), req)
	if err != nil {
		slog.Error("create habit failed", "error", err, "telegram_id", req.TelegramID)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, habit)
}

// UpdateHabit handles PUT /api/habits/{id} with partial updates.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.UpdateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if req.Name != nil {
		var c validation.Collector
		c.Add(validation.ValidateRequired("name", *req.Name))
		c.Add(validation.ValidateMaxLength("name", *req.Name, maxNameLength))
		if c.HasErrors() {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
			return
		}
	}

	habit, err := h.store.UpdateHabit(r.Context(), id, req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, habit)
}

// DeleteHabit handles DELETE /api/habits/{id}.
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteHabit(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, types.SuccessResponse{Success: true})
}

// CreateTask handles POST /api/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req types.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	c.Add(validation.ValidateRequired("title", req.Title))
	c.Add(validation.ValidateMaxLength("title", req.Title, maxNameLength))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	task, err := h.store.CreateTask(r.Context(), req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, task)
}

// UpdateTask handles PUT /api/tasks/{id} with partial updates.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	task, err := h.store.UpdateTask(r.Context(), id, req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteTask(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, types.SuccessResponse{Success: true})
}

// SetPlan handles POST /api/plans: wholesale plan replacement.
func (h *Handler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var req types.SetPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.store.ReplacePlan(r.Context(), req.TelegramID, req.Plan); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, types.SuccessResponse{Success: true})
}

// SaveMessage handles POST /api/chat.
func (h *Handler) SaveMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SaveMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("telegramId", req.TelegramID))
	c.Add(validation.ValidateRequired("text", req.Text))
	c.Add(validation.ValidateEnum("role", string(req.Role),
		[]string{string(types.RoleUser), string(types.RoleModel)}))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	msg, err := h.store.SaveMessage(r.Context(), req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, msg)
}

// ChatHistory handles GET /api/chat/{telegramId}: most-recent messages,
// oldest first.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "telegramId")

	history, err := h.store.ChatHistory(r.Context(), telegramID, h.historyLimit)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	if history == nil {
		history = []types.ChatMessage{}
	}
	writeJSON(w, history)
}

// CoachPlan handles POST /api/coach/plan. The coach degrades to a built-in
// fallback plan internally, so this handler only fails on bad input.
func (h *Handler) CoachPlan(w http.ResponseWriter, r *http.Request) {
	var req types.GeneratePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("goal", req.Goal))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	plan := h.coach.GeneratePlan(r.Context(), req.Goal, req.Language, req.Days, req.Intensity)
	writeJSON(w, types.GeneratePlanResponse{Plan: plan})
}

// CoachChat handles POST /api/coach/chat.
func (h *Handler) CoachChat(w http.ResponseWriter, r *http.Request) {
	var req types.CoachChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("message", req.Message))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	reply := h.coach.Chat(r.Context(), req.History, req.Message, req.Language)
	writeJSON(w, types.CoachChatResponse{Reply: reply})
}

// AdminStats handles GET /api/admin/stats, guarded by the configured admin
// telegram id.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	telegramID := r.URL.Query().Get("telegramId")
	if h.adminID == "" || telegramID != h.adminID {
		WriteProblem(w, r, http.StatusForbidden, "Access denied")
		return
	}

	stats, err := h.store.AdminStats(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
