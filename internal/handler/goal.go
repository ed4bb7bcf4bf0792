package handler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/ctxkeys"
	"github.com/fintrackhq/fintrack/internal/model"
	"github.com/fintrackhq/fintrack/internal/service"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

// goalResponse is the wire shape of a goal: the stored record plus fields
// derived at serialization time, never persisted.
type goalResponse struct {
	*model.Goal
	ProgressPercentage float64         `json:"progressPercentage"`
	RemainingAmount    decimal.Decimal `json:"remainingAmount"`
	DaysRemaining      *int            `json:"daysRemaining,omitempty"`
}

func newGoalResponse(g *model.Goal) goalResponse {
	return goalResponse{
		Goal:               g,
		ProgressPercentage: g.ProgressPercentage(),
		RemainingAmount:    g.RemainingAmount(),
		DaysRemaining:      g.DaysRemaining(time.Now()),
	}
}

func newGoalResponses(goals []*model.Goal) []goalResponse {
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalResponse(g))
	}
	return out
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filter := model.GoalFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		Priority: r.URL.Query().Get("priority"),
	}

	goals, err := h.goalService.Goals(user.ID, filter)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve goals")
		return
	}

	respondJSON(w, http.StatusOK, newGoalResponses(goals))
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.CreateGoalInput
	err := decodeJSON(r, &in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := h.goalService.Create(user.ID, in)
	if err != nil {
		respondServiceError(w, err, "Failed to create goal")
		return
	}

	respondJSON(w, http.StatusCreated, newGoalResponse(goal))
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	goalID := r.PathValue("id")

	goal, err := h.goalService.ByID(user.ID, goalID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve goal")
		return
	}

	respondJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	goalID := r.PathValue("id")

	var in service.UpdateGoalInput
	err := decodeJSON(r, &in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := h.goalService.Update(user.ID, goalID, in)
	if err != nil {
		respondServiceError(w, err, "Failed to update goal")
		return
	}

	respondJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	goalID := r.PathValue("id")

	goal, err := h.goalService.Delete(user.ID, goalID)
	if err != nil {
		respondServiceError(w, err, "Failed to delete goal")
		return
	}

	// The removed record, so the caller can confirm what was deleted
	respondJSON(w, http.StatusOK, newGoalResponse(goal))
}

type contributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *GoalHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	goalID := r.PathValue("id")

	var in contributeRequest
	err := decodeJSON(r, &in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Valid amount is required")
		return
	}

	goal, err := h.goalService.Contribute(user.ID, goalID, in.Amount)
	if err != nil {
		respondServiceError(w, err, "Failed to update goal progress")
		return
	}

	respondJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (h *GoalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	stats, err := h.goalService.Statistics(user.ID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve goal statistics")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *GoalHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	goals, err := h.goalService.Goals(user.ID, model.GoalFilter{})
	if err != nil {
		respondServiceError(w, err, "Failed to export goals")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=goals-export.csv")

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"name", "category", "priority", "status", "target_amount", "current_amount", "deadline", "completed_date", "created_at"})

	for _, g := range goals {
		deadline := ""
		if g.Deadline != nil {
			deadline = g.Deadline.Format(time.DateOnly)
		}
		completed := ""
		if g.CompletedDate != nil {
			completed = g.CompletedDate.Format(time.RFC3339)
		}

		err = cw.Write([]string{
			g.Name,
			g.Category,
			g.Priority,
			g.Status,
			g.TargetAmount.String(),
			g.CurrentAmount.String(),
			deadline,
			completed,
			g.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			slog.Error("failed to write export row", "error", err, "user_id", user.ID)
			return
		}
	}

	cw.Flush()
}
