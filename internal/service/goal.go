package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/model"
	"github.com/fintrackhq/fintrack/internal/repository"
	"github.com/fintrackhq/fintrack/internal/validation"
)

// contributionRetries bounds the optimistic-concurrency loop in Contribute.
const contributionRetries = 3

// GoalService owns the goal lifecycle: contribution accounting, milestone
// achievement and the active → completed auto-transition.
type GoalService struct {
	repo repository.GoalRepository
	now  func() time.Time
}

func NewGoalService(repo repository.GoalRepository) *GoalService {
	return &GoalService{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock swaps the time source. Tests use it for deterministic
// achievement and completion timestamps.
func (s *GoalService) WithClock(now func() time.Time) *GoalService {
	s.now = now
	return s
}

type MilestoneInput struct {
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Achieved     bool            `json:"achieved"`
	AchievedDate *time.Time      `json:"achievedDate"`
}

type CreateGoalInput struct {
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Notes              string           `json:"notes"`
	TargetAmount       decimal.Decimal  `json:"targetAmount"`
	Category           string           `json:"category"`
	Priority           string           `json:"priority"`
	Status             string           `json:"status"`
	Deadline           *time.Time       `json:"deadline"`
	IsRecurring        bool             `json:"isRecurring"`
	RecurringAmount    *decimal.Decimal `json:"recurringAmount"`
	RecurringFrequency *string          `json:"recurringFrequency"`
	Milestones         []MilestoneInput `json:"milestones"`
}

// UpdateGoalInput applies a partial update: nil fields are left untouched.
// A non-nil Milestones replaces the whole list.
type UpdateGoalInput struct {
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	Notes              *string          `json:"notes"`
	TargetAmount       *decimal.Decimal `json:"targetAmount"`
	CurrentAmount      *decimal.Decimal `json:"currentAmount"`
	Category           *string          `json:"category"`
	Priority           *string          `json:"priority"`
	Status             *string          `json:"status"`
	Deadline           *time.Time       `json:"deadline"`
	IsRecurring        *bool            `json:"isRecurring"`
	RecurringAmount    *decimal.Decimal `json:"recurringAmount"`
	RecurringFrequency *string          `json:"recurringFrequency"`
	Milestones         []MilestoneInput `json:"milestones"`
}

func (s *GoalService) Create(userID string, in CreateGoalInput) (*model.Goal, error) {
	now := s.now()

	goal := &model.Goal{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Name:               strings.TrimSpace(in.Name),
		Description:        strings.TrimSpace(in.Description),
		Notes:              strings.TrimSpace(in.Notes),
		TargetAmount:       in.TargetAmount,
		CurrentAmount:      decimal.Zero,
		Category:           normalizeEnum(in.Category, "other"),
		Priority:           normalizeEnum(in.Priority, model.PriorityMedium),
		Status:             normalizeEnum(in.Status, model.GoalStatusActive),
		Deadline:           in.Deadline,
		IsRecurring:        in.IsRecurring,
		RecurringAmount:    in.RecurringAmount,
		RecurringFrequency: normalizeEnumPtr(in.RecurringFrequency),
		CreatedAt:          now,
		UpdatedAt:          now,
		Milestones:         milestonesFromInput(in.Milestones),
	}

	err := validateGoal(goal)
	if err != nil {
		return nil, err
	}

	err = s.repo.Create(goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	return goal, nil
}

func (s *GoalService) ByID(userID, goalID string) (*model.Goal, error) {
	return s.repo.ByID(userID, goalID)
}

func (s *GoalService) Goals(userID string, filter model.GoalFilter) ([]*model.Goal, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	filter.Priority = strings.ToLower(strings.TrimSpace(filter.Priority))

	if filter.Status != "" {
		err := validation.ValidateEnum("status", filter.Status, model.GoalStatuses)
		if err != nil {
			return nil, err
		}
	}
	if filter.Category != "" {
		err := validation.ValidateEnum("category", filter.Category, model.GoalCategories)
		if err != nil {
			return nil, err
		}
	}
	if filter.Priority != "" {
		err := validation.ValidateEnum("priority", filter.Priority, model.GoalPriorities)
		if err != nil {
			return nil, err
		}
	}

	return s.repo.Goals(userID, filter)
}

// Update merges the provided fields into the stored goal, re-validates the
// merged record and re-evaluates auto-completion, since a direct edit of the
// amounts can cross the completion threshold. It deliberately does NOT
// evaluate milestones; only Contribute does that.
func (s *GoalService) Update(userID, goalID string, in UpdateGoalInput) (*model.Goal, error) {
	goal, err := s.repo.ByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		goal.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		goal.Description = strings.TrimSpace(*in.Description)
	}
	if in.Notes != nil {
		goal.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.TargetAmount != nil {
		goal.TargetAmount = *in.TargetAmount
	}
	if in.CurrentAmount != nil {
		goal.CurrentAmount = *in.CurrentAmount
	}
	if in.Category != nil {
		goal.Category = normalizeEnum(*in.Category, "other")
	}
	if in.Priority != nil {
		goal.Priority = normalizeEnum(*in.Priority, model.PriorityMedium)
	}
	if in.Status != nil {
		goal.Status = normalizeEnum(*in.Status, model.GoalStatusActive)
	}
	if in.Deadline != nil {
		goal.Deadline = in.Deadline
	}
	if in.IsRecurring != nil {
		goal.IsRecurring = *in.IsRecurring
	}
	if in.RecurringAmount != nil {
		goal.RecurringAmount = in.RecurringAmount
	}
	if in.RecurringFrequency != nil {
		goal.RecurringFrequency = normalizeEnumPtr(in.RecurringFrequency)
	}

	replaceMilestones := in.Milestones != nil
	if replaceMilestones {
		goal.Milestones = milestonesFromInput(in.Milestones)
	}

	err = validateGoal(goal)
	if err != nil {
		return nil, err
	}

	now := s.now()
	goal.EvaluateCompletion(now)
	goal.UpdatedAt = now

	err = s.repo.Update(goal, replaceMilestones)
	if err != nil {
		return nil, err
	}

	return goal, nil
}

// Delete removes the goal and returns the removed record so the caller can
// confirm what was deleted. Related records are not cleaned up here.
func (s *GoalService) Delete(userID, goalID string) (*model.Goal, error) {
	goal, err := s.repo.ByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Delete(userID, goalID)
	if err != nil {
		return nil, err
	}

	return goal, nil
}

// Contribute applies amount to the goal's running total, flags every
// milestone the new total crosses, evaluates auto-completion and persists
// the result atomically. Concurrent contributions are retried on conflict
// rather than silently lost.
func (s *GoalService) Contribute(userID, goalID string, amount decimal.Decimal) (*model.Goal, error) {
	err := validation.ValidateContribution(amount)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < contributionRetries; attempt++ {
		goal, err := s.repo.ByID(userID, goalID)
		if err != nil {
			return nil, err
		}

		prev := goal.CurrentAmount
		now := s.now()
		goal.ApplyContribution(amount, now)
		goal.UpdatedAt = now

		err = s.repo.SaveContribution(goal, prev, now)
		if err == nil {
			return goal, nil
		}
		if !errors.Is(err, repository.ErrStaleGoal) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("contribution not applied after %d attempts: %w", contributionRetries, lastErr)
}

// Statistics aggregates over all goals owned by userID regardless of status.
// Pure read side, mutates nothing.
func (s *GoalService) Statistics(userID string) (*model.Statistics, error) {
	goals, err := s.repo.Goals(userID, model.GoalFilter{})
	if err != nil {
		return nil, err
	}

	byStatus, err := s.repo.StatsByStatus(userID)
	if err != nil {
		return nil, err
	}
	if byStatus == nil {
		byStatus = []model.StatusStat{}
	}

	now := s.now()
	stats := &model.Statistics{
		TotalGoals:           len(goals),
		TotalTargetAmount:    decimal.Zero,
		TotalCurrentAmount:   decimal.Zero,
		TotalRemainingAmount: decimal.Zero,
		ByStatus:             byStatus,
	}

	var progressSum float64
	for _, g := range goals {
		switch g.Status {
		case model.GoalStatusActive:
			stats.ActiveGoals++
		case model.GoalStatusCompleted:
			stats.CompletedGoals++
		}

		stats.TotalTargetAmount = stats.TotalTargetAmount.Add(g.TargetAmount)
		stats.TotalCurrentAmount = stats.TotalCurrentAmount.Add(g.CurrentAmount)
		// Overshot goals subtract; summed as-is, not clamped
		stats.TotalRemainingAmount = stats.TotalRemainingAmount.Add(g.RemainingAmount())
		progressSum += g.ProgressPercentage()

		if g.Status != model.GoalStatusActive || g.Deadline == nil {
			continue
		}
		days := g.DaysRemaining(now)
		if *days > 0 && *days <= 30 {
			stats.GoalsNearDeadline++
		}
		if g.Deadline.Before(now) {
			stats.OverdueGoals++
		}
	}

	if len(goals) > 0 {
		stats.AverageProgress = progressSum / float64(len(goals))
	}

	return stats, nil
}

func normalizeEnum(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func normalizeEnumPtr(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*value))
	return &normalized
}

func milestonesFromInput(inputs []MilestoneInput) []*model.Milestone {
	milestones := make([]*model.Milestone, 0, len(inputs))
	for i, in := range inputs {
		milestones = append(milestones, &model.Milestone{
			ID:           uuid.New().String(),
			Position:     i,
			Amount:       in.Amount,
			Description:  strings.TrimSpace(in.Description),
			Achieved:     in.Achieved,
			AchievedDate: in.AchievedDate,
		})
	}
	return milestones
}

// validateGoal checks the merged record against the create-time field
// constraints. Create and Update share it so an edit can never weaken an
// invariant the create enforced.
func validateGoal(g *model.Goal) error {
	if g.Name == "" {
		return validation.NewFieldError("name", "is required")
	}
	if len(g.Name) > 100 {
		return validation.NewFieldError("name", "must be at most 100 characters")
	}
	if len(g.Description) > 500 {
		return validation.NewFieldError("description", "must be at most 500 characters")
	}
	if len(g.Notes) > 1000 {
		return validation.NewFieldError("notes", "must be at most 1000 characters")
	}

	err := validation.ValidateTargetAmount(g.TargetAmount)
	if err != nil {
		return err
	}
	err = validation.ValidateCurrentAmount(g.CurrentAmount)
	if err != nil {
		return err
	}

	err = validation.ValidateEnum("category", g.Category, model.GoalCategories)
	if err != nil {
		return err
	}
	err = validation.ValidateEnum("priority", g.Priority, model.GoalPriorities)
	if err != nil {
		return err
	}
	err = validation.ValidateEnum("status", g.Status, model.GoalStatuses)
	if err != nil {
		return err
	}

	if g.RecurringAmount != nil && g.RecurringAmount.IsNegative() {
		return validation.NewFieldError("recurringAmount", "cannot be negative")
	}
	if g.RecurringFrequency != nil && *g.RecurringFrequency != "" {
		err = validation.ValidateEnum("recurringFrequency", *g.RecurringFrequency, model.RecurringFrequencies)
		if err != nil {
			return err
		}
	}

	for _, m := range g.Milestones {
		if m.Amount.LessThanOrEqual(decimal.Zero) {
			return validation.NewFieldError("milestones", "milestone amounts must be greater than 0")
		}
	}

	return nil
}
