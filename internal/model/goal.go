package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusPaused    = "paused"
	GoalStatusCancelled = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

var GoalCategories = []string{
	"emergency_fund", "vacation", "house", "car", "education",
	"retirement", "debt_payoff", "investment", "other",
}

var GoalStatuses = []string{GoalStatusActive, GoalStatusCompleted, GoalStatusPaused, GoalStatusCancelled}

var GoalPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

var RecurringFrequencies = []string{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

type Goal struct {
	ID                 string           `db:"id" json:"id"`
	UserID             string           `db:"user_id" json:"userId"`
	Name               string           `db:"name" json:"name"`
	Description        string           `db:"description" json:"description,omitempty"`
	Notes              string           `db:"notes" json:"notes,omitempty"`
	TargetAmount       decimal.Decimal  `db:"target_amount" json:"targetAmount"`
	CurrentAmount      decimal.Decimal  `db:"current_amount" json:"currentAmount"`
	Category           string           `db:"category" json:"category"`
	Priority           string           `db:"priority" json:"priority"`
	Status             string           `db:"status" json:"status"`
	Deadline           *time.Time       `db:"deadline" json:"deadline,omitempty"`
	IsRecurring        bool             `db:"is_recurring" json:"isRecurring"`
	RecurringAmount    *decimal.Decimal `db:"recurring_amount" json:"recurringAmount,omitempty"`
	RecurringFrequency *string          `db:"recurring_frequency" json:"recurringFrequency,omitempty"`
	CompletedDate      *time.Time       `db:"completed_date" json:"completedDate,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`

	// Loaded from goal_milestones, not a column
	Milestones []*Milestone `db:"-" json:"milestones"`
}

type Milestone struct {
	ID           string          `db:"id" json:"id"`
	GoalID       string          `db:"goal_id" json:"-"`
	Position     int             `db:"position" json:"-"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Description  string          `db:"description" json:"description,omitempty"`
	Achieved     bool            `db:"achieved" json:"achieved"`
	AchievedDate *time.Time      `db:"achieved_date" json:"achievedDate,omitempty"`
}

// GoalFilter narrows a goal listing. Empty fields are not filtered on;
// all set fields combine with AND.
type GoalFilter struct {
	Status   string
	Category string
	Priority string
}

// ApplyContribution adds amount to the running total, flags every milestone
// the new total crosses, and evaluates auto-completion. The caller is
// responsible for validating amount > 0 and for persisting the result.
func (g *Goal) ApplyContribution(amount decimal.Decimal, now time.Time) {
	g.CurrentAmount = g.CurrentAmount.Add(amount)

	for _, m := range g.Milestones {
		if !m.Achieved && g.CurrentAmount.GreaterThanOrEqual(m.Amount) {
			m.Achieved = true
			achievedAt := now
			m.AchievedDate = &achievedAt
		}
	}

	g.EvaluateCompletion(now)
}

// EvaluateCompletion applies the active → completed auto-transition. It only
// fires while the goal is active, and never overwrites an existing
// completed date, so repeated evaluation is stable.
func (g *Goal) EvaluateCompletion(now time.Time) {
	if g.Status != GoalStatusActive {
		return
	}
	if g.CurrentAmount.LessThan(g.TargetAmount) {
		return
	}

	g.Status = GoalStatusCompleted
	if g.CompletedDate == nil {
		completedAt := now
		g.CompletedDate = &completedAt
	}
}

// ProgressPercentage is derived at serialization time, never stored.
func (g *Goal) ProgressPercentage() float64 {
	if g.TargetAmount.IsZero() {
		return 0
	}
	current, _ := g.CurrentAmount.Float64()
	target, _ := g.TargetAmount.Float64()
	return current / target * 100
}

func (g *Goal) RemainingAmount() decimal.Decimal {
	return g.TargetAmount.Sub(g.CurrentAmount)
}

// DaysRemaining returns the number of days until the deadline rounded up,
// or nil when no deadline is set. Overdue goals yield negative values.
func (g *Goal) DaysRemaining(now time.Time) *int {
	if g.Deadline == nil {
		return nil
	}
	days := int(math.Ceil(g.Deadline.Sub(now).Hours() / 24))
	return &days
}
