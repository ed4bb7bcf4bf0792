package model

import "github.com/shopspring/decimal"

// StatusStat is one row of the per-status aggregate breakdown.
type StatusStat struct {
	Status       string          `db:"status" json:"status"`
	Count        int             `db:"count" json:"count"`
	TotalTarget  decimal.Decimal `db:"total_target" json:"totalTarget"`
	TotalCurrent decimal.Decimal `db:"total_current" json:"totalCurrent"`
}

// Statistics summarizes all goals owned by one user, regardless of status.
type Statistics struct {
	TotalGoals           int             `json:"totalGoals"`
	ActiveGoals          int             `json:"activeGoals"`
	CompletedGoals       int             `json:"completedGoals"`
	TotalTargetAmount    decimal.Decimal `json:"totalTargetAmount"`
	TotalCurrentAmount   decimal.Decimal `json:"totalCurrentAmount"`
	TotalRemainingAmount decimal.Decimal `json:"totalRemainingAmount"`
	AverageProgress      float64         `json:"averageProgress"`
	GoalsNearDeadline    int             `json:"goalsNearDeadline"`
	OverdueGoals         int             `json:"overdueGoals"`

	ByStatus []StatusStat `json:"byStatus"`
}
