package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/model"
)

var (
	ErrGoalNotFound = errors.New("goal not found")

	// ErrStaleGoal signals that the goal row changed between read and write.
	// Callers re-read and retry.
	ErrStaleGoal = errors.New("goal modified concurrently")
)

type GoalRepository interface {
	Create(goal *model.Goal) error
	ByID(userID, goalID string) (*model.Goal, error)
	Goals(userID string, filter model.GoalFilter) ([]*model.Goal, error)
	Update(goal *model.Goal, replaceMilestones bool) error
	SaveContribution(goal *model.Goal, prevAmount decimal.Decimal, now time.Time) error
	Delete(userID, goalID string) error
	StatsByStatus(userID string) ([]model.StatusStat, error)
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

// listOrder implements the listing contract: priority rank descending,
// deadline ascending with missing deadlines last, newest created first.
const listOrder = `ORDER BY
	CASE priority WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END DESC,
	(deadline IS NULL), deadline ASC,
	created_at DESC`

func (r *goalRepository) Create(goal *model.Goal) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO goals (
		id, user_id, name, description, notes, target_amount, current_amount,
		category, priority, status, deadline, is_recurring, recurring_amount,
		recurring_frequency, completed_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = tx.Exec(query,
		goal.ID,
		goal.UserID,
		goal.Name,
		goal.Description,
		goal.Notes,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.Category,
		goal.Priority,
		goal.Status,
		goal.Deadline,
		goal.IsRecurring,
		goal.RecurringAmount,
		goal.RecurringFrequency,
		goal.CompletedDate,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	if err != nil {
		return err
	}

	err = insertMilestones(tx, goal)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *goalRepository) ByID(userID, goalID string) (*model.Goal, error) {
	goal := &model.Goal{}
	query := `SELECT * FROM goals WHERE id = $1 AND user_id = $2`

	err := r.db.Get(goal, query, goalID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	query = `SELECT * FROM goal_milestones WHERE goal_id = $1 ORDER BY position`
	err = r.db.Select(&goal.Milestones, query, goal.ID)
	if err != nil {
		return nil, err
	}
	if goal.Milestones == nil {
		goal.Milestones = []*model.Milestone{}
	}

	return goal, nil
}

func (r *goalRepository) Goals(userID string, filter model.GoalFilter) ([]*model.Goal, error) {
	query := `SELECT * FROM goals WHERE user_id = $1`
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}

	var goals []*model.Goal
	err := r.db.Select(&goals, query+" "+listOrder, args...)
	if err != nil {
		return nil, err
	}

	err = r.attachMilestones(userID, goals)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

// attachMilestones loads the milestones for all of a user's goals in one
// query and groups them in insertion order.
func (r *goalRepository) attachMilestones(userID string, goals []*model.Goal) error {
	byGoal := make(map[string]*model.Goal, len(goals))
	for _, g := range goals {
		g.Milestones = []*model.Milestone{}
		byGoal[g.ID] = g
	}
	if len(goals) == 0 {
		return nil
	}

	var milestones []*model.Milestone
	query := `SELECT m.* FROM goal_milestones m
		JOIN goals g ON g.id = m.goal_id
		WHERE g.user_id = $1
		ORDER BY m.goal_id, m.position`
	err := r.db.Select(&milestones, query, userID)
	if err != nil {
		return err
	}

	for _, m := range milestones {
		goal, ok := byGoal[m.GoalID]
		if ok {
			goal.Milestones = append(goal.Milestones, m)
		}
	}

	return nil
}

func (r *goalRepository) Update(goal *model.Goal, replaceMilestones bool) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE goals SET
		name = $1, description = $2, notes = $3, target_amount = $4,
		current_amount = $5, category = $6, priority = $7, status = $8,
		deadline = $9, is_recurring = $10, recurring_amount = $11,
		recurring_frequency = $12, completed_date = $13, updated_at = $14
		WHERE id = $15 AND user_id = $16`

	result, err := tx.Exec(query,
		goal.Name,
		goal.Description,
		goal.Notes,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.Category,
		goal.Priority,
		goal.Status,
		goal.Deadline,
		goal.IsRecurring,
		goal.RecurringAmount,
		goal.RecurringFrequency,
		goal.CompletedDate,
		goal.UpdatedAt,
		goal.ID,
		goal.UserID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGoalNotFound
	}

	if replaceMilestones {
		_, err = tx.Exec(`DELETE FROM goal_milestones WHERE goal_id = $1`, goal.ID)
		if err != nil {
			return err
		}
		err = insertMilestones(tx, goal)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveContribution persists a contribution applied in memory. The goal row
// and the milestone flags commit together, guarded by an optimistic check on
// the previously read running total so a concurrent contribution cannot be
// silently overwritten.
func (r *goalRepository) SaveContribution(goal *model.Goal, prevAmount decimal.Decimal, now time.Time) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE goals SET
		current_amount = $1, status = $2, completed_date = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6 AND current_amount = $7`

	result, err := tx.Exec(query,
		goal.CurrentAmount,
		goal.Status,
		goal.CompletedDate,
		goal.UpdatedAt,
		goal.ID,
		goal.UserID,
		prevAmount,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleGoal
	}

	query = `UPDATE goal_milestones SET achieved = TRUE, achieved_date = $1
		WHERE goal_id = $2 AND achieved = FALSE AND amount <= $3`
	_, err = tx.Exec(query, now, goal.ID, goal.CurrentAmount)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *goalRepository) Delete(userID, goalID string) error {
	result, err := r.db.Exec(`DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGoalNotFound
	}

	return nil
}

func (r *goalRepository) StatsByStatus(userID string) ([]model.StatusStat, error) {
	var stats []model.StatusStat
	query := `SELECT status,
		COUNT(*) AS count,
		SUM(target_amount) AS total_target,
		SUM(current_amount) AS total_current
		FROM goals WHERE user_id = $1
		GROUP BY status ORDER BY status`

	err := r.db.Select(&stats, query, userID)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func insertMilestones(tx *sqlx.Tx, goal *model.Goal) error {
	query := `INSERT INTO goal_milestones (id, goal_id, position, amount, description, achieved, achieved_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i, m := range goal.Milestones {
		m.GoalID = goal.ID
		m.Position = i
		_, err := tx.Exec(query, m.ID, m.GoalID, m.Position, m.Amount, m.Description, m.Achieved, m.AchievedDate)
		if err != nil {
			return err
		}
	}

	return nil
}
