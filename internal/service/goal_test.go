package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrackhq/fintrack/internal/model"
	"github.com/fintrackhq/fintrack/internal/repository"
	"github.com/fintrackhq/fintrack/internal/validation"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// fakeGoalRepository keeps goals in memory and mimics the optimistic
// concurrency contract of the SQL implementation.
type fakeGoalRepository struct {
	goals map[string]*model.Goal

	// staleSaves makes the next N SaveContribution calls fail as stale.
	staleSaves int
	saveCalls  int
}

func newFakeGoalRepository() *fakeGoalRepository {
	return &fakeGoalRepository{goals: map[string]*model.Goal{}}
}

func (f *fakeGoalRepository) Create(goal *model.Goal) error {
	stored := *goal
	f.goals[goal.ID] = &stored
	return nil
}

func (f *fakeGoalRepository) ByID(userID, goalID string) (*model.Goal, error) {
	stored, ok := f.goals[goalID]
	if !ok || stored.UserID != userID {
		return nil, repository.ErrGoalNotFound
	}
	copied := *stored
	copied.Milestones = make([]*model.Milestone, len(stored.Milestones))
	for i, m := range stored.Milestones {
		ms := *m
		copied.Milestones[i] = &ms
	}
	return &copied, nil
}

func (f *fakeGoalRepository) Goals(userID string, filter model.GoalFilter) ([]*model.Goal, error) {
	var out []*model.Goal
	for _, g := range f.goals {
		if g.UserID != userID {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		if filter.Category != "" && g.Category != filter.Category {
			continue
		}
		if filter.Priority != "" && g.Priority != filter.Priority {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGoalRepository) Update(goal *model.Goal, replaceMilestones bool) error {
	stored, ok := f.goals[goal.ID]
	if !ok || stored.UserID != goal.UserID {
		return repository.ErrGoalNotFound
	}
	updated := *goal
	if !replaceMilestones {
		updated.Milestones = stored.Milestones
	}
	f.goals[goal.ID] = &updated
	return nil
}

func (f *fakeGoalRepository) SaveContribution(goal *model.Goal, prevAmount decimal.Decimal, now time.Time) error {
	f.saveCalls++
	if f.staleSaves > 0 {
		f.staleSaves--
		return repository.ErrStaleGoal
	}
	stored, ok := f.goals[goal.ID]
	if !ok || stored.UserID != goal.UserID {
		return repository.ErrGoalNotFound
	}
	if !stored.CurrentAmount.Equal(prevAmount) {
		return repository.ErrStaleGoal
	}
	updated := *goal
	f.goals[goal.ID] = &updated
	return nil
}

func (f *fakeGoalRepository) Delete(userID, goalID string) error {
	stored, ok := f.goals[goalID]
	if !ok || stored.UserID != userID {
		return repository.ErrGoalNotFound
	}
	delete(f.goals, goalID)
	return nil
}

func (f *fakeGoalRepository) StatsByStatus(userID string) ([]model.StatusStat, error) {
	byStatus := map[string]*model.StatusStat{}
	for _, g := range f.goals {
		if g.UserID != userID {
			continue
		}
		stat, ok := byStatus[g.Status]
		if !ok {
			stat = &model.StatusStat{Status: g.Status}
			byStatus[g.Status] = stat
		}
		stat.Count++
		stat.TotalTarget = stat.TotalTarget.Add(g.TargetAmount)
		stat.TotalCurrent = stat.TotalCurrent.Add(g.CurrentAmount)
	}
	var out []model.StatusStat
	for _, stat := range byStatus {
		out = append(out, *stat)
	}
	return out, nil
}

func newTestGoalService() (*GoalService, *fakeGoalRepository) {
	repo := newFakeGoalRepository()
	svc := NewGoalService(repo).WithClock(func() time.Time { return testNow })
	return svc, repo
}

func TestGoalServiceCreate(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc, _ := newTestGoalService()

		goal, err := svc.Create("user-1", CreateGoalInput{
			Name:         "  New Car  ",
			TargetAmount: dec("500000"),
		})
		require.NoError(t, err)

		assert.NotEmpty(t, goal.ID)
		assert.Equal(t, "user-1", goal.UserID)
		assert.Equal(t, "New Car", goal.Name)
		assert.Equal(t, "other", goal.Category)
		assert.Equal(t, model.PriorityMedium, goal.Priority)
		assert.Equal(t, model.GoalStatusActive, goal.Status)
		assert.True(t, goal.CurrentAmount.IsZero())
		assert.Equal(t, testNow, goal.CreatedAt)
	})

	t.Run("normalizes enum casing", func(t *testing.T) {
		svc, _ := newTestGoalService()

		goal, err := svc.Create("user-1", CreateGoalInput{
			Name:         "Vacation",
			TargetAmount: dec("1000"),
			Category:     "Vacation",
			Priority:     "HIGH",
		})
		require.NoError(t, err)
		assert.Equal(t, "vacation", goal.Category)
		assert.Equal(t, model.PriorityHigh, goal.Priority)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		svc, _ := newTestGoalService()

		_, err := svc.Create("user-1", CreateGoalInput{TargetAmount: dec("100")})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("rejects non-positive target", func(t *testing.T) {
		svc, _ := newTestGoalService()

		_, err := svc.Create("user-1", CreateGoalInput{Name: "x", TargetAmount: dec("0")})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		svc, _ := newTestGoalService()

		_, err := svc.Create("user-1", CreateGoalInput{
			Name: "x", TargetAmount: dec("100"), Category: "yachts",
		})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("rejects non-positive milestone amounts", func(t *testing.T) {
		svc, _ := newTestGoalService()

		_, err := svc.Create("user-1", CreateGoalInput{
			Name: "x", TargetAmount: dec("100"),
			Milestones: []MilestoneInput{{Amount: dec("0")}},
		})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})
}

func TestGoalServiceGoals(t *testing.T) {
	t.Run("rejects unknown filter values", func(t *testing.T) {
		svc, _ := newTestGoalService()

		_, err := svc.Goals("user-1", model.GoalFilter{Status: "archived"})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("normalizes filter casing", func(t *testing.T) {
		svc, _ := newTestGoalService()
		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "a", TargetAmount: dec("100"), Priority: "high"})
		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "b", TargetAmount: dec("100"), Priority: "low"})

		goals, err := svc.Goals("user-1", model.GoalFilter{Priority: " HIGH "})
		require.NoError(t, err)
		require.Len(t, goals, 1)
		assert.Equal(t, "a", goals[0].Name)
	})
}

func TestGoalServiceContribute(t *testing.T) {
	t.Run("accumulates and auto-completes", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("500000")})

		updated, err := svc.Contribute("user-1", goal.ID, dec("150000"))
		require.NoError(t, err)
		assert.Equal(t, "150000", updated.CurrentAmount.String())
		assert.Equal(t, model.GoalStatusActive, updated.Status)

		updated, err = svc.Contribute("user-1", goal.ID, dec("350000"))
		require.NoError(t, err)
		assert.Equal(t, "500000", updated.CurrentAmount.String())
		assert.Equal(t, model.GoalStatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedDate)
		assert.Equal(t, testNow, *updated.CompletedDate)
	})

	t.Run("flags crossed milestones", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{
			Name: "House", TargetAmount: dec("500000"),
			Milestones: []MilestoneInput{
				{Amount: dec("100000")},
				{Amount: dec("300000")},
			},
		})

		updated, err := svc.Contribute("user-1", goal.ID, dec("250000"))
		require.NoError(t, err)
		require.Len(t, updated.Milestones, 2)
		assert.True(t, updated.Milestones[0].Achieved)
		assert.False(t, updated.Milestones[1].Achieved)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		_, err := svc.Contribute("user-1", goal.ID, dec("0"))
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))

		_, err = svc.Contribute("user-1", goal.ID, dec("-5"))
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("does not touch other users' goals", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		_, err := svc.Contribute("user-2", goal.ID, dec("10"))
		assert.ErrorIs(t, err, repository.ErrGoalNotFound)
	})

	t.Run("retries on conflict", func(t *testing.T) {
		svc, repo := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})
		repo.staleSaves = 2

		updated, err := svc.Contribute("user-1", goal.ID, dec("10"))
		require.NoError(t, err)
		assert.Equal(t, "10", updated.CurrentAmount.String())
		assert.Equal(t, 3, repo.saveCalls)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		svc, repo := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})
		repo.staleSaves = contributionRetries

		_, err := svc.Contribute("user-1", goal.ID, dec("10"))
		assert.ErrorIs(t, err, repository.ErrStaleGoal)
	})
}

func TestGoalServiceUpdate(t *testing.T) {
	t.Run("merges only provided fields", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{
			Name: "Car", Description: "sedan", TargetAmount: dec("500000"),
		})

		updated, err := svc.Update("user-1", goal.ID, UpdateGoalInput{Name: ptr("Truck")})
		require.NoError(t, err)
		assert.Equal(t, "Truck", updated.Name)
		assert.Equal(t, "sedan", updated.Description)
		assert.Equal(t, "500000", updated.TargetAmount.String())
	})

	t.Run("editing amounts can auto-complete", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("500000")})

		updated, err := svc.Update("user-1", goal.ID, UpdateGoalInput{CurrentAmount: ptr(dec("500000"))})
		require.NoError(t, err)
		assert.Equal(t, model.GoalStatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedDate)
	})

	t.Run("editing amounts never flags milestones", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{
			Name: "Car", TargetAmount: dec("500000"),
			Milestones: []MilestoneInput{{Amount: dec("100000")}},
		})

		updated, err := svc.Update("user-1", goal.ID, UpdateGoalInput{CurrentAmount: ptr(dec("200000"))})
		require.NoError(t, err)
		require.Len(t, updated.Milestones, 1)
		assert.False(t, updated.Milestones[0].Achieved)
	})

	t.Run("manual status transitions are unrestricted", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		updated, err := svc.Update("user-1", goal.ID, UpdateGoalInput{Status: ptr(model.GoalStatusCancelled)})
		require.NoError(t, err)
		assert.Equal(t, model.GoalStatusCancelled, updated.Status)

		updated, err = svc.Update("user-1", goal.ID, UpdateGoalInput{Status: ptr(model.GoalStatusActive)})
		require.NoError(t, err)
		assert.Equal(t, model.GoalStatusActive, updated.Status)
	})

	t.Run("re-activating a completed goal keeps its completed date", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})
		_, err := svc.Contribute("user-1", goal.ID, dec("100"))
		require.NoError(t, err)

		updated, err := svc.Update("user-1", goal.ID, UpdateGoalInput{Status: ptr(model.GoalStatusActive)})
		require.NoError(t, err)
		// Still over target, so it completes again with the original date
		assert.Equal(t, model.GoalStatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedDate)
		assert.Equal(t, testNow, *updated.CompletedDate)
	})

	t.Run("update validates the merged record", func(t *testing.T) {
		svc, _ := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		_, err := svc.Update("user-1", goal.ID, UpdateGoalInput{TargetAmount: ptr(dec("0"))})
		require.Error(t, err)
		assert.True(t, validation.IsFieldError(err))
	})

	t.Run("unknown goal", func(t *testing.T) {
		svc, _ := newTestGoalService()
		_, err := svc.Update("user-1", "missing", UpdateGoalInput{Name: ptr("x")})
		assert.ErrorIs(t, err, repository.ErrGoalNotFound)
	})
}

func TestGoalServiceDelete(t *testing.T) {
	t.Run("returns the removed record", func(t *testing.T) {
		svc, repo := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		removed, err := svc.Delete("user-1", goal.ID)
		require.NoError(t, err)
		assert.Equal(t, goal.ID, removed.ID)
		assert.Empty(t, repo.goals)
	})

	t.Run("cross-user delete is not found", func(t *testing.T) {
		svc, repo := newTestGoalService()
		goal := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "Car", TargetAmount: dec("100")})

		_, err := svc.Delete("user-2", goal.ID)
		assert.ErrorIs(t, err, repository.ErrGoalNotFound)
		assert.Len(t, repo.goals, 1)
	})
}

func TestGoalServiceStatistics(t *testing.T) {
	t.Run("zero goals yields zero values", func(t *testing.T) {
		svc, _ := newTestGoalService()

		stats, err := svc.Statistics("user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalGoals)
		assert.Equal(t, float64(0), stats.AverageProgress)
		assert.True(t, stats.TotalTargetAmount.IsZero())
		assert.NotNil(t, stats.ByStatus)
		assert.Empty(t, stats.ByStatus)
	})

	t.Run("aggregates across statuses", func(t *testing.T) {
		svc, _ := newTestGoalService()
		a := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "a", TargetAmount: dec("1000")})
		_, err := svc.Contribute("user-1", a.ID, dec("250"))
		require.NoError(t, err)

		b := mustCreate(t, svc, "user-1", CreateGoalInput{Name: "b", TargetAmount: dec("500")})
		_, err = svc.Contribute("user-1", b.ID, dec("500"))
		require.NoError(t, err)

		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "c", TargetAmount: dec("100"), Status: "paused"})
		mustCreate(t, svc, "user-2", CreateGoalInput{Name: "other", TargetAmount: dec("9999")})

		stats, err := svc.Statistics("user-1")
		require.NoError(t, err)

		assert.Equal(t, 3, stats.TotalGoals)
		assert.Equal(t, 1, stats.ActiveGoals)
		assert.Equal(t, 1, stats.CompletedGoals)
		assert.Equal(t, "1600", stats.TotalTargetAmount.String())
		assert.Equal(t, "750", stats.TotalCurrentAmount.String())
		assert.Equal(t, "850", stats.TotalRemainingAmount.String())
		// (25 + 100 + 0) / 3
		assert.InDelta(t, 41.6667, stats.AverageProgress, 0.001)
		assert.Len(t, stats.ByStatus, 3)
	})

	t.Run("deadline buckets only count active goals", func(t *testing.T) {
		svc, _ := newTestGoalService()

		near := testNow.Add(10 * 24 * time.Hour)
		far := testNow.Add(90 * 24 * time.Hour)
		past := testNow.Add(-24 * time.Hour)

		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "near", TargetAmount: dec("100"), Deadline: &near})
		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "far", TargetAmount: dec("100"), Deadline: &far})
		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "overdue", TargetAmount: dec("100"), Deadline: &past})
		mustCreate(t, svc, "user-1", CreateGoalInput{Name: "paused near", TargetAmount: dec("100"), Deadline: &near, Status: "paused"})

		stats, err := svc.Statistics("user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.GoalsNearDeadline)
		assert.Equal(t, 1, stats.OverdueGoals)
	})
}

func mustCreate(t *testing.T, svc *GoalService, userID string, in CreateGoalInput) *model.Goal {
	t.Helper()
	goal, err := svc.Create(userID, in)
	require.NoError(t, err)
	return goal
}
