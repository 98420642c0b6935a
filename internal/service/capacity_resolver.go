package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
)

// Weights of the fallback pool score.
const (
	scoreHasCapacity       = 50
	scoreAgeMatch          = 100
	scoreAgeMismatch       = 20
	scoreNoInstructorClash = 50
	scoreNoCapacityWarning = 30
	scoreRemainingRatio    = 30
)

type classResolution struct {
	index    int
	sessions []models.PlannedSession
	selected int
}

// resolveCapacity evaluates pools for the given classes and auto-selects one
// per session. Results are applied only when every class resolved, so a failed
// lookup leaves the wizard untouched. It returns the number of auto selections.
func (s *WizardService) resolveCapacity(ctx context.Context, creds models.BackendCredentials, w *models.Wizard, classIndexes []int) (int, error) {
	staged := make([]classResolution, len(classIndexes))
	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range classIndexes {
		i, idx := i, idx
		plan := w.Classes[idx]
		g.Go(func() error {
			sessions, selected, err := s.resolveClass(gctx, creds, plan)
			if err != nil {
				return err
			}
			staged[i] = classResolution{index: idx, sessions: sessions, selected: selected}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, res := range staged {
		w.Classes[res.index].Sessions = res.sessions
		total += res.selected
	}
	return total, nil
}

func (s *WizardService) resolveClass(ctx context.Context, creds models.BackendCredentials, plan models.ClassPlan) ([]models.PlannedSession, int, error) {
	sessions := make([]models.PlannedSession, len(plan.Sessions))
	copy(sessions, plan.Sessions)
	if len(sessions) == 0 {
		return sessions, 0, nil
	}

	queries := make([]models.PoolQuery, len(sessions))
	for i, session := range sessions {
		queries[i] = models.PoolQuery{Date: session.Date, Slot: session.Slot.ID}
	}
	startDate, endDate := dateBounds(sessions)

	var (
		pools  [][]models.Pool
		events []models.ExistingSchedule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := s.backend.AvailablePools(gctx, creds, queries)
		if err != nil {
			return err
		}
		pools = result
		return nil
	})
	g.Go(func() error {
		result, err := s.backend.DateRangeSchedule(gctx, creds, startDate, endDate)
		if err != nil {
			return err
		}
		events = result
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if len(pools) != len(sessions) {
		return nil, 0, appErrors.Clone(appErrors.ErrDataShape, fmt.Sprintf("pool availability returned %d lists for %d sessions of class %q", len(pools), len(sessions), plan.Classroom.DisplayName()))
	}

	selected := 0
	for i := range sessions {
		candidates := make([]models.PoolCandidate, 0, len(pools[i]))
		for _, pool := range pools[i] {
			candidates = append(candidates, evaluatePool(plan.Classroom, sessions[i].CandidateSession, pool, events))
		}
		sessions[i].Pools = candidates
		sessions[i].Selection = autoSelect(candidates)
		if sessions[i].Selection != nil {
			selected++
		}
	}
	return sessions, selected, nil
}

// evaluatePool flags a pool for one session and scores it.
func evaluatePool(classroom models.Classroom, session models.CandidateSession, pool models.Pool, events []models.ExistingSchedule) models.PoolCandidate {
	candidate := models.PoolCandidate{
		Pool:                  pool,
		HasAgeWarning:         hasAgeMismatch(classroom.AgeType(), pool.AgeType),
		HasInstructorConflict: hasInstructorConflict(session, classroom.ID, events),
		HasCapacityWarning:    pool.RemainingCapacity < classroom.Course.MaxMember,
	}
	candidate.Score = scorePool(candidate)
	return candidate
}

func hasAgeMismatch(classAgeType string, poolAgeTypes models.AgeTypes) bool {
	if classAgeType == "" || poolAgeTypes.Mixed() {
		return false
	}
	return !poolAgeTypes.Contains(classAgeType)
}

// hasInstructorConflict reports whether the instructor already teaches the
// same date and slot for another class. Entries of the class itself are the
// session being rescheduled.
func hasInstructorConflict(session models.CandidateSession, classID string, events []models.ExistingSchedule) bool {
	if session.Instructor.ID == "" {
		return false
	}
	for _, event := range events {
		if normalizeDate(event.Date) != session.Date {
			continue
		}
		if event.Slot.ID != session.Slot.ID || event.Instructor.ID != session.Instructor.ID {
			continue
		}
		if event.Classroom.ID == "" || event.Classroom.ID != classID {
			return true
		}
	}
	return false
}

func scorePool(c models.PoolCandidate) float64 {
	var score float64
	if c.RemainingCapacity > 0 {
		score += scoreHasCapacity
	}
	if c.HasAgeWarning {
		score += scoreAgeMismatch
	} else {
		score += scoreAgeMatch
	}
	if !c.HasInstructorConflict {
		score += scoreNoInstructorClash
	}
	if !c.HasCapacityWarning {
		score += scoreNoCapacityWarning
	}
	if c.Capacity > 0 {
		score += scoreRemainingRatio * float64(c.RemainingCapacity) / float64(c.Capacity)
	}
	return score
}

// autoSelect trusts the backend's first pool while it has room and falls back
// to the local score once it is exhausted. Ties keep backend order.
func autoSelect(candidates []models.PoolCandidate) *models.PoolSelection {
	if len(candidates) == 0 {
		return nil
	}
	if candidates[0].RemainingCapacity > 0 {
		return &models.PoolSelection{PoolID: candidates[0].ID, Auto: true}
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[best].Score {
			best = i
		}
	}
	return &models.PoolSelection{PoolID: candidates[best].ID, Auto: true}
}
