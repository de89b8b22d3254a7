// Package sync mirrors person records between the orientation trainee
// registry and the advanced-training staff registry. The two registries key
// the same person by different badge formats ("#2501" vs "2501"); this
// package keeps name, badge and active flag consistent in both directions.
package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type ctxKey struct{}

// opToken marks a context as already inside a sync operation. A mirror write
// performed under a tagged context must not trigger the reverse direction,
// otherwise two saves would ping-pong forever.
func opToken(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(ctxKey{}).(string)
	return tok, ok
}

func withOpToken(ctx context.Context) (context.Context, string) {
	tok := uuid.NewString()
	return context.WithValue(ctx, ctxKey{}, tok), tok
}

// Synchronizer propagates saves between the two registries. It starts
// disabled and is switched on explicitly from configuration.
type Synchronizer struct {
	trainees repository.TraineeRepo
	advanced repository.AdvancedRepo
	cohorts  repository.CohortRepo
	logger   *slog.Logger
	enabled  atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

func NewSynchronizer(tr repository.TraineeRepo, adv repository.AdvancedRepo, co repository.CohortRepo, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		trainees: tr,
		advanced: adv,
		cohorts:  co,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEnabled switches mirroring on or off at runtime.
func (s *Synchronizer) SetEnabled(on bool) {
	s.enabled.Store(on)
}

// Enabled reports whether mirroring is active.
func (s *Synchronizer) Enabled() bool {
	return s.enabled.Load()
}

// TraineeSaved mirrors a trainee save into the advanced-staff registry.
// Called after every trainee create or update; a no-op when mirroring is
// disabled or the save itself originated from a sync operation.
func (s *Synchronizer) TraineeSaved(ctx context.Context, t *models.Trainee) error {
	if !s.enabled.Load() {
		return nil
	}
	if tok, ok := opToken(ctx); ok {
		s.logger.Debug("skipping re-entrant sync", slog.String("op", tok), slog.String("badge", t.BadgeNumber))
		return nil
	}
	ctx, tok := withOpToken(ctx)

	badge := models.NormalizeAdvancedBadge(t.BadgeNumber)
	staff, err := s.advanced.GetAdvancedStaffByBadge(ctx, badge)
	if err != nil {
		return fmt.Errorf("sync trainee %s: %w", t.BadgeNumber, err)
	}
	if staff == nil {
		staff = &models.AdvancedStaff{
			BadgeNumber: badge,
			FirstName:   t.FirstName,
			LastName:    t.LastName,
			Role:        models.RoleTrainee,
			IsActive:    t.IsActive,
		}
		if _, err := s.advanced.CreateAdvancedStaff(ctx, staff); err != nil {
			return fmt.Errorf("sync trainee %s: %w", t.BadgeNumber, err)
		}
		s.logger.Info("mirrored trainee into advanced registry",
			slog.String("op", tok), slog.String("badge", badge))
		return nil
	}

	// diff before writing so an unchanged save stays write-free
	if staff.FirstName == t.FirstName && staff.LastName == t.LastName && staff.IsActive == t.IsActive {
		return nil
	}
	staff.FirstName = t.FirstName
	staff.LastName = t.LastName
	staff.IsActive = t.IsActive
	if err := s.advanced.UpdateAdvancedStaff(ctx, staff); err != nil {
		return fmt.Errorf("sync trainee %s: %w", t.BadgeNumber, err)
	}
	s.logger.Info("updated mirrored advanced staff",
		slog.String("op", tok), slog.String("badge", badge))
	return nil
}

// AdvancedStaffSaved mirrors an advanced-staff save into the trainee
// registry. New mirror trainees join the current cohort; when no cohort
// exists the record is skipped with a warning rather than failing the save.
func (s *Synchronizer) AdvancedStaffSaved(ctx context.Context, staff *models.AdvancedStaff) error {
	if !s.enabled.Load() {
		return nil
	}
	if tok, ok := opToken(ctx); ok {
		s.logger.Debug("skipping re-entrant sync", slog.String("op", tok), slog.String("badge", staff.BadgeNumber))
		return nil
	}
	ctx, tok := withOpToken(ctx)

	badge := models.NormalizeTraineeBadge(staff.BadgeNumber)
	trainee, err := s.trainees.GetTraineeByBadge(ctx, badge)
	if err != nil {
		return fmt.Errorf("sync staff %s: %w", staff.BadgeNumber, err)
	}
	if trainee == nil {
		cohort, err := s.cohorts.CurrentCohort(ctx, s.now())
		if err != nil {
			return fmt.Errorf("sync staff %s: %w", staff.BadgeNumber, err)
		}
		if cohort == nil {
			s.logger.Warn("no cohort available, skipping staff mirror",
				slog.String("op", tok), slog.String("badge", badge))
			return nil
		}
		trainee = &models.Trainee{
			BadgeNumber: badge,
			FirstName:   staff.FirstName,
			LastName:    staff.LastName,
			CohortID:    cohort.ID,
			IsActive:    staff.IsActive,
		}
		if _, err := s.trainees.CreateTrainee(ctx, trainee); err != nil {
			return fmt.Errorf("sync staff %s: %w", staff.BadgeNumber, err)
		}
		s.logger.Info("mirrored advanced staff into trainee registry",
			slog.String("op", tok), slog.String("badge", badge), slog.String("cohort", cohort.Name))
		return nil
	}

	if trainee.FirstName == staff.FirstName && trainee.LastName == staff.LastName && trainee.IsActive == staff.IsActive {
		return nil
	}
	trainee.FirstName = staff.FirstName
	trainee.LastName = staff.LastName
	trainee.IsActive = staff.IsActive
	if err := s.trainees.UpdateTrainee(ctx, trainee); err != nil {
		return fmt.Errorf("sync staff %s: %w", staff.BadgeNumber, err)
	}
	s.logger.Info("updated mirrored trainee",
		slog.String("op", tok), slog.String("badge", badge))
	return nil
}
