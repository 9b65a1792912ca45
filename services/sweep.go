package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// Sweeper runs the periodic maintenance passes: auto-cancelling
// submissions that stalled or aged out, and expiring last calls. All
// passes are fire-and-forget from any user's perspective but always leave
// an audit event.
type Sweeper struct {
	db       *gorm.DB
	subs     *SubmissionService
	lastCall *LastCallService
	settings config.Settings
}

func NewSweeper(db *gorm.DB, settings config.Settings) *Sweeper {
	if db == nil {
		db = config.DB
	}
	return &Sweeper{
		db:       db,
		subs:     NewSubmissionService(db),
		lastCall: NewLastCallService(db, settings),
		settings: settings,
	}
}

// Run executes every pass on a ticker until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes every pass a single time, logging instead of aborting
// on per-pass errors.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if n, err := s.CancelStalledValidations(ctx); err != nil {
		log.Printf("sweep: stalled-validation pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweep: cancelled %d submissions with stalled validation", n)
	}

	if n, err := s.CancelAgedSubmissions(ctx); err != nil {
		log.Printf("sweep: aged-submission pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweep: cancelled %d aged submissions", n)
	}

	if n, err := s.lastCall.ExpireLastCalls(ctx); err != nil {
		log.Printf("sweep: last-call expiry pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweep: advanced %d documents past last call", n)
	}

	if n, err := s.PruneSettledChecks(ctx); err != nil {
		log.Printf("sweep: check-pruning pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweep: pruned %d check rows of settled submissions", n)
	}
}

// PruneSettledChecks trims the stored check history of terminal
// submissions down to the first and last verdict per checker. In-flight
// submissions keep their full history.
func (s *Sweeper) PruneSettledChecks(ctx context.Context) (int, error) {
	var ids []int
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("state IN ?", []string{models.SubmissionPosted, models.SubmissionCancelled}).
		Pluck("submission_id", &ids).Error
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, id := range ids {
		n, err := s.subs.PruneChecks(ctx, id)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	return pruned, nil
}

// CancelStalledValidations cancels submissions whose validation never
// completed within the configured maximum wait.
func (s *Sweeper) CancelStalledValidations(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.settings.ValidationTimeout)
	var stalled []models.Submission
	err := s.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", models.SubmissionValidating, cutoff).
		Find(&stalled).Error
	if err != nil {
		return 0, err
	}
	return s.cancelAll(ctx, stalled, fmt.Sprintf(
		"validation did not complete within %s", s.settings.ValidationTimeout))
}

// CancelAgedSubmissions cancels submissions that sat in any non-terminal
// state past the maximum age without being posted.
func (s *Sweeper) CancelAgedSubmissions(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.settings.MaxSubmissionAge)
	var aged []models.Submission
	err := s.db.WithContext(ctx).
		Where("active IS NOT NULL AND created_at < ?", cutoff).
		Find(&aged).Error
	if err != nil {
		return 0, err
	}
	return s.cancelAll(ctx, aged, fmt.Sprintf(
		"submission was not posted within %s", s.settings.MaxSubmissionAge))
}

func (s *Sweeper) cancelAll(ctx context.Context, subs []models.Submission, cause string) (int, error) {
	cancelled := 0
	for i := range subs {
		_, err := s.subs.Cancel(ctx, subs[i].SubmissionID, nil, cause)
		if err != nil {
			// A user action won the race; the transition guard is the
			// concurrency control here, not a lock.
			var ite *InvalidTransitionError
			if errors.As(err, &ite) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}
