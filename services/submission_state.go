package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// submissionEdges enumerates the permitted submission transitions. posted
// is reachable only through the Document Poster; cancel from every
// non-terminal state; manual is always available as an operator override.
var submissionEdges = map[string][]string{
	models.SubmissionWaitingForDraft: {models.SubmissionUploaded, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionUploaded:        {models.SubmissionValidating, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionValidating: {
		models.SubmissionAuth,
		models.SubmissionGroupApproval,
		models.SubmissionADApproval,
		models.SubmissionAuthorApproval,
		models.SubmissionManual,
		models.SubmissionPosted,
		models.SubmissionCancelled,
	},
	models.SubmissionAuth:           {models.SubmissionPosted, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionGroupApproval:  {models.SubmissionPosted, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionADApproval:     {models.SubmissionPosted, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionAuthorApproval: {models.SubmissionPosted, models.SubmissionManual, models.SubmissionCancelled},
	models.SubmissionManual:         {models.SubmissionPosted, models.SubmissionCancelled},
	models.SubmissionPosted:         {},
	models.SubmissionCancelled:      {},
}

// SubmissionInput is the intake request after upload parsing succeeded.
type SubmissionInput struct {
	Name           string
	Rev            string
	GroupID        *int
	Title          string
	Abstract       string
	Pages          int
	SubmitterEmail string
	Authors        []string
	Replaces       []string
	State          string // defaults to uploaded; waiting-for-draft for mail-triggered intake
}

// SubmissionService drives submissions through their state machine.
type SubmissionService struct {
	db *gorm.DB
}

func NewSubmissionService(db *gorm.DB) *SubmissionService {
	if db == nil {
		db = config.DB
	}
	return &SubmissionService{db: db}
}

// WithTx rebinds the service to a caller-owned transaction so a state
// change and its dependent rows commit together.
func (s *SubmissionService) WithTx(tx *gorm.DB) *SubmissionService {
	return &SubmissionService{db: tx}
}

// Create records a new in-flight submission. The (name, rev, active)
// unique index is the authority on duplicates; the friendly pre-check just
// produces a better error message for the common case.
func (s *SubmissionService) Create(ctx context.Context, in SubmissionInput) (*models.Submission, error) {
	verr := &ValidationError{}
	if in.Name == "" || len(in.Rev) != 2 {
		verr.Add("name", "draft name and two-digit revision are required")
	}
	if in.SubmitterEmail == "" {
		verr.Add("submitter", "submitter identity is required")
	}
	if verr.HasProblems() {
		return nil, verr
	}

	state := in.State
	if state == "" {
		state = models.SubmissionUploaded
	}
	if state != models.SubmissionUploaded && state != models.SubmissionWaitingForDraft {
		return nil, fmt.Errorf("submissions cannot be created in state %q", state)
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("name = ? AND rev = ? AND active IS NOT NULL", in.Name, in.Rev).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateSubmission
	}

	active := true
	sub := &models.Submission{
		Name:           in.Name,
		Rev:            in.Rev,
		Active:         &active,
		GroupID:        in.GroupID,
		Title:          in.Title,
		Abstract:       in.Abstract,
		Pages:          in.Pages,
		SubmitterEmail: in.SubmitterEmail,
		Authors:        strings.Join(in.Authors, ","),
		Replaces:       strings.Join(in.Replaces, ","),
		State:          state,
		AccessToken:    uuid.NewString(),
		SubmissionDate: time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		return tx.Create(&models.SubmissionEvent{
			SubmissionID: sub.SubmissionID,
			Desc:         fmt.Sprintf("Uploaded new revision %s of %s", sub.Rev, sub.Name),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
			return nil, ErrDuplicateSubmission
		}
		return nil, err
	}
	return sub, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

// Transition moves a submission along one permitted edge, writing a
// SubmissionEvent in the same transaction. An off-graph target returns
// *InvalidTransitionError with no mutation and no event.
//
// The write is guarded on the state the edge was checked against, so two
// racing transitions cannot both win: the loser's UPDATE matches zero rows
// and the whole transaction rolls back.
func (s *SubmissionService) Transition(ctx context.Context, submissionID int, to string, byUserID *int, desc string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, submissionID).Error; err != nil {
			return err
		}
		from := sub.State
		if !edgeAllowed(from, to) {
			return &InvalidTransitionError{Kind: "submission", From: from, To: to}
		}

		if desc == "" {
			desc = fmt.Sprintf("State changed to %s from %s", to, from)
		}
		sub.State = to
		updates := map[string]any{"state": to}
		if sub.IsTerminal() {
			sub.Active = nil
			updates["active"] = nil
		}
		res := tx.Model(&models.Submission{}).
			Where("submission_id = ? AND state = ?", submissionID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent writer moved the submission after our read.
			return &InvalidTransitionError{Kind: "submission", From: from, To: to}
		}
		return tx.Create(&models.SubmissionEvent{
			SubmissionID: sub.SubmissionID,
			ByUserID:     byUserID,
			Desc:         desc,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func edgeAllowed(from, to string) bool {
	for _, next := range submissionEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancel is the explicit user/operator cancellation path.
func (s *SubmissionService) Cancel(ctx context.Context, submissionID int, byUserID *int, reason string) (*models.Submission, error) {
	desc := "Cancelled submission"
	if reason != "" {
		desc = fmt.Sprintf("Cancelled submission: %s", reason)
	}
	return s.Transition(ctx, submissionID, models.SubmissionCancelled, byUserID, desc)
}

// GetByToken loads a submission by its unguessable access token.
func (s *SubmissionService) GetByToken(ctx context.Context, token string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).
		Preload("Group").
		Preload("Files").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, event_id ASC") }).
		Where("access_token = ?", token).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	sub.Checks = nil
	checks, err := s.LatestChecks(ctx, sub.SubmissionID)
	if err == nil {
		sub.Checks = checks
	}
	return &sub, nil
}

// LatestChecks returns the newest check per checker name, the operative
// view for gating and display.
func (s *SubmissionService) LatestChecks(ctx context.Context, submissionID int) ([]models.SubmissionCheck, error) {
	var checks []models.SubmissionCheck
	err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC, check_id ASC").
		Find(&checks).Error
	if err != nil {
		return nil, err
	}
	latest := make(map[string]models.SubmissionCheck, len(checks))
	order := make([]string, 0, len(checks))
	for _, c := range checks {
		if _, seen := latest[c.CheckerName]; !seen {
			order = append(order, c.CheckerName)
		}
		latest[c.CheckerName] = c
	}
	out := make([]models.SubmissionCheck, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out, nil
}

// PruneChecks keeps the first and last check per checker name and deletes
// the rest, returning how many rows went. Retention pruning is the only
// deletion the check table allows.
func (s *SubmissionService) PruneChecks(ctx context.Context, submissionID int) (int, error) {
	var checks []models.SubmissionCheck
	err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC, check_id ASC").
		Find(&checks).Error
	if err != nil {
		return 0, err
	}

	byChecker := make(map[string][]models.SubmissionCheck)
	for _, c := range checks {
		byChecker[c.CheckerName] = append(byChecker[c.CheckerName], c)
	}

	var prune []int
	for _, list := range byChecker {
		for i := 1; i < len(list)-1; i++ {
			prune = append(prune, list[i].CheckID)
		}
	}
	if len(prune) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Delete(&models.SubmissionCheck{}, prune).Error; err != nil {
		return 0, err
	}
	return len(prune), nil
}
