package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// Relocator moves a submission's artifacts into the permanent repository.
// The poster awaits it before marking the submission posted.
type Relocator interface {
	Relocate(ctx context.Context, sub *models.Submission) error
}

// RepositoryRelocator is the filesystem implementation.
type RepositoryRelocator struct {
	RepositoryPath string
}

func (r RepositoryRelocator) Relocate(ctx context.Context, sub *models.Submission) error {
	if err := os.MkdirAll(r.RepositoryPath, os.ModePerm); err != nil {
		return err
	}
	for _, f := range sub.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(r.RepositoryPath, fmt.Sprintf("%s-%s.%s", sub.Name, sub.Rev, f.Ext))
		if err := os.Rename(f.StoredPath, dest); err != nil {
			return err
		}
	}
	return nil
}

// Poster converts an approved submission into a document (or a new
// revision of one) as a single logically atomic operation.
type Poster struct {
	db        *gorm.DB
	settings  config.Settings
	relocator Relocator
	subs      *SubmissionService
}

func NewPoster(db *gorm.DB, settings config.Settings, relocator Relocator) *Poster {
	if db == nil {
		db = config.DB
	}
	if relocator == nil {
		relocator = RepositoryRelocator{RepositoryPath: settings.RepositoryPath}
	}
	return &Poster{db: db, settings: settings, relocator: relocator, subs: NewSubmissionService(db)}
}

// Post materializes the submission. Posting the same submission twice is a
// no-op error the second time: only a submission in a pending state may be
// posted. It returns the new-revision event so the caller can decide
// whether to announce it.
func (p *Poster) Post(ctx context.Context, submissionID int, byUserID *int, reason string) (*models.DocEvent, error) {
	var sub models.Submission
	if err := p.db.WithContext(ctx).Preload("Group").Preload("Files").First(&sub, submissionID).Error; err != nil {
		return nil, err
	}
	switch sub.State {
	case models.SubmissionPosted:
		return nil, ErrAlreadyPosted
	case models.SubmissionCancelled:
		return nil, ErrSubmissionCancelled
	}

	// The one blocking collaborator call. Bounded retries with backoff,
	// then compensate by cancelling the submission.
	if err := p.relocate(ctx, &sub); err != nil {
		if _, cerr := p.subs.Cancel(ctx, sub.SubmissionID, byUserID,
			fmt.Sprintf("file relocation failed: %v", err)); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	var newRevEvent *models.DocEvent
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Marking posted comes first, as a guarded write: the UPDATE only
		// matches a row still in a pending state, so of two racing posters
		// exactly one affects a row and the loser aborts before touching the
		// document. The earlier state check only fails fast.
		res := tx.Model(&models.Submission{}).
			Where("submission_id = ? AND state NOT IN ?", submissionID,
				[]string{models.SubmissionPosted, models.SubmissionCancelled}).
			Updates(map[string]any{"state": models.SubmissionPosted, "active": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var fresh models.Submission
			if err := tx.First(&fresh, submissionID).Error; err != nil {
				return err
			}
			if fresh.State == models.SubmissionCancelled {
				return ErrSubmissionCancelled
			}
			return ErrAlreadyPosted
		}

		doc, created, err := p.reserveDocument(tx, &sub)
		if err != nil {
			return err
		}

		if !created {
			if err := snapshotDocument(tx, doc); err != nil {
				return err
			}
		}

		doc.Rev = sub.Rev
		doc.Title = sub.Title
		doc.Abstract = sub.Abstract
		doc.Pages = sub.Pages
		doc.GroupID = sub.GroupID
		doc.Authors = sub.Authors
		expiry := time.Now().Add(185 * 24 * time.Hour) // drafts expire ~6 months out
		doc.ExpiresAt = &expiry
		if err := tx.Save(doc).Error; err != nil {
			return err
		}

		if created {
			if err := setInitialState(tx, doc.DocumentID, models.StateTypeDraft, models.StateActive); err != nil {
				return err
			}
		} else {
			// A revision while under IESG review unblocks the document:
			// swap "revision needed" for "AD follow-up".
			if err := swapStallTag(tx, doc.DocumentID); err != nil {
				return err
			}
		}

		if err := replaceRelationships(tx, doc.DocumentID, sub.ReplacesList()); err != nil {
			return err
		}

		desc := fmt.Sprintf("New version available: %s-%s", doc.Name, doc.Rev)
		if reason != "" {
			desc = fmt.Sprintf("%s (%s)", desc, reason)
		}
		newRevEvent = &models.DocEvent{
			DocumentID: doc.DocumentID,
			Type:       models.EventNewRevision,
			ByUserID:   byUserID,
			Desc:       desc,
			Rev:        doc.Rev,
		}
		if err := NewEventLog(tx).Append(newRevEvent); err != nil {
			return err
		}

		return tx.Create(&models.SubmissionEvent{
			SubmissionID: sub.SubmissionID,
			ByUserID:     byUserID,
			Desc:         fmt.Sprintf("Posted submission as %s-%s", doc.Name, doc.Rev),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return newRevEvent, nil
}

func (p *Poster) relocate(ctx context.Context, sub *models.Submission) error {
	retries := p.settings.RelocateRetries
	if retries <= 0 {
		retries = 1
	}
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.settings.RelocateTimeout)
		lastErr = p.relocator.Relocate(attemptCtx, sub)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt < retries {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return &RelocationError{Attempts: attempt, Err: ctx.Err()}
			}
		}
	}
	return &RelocationError{Attempts: retries, Err: lastErr}
}

// reserveDocument creates the document row or loads the existing one. The
// unique index on documents.name is the reservation that makes duplicate
// posting impossible even when two submissions raced past creation.
func (p *Poster) reserveDocument(tx *gorm.DB, sub *models.Submission) (*models.Document, bool, error) {
	doc := &models.Document{Name: sub.Name}
	err := tx.Create(doc).Error
	if err == nil {
		return doc, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) && !isDuplicateKeyError(err) {
		return nil, false, err
	}
	var existing models.Document
	if err := tx.Where("name = ?", sub.Name).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// snapshotDocument writes the copy-on-write audit record before mutation.
func snapshotDocument(tx *gorm.DB, doc *models.Document) error {
	return tx.Create(&models.DocumentHistory{
		DocumentID:    doc.DocumentID,
		Rev:           doc.Rev,
		Title:         doc.Title,
		Abstract:      doc.Abstract,
		Pages:         doc.Pages,
		GroupID:       doc.GroupID,
		AdID:          doc.AdID,
		IntendedLevel: doc.IntendedLevel,
		Notify:        doc.Notify,
		Note:          doc.Note,
		ExpiresAt:     doc.ExpiresAt,
		SnapshotAt:    time.Now(),
	}).Error
}

func setInitialState(tx *gorm.DB, documentID int, stateType, slug string) error {
	var state models.State
	if err := tx.Where("type = ? AND slug = ?", stateType, slug).First(&state).Error; err != nil {
		return fmt.Errorf("state %s/%s not seeded: %w", stateType, slug, err)
	}
	return tx.Create(&models.DocumentState{
		DocumentID: documentID,
		StateType:  stateType,
		StateID:    state.StateID,
	}).Error
}

// swapStallTag clears "revision needed" and attaches "AD follow-up" when
// the document is under IESG review.
func swapStallTag(tx *gorm.DB, documentID int) error {
	var inReview int64
	err := tx.Model(&models.DocumentState{}).
		Where("document_id = ? AND state_type = ?", documentID, models.StateTypeIESG).
		Count(&inReview).Error
	if err != nil || inReview == 0 {
		return err
	}

	var needRev int64
	err = tx.Model(&models.DocTag{}).
		Where("document_id = ? AND slug = ?", documentID, models.TagRevisionNeeded).
		Count(&needRev).Error
	if err != nil || needRev == 0 {
		return err
	}

	if err := tx.Where("document_id = ? AND slug IN ?", documentID, models.StallTags).
		Delete(&models.DocTag{}).Error; err != nil {
		return err
	}
	return tx.Create(&models.DocTag{DocumentID: documentID, Slug: models.TagADFollowup}).Error
}

func replaceRelationships(tx *gorm.DB, documentID int, replaces []string) error {
	for _, target := range replaces {
		var count int64
		err := tx.Model(&models.RelatedDocument{}).
			Where("source_id = ? AND target_name = ? AND relationship = ?", documentID, target, models.RelReplaces).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&models.RelatedDocument{
			SourceID:     documentID,
			TargetName:   target,
			Relationship: models.RelReplaces,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
