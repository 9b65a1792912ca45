package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// DocStateService drives a posted document through its state graphs and
// substates.
type DocStateService struct {
	db *gorm.DB
}

func NewDocStateService(db *gorm.DB) *DocStateService {
	if db == nil {
		db = config.DB
	}
	return &DocStateService{db: db}
}

// CurrentState returns the document's state in one state type, or nil when
// the document does not participate in that type yet.
func (s *DocStateService) CurrentState(ctx context.Context, documentID int, stateType string) (*models.State, error) {
	var ds models.DocumentState
	err := s.db.WithContext(ctx).Preload("State").
		Where("document_id = ? AND state_type = ?", documentID, stateType).
		First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ds.State, nil
}

// SetState transitions the document to the named state. Targets not in the
// current state's next-state graph are refused with no mutation and no
// event; force is the privileged operator override and records that it was
// forced. Entering a state type for the first time needs no edge.
func (s *DocStateService) SetState(ctx context.Context, documentID int, stateType, slug string, byUserID *int, force bool) (*models.DocEvent, error) {
	var event *models.DocEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.First(&doc, documentID).Error; err != nil {
			return err
		}

		var target models.State
		if err := tx.Where("type = ? AND slug = ?", stateType, slug).First(&target).Error; err != nil {
			return fmt.Errorf("unknown state %s/%s: %w", stateType, slug, err)
		}

		var current models.DocumentState
		err := tx.Preload("State").Preload("State.NextStates").
			Where("document_id = ? AND state_type = ?", documentID, stateType).
			First(&current).Error
		hasCurrent := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if hasCurrent {
			if current.StateID == target.StateID {
				return nil // no-op, no event
			}
			if !force && !stateReachable(current.State, target) {
				return &InvalidTransitionError{Kind: stateType, From: current.State.Slug, To: slug}
			}
		}

		if err := snapshotDocument(tx, &doc); err != nil {
			return err
		}

		if hasCurrent {
			current.StateID = target.StateID
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&models.DocumentState{
				DocumentID: documentID,
				StateType:  stateType,
				StateID:    target.StateID,
			}).Error; err != nil {
				return err
			}
		}

		// A review-state change resolves whatever the document was stalled
		// on; the stall tags describe the old situation.
		if stateType == models.StateTypeIESG {
			if err := tx.Where("document_id = ? AND slug IN ?", documentID, models.StallTags).
				Delete(&models.DocTag{}).Error; err != nil {
				return err
			}
		}

		from := "(none)"
		if hasCurrent {
			from = current.State.Slug
		}
		desc := fmt.Sprintf("State changed to %s from %s", target.Name, from)
		if force {
			desc += " (forced)"
		}
		st := stateType
		event = &models.DocEvent{
			DocumentID: documentID,
			Type:       models.EventChangedState,
			ByUserID:   byUserID,
			Desc:       desc,
			Rev:        doc.Rev,
			StateType:  &st,
			StateID:    &target.StateID,
		}
		return NewEventLog(tx).Append(event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func stateReachable(from models.State, to models.State) bool {
	for _, next := range from.NextStates {
		if next.StateID == to.StateID {
			return true
		}
	}
	return false
}

// Tags returns the document's attached substate tags.
func (s *DocStateService) Tags(ctx context.Context, documentID int) ([]string, error) {
	var slugs []string
	err := s.db.WithContext(ctx).Model(&models.DocTag{}).
		Where("document_id = ?", documentID).
		Order("slug ASC").
		Pluck("slug", &slugs).Error
	return slugs, err
}

// SetStallTag attaches one stall tag, detaching any other member of the
// mutually exclusive set first. An empty slug just clears the set.
func (s *DocStateService) SetStallTag(ctx context.Context, documentID int, slug string, byUserID *int) error {
	if slug != "" && !isStallTag(slug) {
		return fmt.Errorf("unknown stall tag %q", slug)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.First(&doc, documentID).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ? AND slug IN ?", documentID, models.StallTags).
			Delete(&models.DocTag{}).Error; err != nil {
			return err
		}
		desc := "Cleared stall tags"
		if slug != "" {
			if err := tx.Create(&models.DocTag{DocumentID: documentID, Slug: slug}).Error; err != nil {
				return err
			}
			desc = fmt.Sprintf("Tag %s set", slug)
		}
		return NewEventLog(tx).Append(&models.DocEvent{
			DocumentID: documentID,
			Type:       models.EventChangedDocument,
			ByUserID:   byUserID,
			Desc:       desc,
			Rev:        doc.Rev,
		})
	})
}

func isStallTag(slug string) bool {
	for _, t := range models.StallTags {
		if t == slug {
			return true
		}
	}
	return false
}

// CanRequestLastCall reports whether a last call may still be requested
// from the given review state: only states ordered before the last-call
// request state qualify, plus the parked "watching" state.
func CanRequestLastCall(state *models.State) bool {
	if state == nil {
		return true // not yet in IESG review
	}
	return state.Order < models.LastCallThresholdOrder || state.Slug == models.StateWatching
}

// CanApprove reports whether the ballot can still be approved from the
// given review state.
func CanApprove(state *models.State) bool {
	if state == nil {
		return false
	}
	return state.Order >= models.ApprovalThresholdOrder && state.Order < models.WatchingOrder
}

// SetConsensus records whether the document represents working-group
// consensus.
func (s *DocStateService) SetConsensus(ctx context.Context, documentID int, consensus bool, byUserID *int) (*models.DocEvent, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	word := "Yes"
	if !consensus {
		word = "No"
	}
	ev := &models.DocEvent{
		DocumentID: documentID,
		Type:       models.EventChangedConsensus,
		ByUserID:   byUserID,
		Desc:       fmt.Sprintf("Changed consensus to %s", word),
		Rev:        doc.Rev,
		Consensus:  &consensus,
	}
	if err := NewEventLog(s.db).Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ScheduleTelechat puts the document on a future review meeting date.
func (s *DocStateService) ScheduleTelechat(ctx context.Context, documentID int, date time.Time, returningItem bool, byUserID *int) (*models.DocEvent, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	ev := &models.DocEvent{
		DocumentID:    documentID,
		Type:          models.EventScheduledTelechat,
		ByUserID:      byUserID,
		Desc:          fmt.Sprintf("Placed on agenda for telechat - %s", date.Format("2006-01-02")),
		Rev:           doc.Rev,
		TelechatDate:  &date,
		ReturningItem: &returningItem,
	}
	if err := NewEventLog(s.db).Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
