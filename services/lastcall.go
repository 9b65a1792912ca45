package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// BoilerplateMarker flags a ballot writeup that was generated but never
// edited; an expired last call only skips the writeup-waiting state when
// the writeup no longer contains it.
const BoilerplateMarker = "TODO - fill in the writeup"

// LastCallService runs the last-call sub-workflow.
type LastCallService struct {
	db       *gorm.DB
	log      *EventLog
	states   *DocStateService
	settings config.Settings
}

func NewLastCallService(db *gorm.DB, settings config.Settings) *LastCallService {
	if db == nil {
		db = config.DB
	}
	return &LastCallService{db: db, log: NewEventLog(db), states: NewDocStateService(db), settings: settings}
}

// RequestLastCall moves the document to "last call requested" and makes
// sure an announcement writeup exists, generating a fresh one when the
// document has none yet.
func (s *LastCallService) RequestLastCall(ctx context.Context, documentID int, byUserID *int) (*models.DocEvent, error) {
	current, err := s.states.CurrentState(ctx, documentID, models.StateTypeIESG)
	if err != nil {
		return nil, err
	}
	if !CanRequestLastCall(current) {
		return nil, &InvalidTransitionError{Kind: models.StateTypeIESG, From: current.Slug, To: models.StateLCReq}
	}

	stateEvent, err := s.states.SetState(ctx, documentID, models.StateTypeIESG, models.StateLCReq, byUserID, false)
	if err != nil {
		return nil, err
	}

	existing, err := s.log.Latest(documentID, models.EventChangedLastCallText)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		var doc models.Document
		if err := s.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
			return nil, err
		}
		text := fmt.Sprintf(
			"The IESG has received a request to consider %s (%s) for publication.\n\n"+
				"The IESG plans to make a decision in the next few weeks, and solicits final comments on this action.",
			doc.Name, doc.Title)
		if err := s.log.Append(&models.DocEvent{
			DocumentID: documentID,
			Type:       models.EventChangedLastCallText,
			ByUserID:   byUserID,
			Desc:       "Last call announcement was generated",
			Rev:        doc.Rev,
			Text:       text,
		}); err != nil {
			return nil, err
		}
	}
	return stateEvent, nil
}

// SendLastCall confirms the requested last call: state moves to "in last
// call" and a sent_last_call event fixes the announcement text and an
// explicit expiry. When expiry is nil the configured default applies: 14
// days, or 28 for individual and area-level documents.
func (s *LastCallService) SendLastCall(ctx context.Context, documentID int, byUserID *int, expiry *time.Time) (*models.DocEvent, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).Preload("Group").First(&doc, documentID).Error; err != nil {
		return nil, err
	}

	writeup, err := s.log.Latest(documentID, models.EventChangedLastCallText)
	if err != nil {
		return nil, err
	}
	if writeup == nil {
		return nil, fmt.Errorf("document %s has no last call announcement text", doc.Name)
	}

	if _, err := s.states.SetState(ctx, documentID, models.StateTypeIESG, models.StateLC, byUserID, false); err != nil {
		return nil, err
	}

	expires := time.Now()
	if expiry != nil {
		expires = *expiry
	} else if doc.IsIndividual() {
		expires = expires.Add(s.settings.IndividualLastCallPeriod)
	} else {
		expires = expires.Add(s.settings.LastCallPeriod)
	}

	ev := &models.DocEvent{
		DocumentID: documentID,
		Type:       models.EventSentLastCall,
		ByUserID:   byUserID,
		Desc:       fmt.Sprintf("The following Last Call announcement was sent out (ends %s)", expires.Format("2006-01-02")),
		Rev:        doc.Rev,
		Text:       writeup.Text,
		ExpiresAt:  &expires,
	}
	if err := s.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ExpireLastCalls finds documents whose last call has ended and advances
// them: to "waiting for AD go-ahead" when an edited ballot writeup already
// exists, otherwise to "waiting for writeup". Returns how many documents
// moved. Safe to run concurrently with user actions; the state machine
// refuses anything that no longer applies.
func (s *LastCallService) ExpireLastCalls(ctx context.Context) (int, error) {
	var lcState models.State
	err := s.db.WithContext(ctx).
		Where("type = ? AND slug = ?", models.StateTypeIESG, models.StateLC).
		First(&lcState).Error
	if err != nil {
		return 0, err
	}

	var docStates []models.DocumentState
	err = s.db.WithContext(ctx).
		Where("state_type = ? AND state_id = ?", models.StateTypeIESG, lcState.StateID).
		Find(&docStates).Error
	if err != nil {
		return 0, err
	}

	moved := 0
	now := time.Now()
	for _, ds := range docStates {
		sent, err := s.log.Latest(ds.DocumentID, models.EventSentLastCall)
		if err != nil {
			return moved, err
		}
		if sent == nil || sent.ExpiresAt == nil || sent.ExpiresAt.After(now) {
			continue
		}

		target := models.StateWriteupW
		writeup, err := s.log.Latest(ds.DocumentID, models.EventChangedBallotWriteup)
		if err != nil {
			return moved, err
		}
		if writeup != nil && writeup.Text != "" && !strings.Contains(writeup.Text, BoilerplateMarker) {
			target = models.StateGoaheadW
		}

		if _, err := s.states.SetState(ctx, ds.DocumentID, models.StateTypeIESG, target, nil, false); err != nil {
			// Someone moved the document meanwhile; skip it.
			var ite *InvalidTransitionError
			if errors.As(err, &ite) {
				continue
			}
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// GenerateBallotWriteup creates or supersedes the ballot writeup text.
func (s *LastCallService) GenerateBallotWriteup(ctx context.Context, documentID int, text string, byUserID *int) (*models.DocEvent, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	if text == "" {
		text = fmt.Sprintf("Technical Summary\n\n%s\n\nWorking Group Summary\n\n%s", doc.Abstract, BoilerplateMarker)
	}
	ev := &models.DocEvent{
		DocumentID: documentID,
		Type:       models.EventChangedBallotWriteup,
		ByUserID:   byUserID,
		Desc:       "Ballot writeup was changed",
		Rev:        doc.Rev,
		Text:       text,
	}
	if err := s.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
