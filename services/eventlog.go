package services

import (
	"errors"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// EventLog is the append-only history of a document. Events are ordered by
// (time, event_id) so same-timestamp writes break ties deterministically.
// There is no update or delete in this surface.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	if db == nil {
		db = config.DB
	}
	return &EventLog{db: db}
}

// WithTx returns an EventLog bound to the given transaction.
func (l *EventLog) WithTx(tx *gorm.DB) *EventLog {
	return &EventLog{db: tx}
}

// Append writes one event. The timestamp is filled in when the caller left
// it zero.
func (l *EventLog) Append(ev *models.DocEvent) error {
	if ev.DocumentID == 0 {
		return errors.New("event log: event has no document")
	}
	if ev.Type == "" {
		return errors.New("event log: event has no type")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	return l.db.Create(ev).Error
}

// Latest returns the newest event for the document, optionally restricted
// to the given types. Returns (nil, nil) when no event matches.
func (l *EventLog) Latest(documentID int, types ...string) (*models.DocEvent, error) {
	q := l.db.Where("document_id = ?", documentID)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	var ev models.DocEvent
	err := q.Order("time DESC").Order("event_id DESC").First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// All returns the document's events oldest first, optionally restricted to
// the given types.
func (l *EventLog) All(documentID int, types ...string) ([]models.DocEvent, error) {
	q := l.db.Where("document_id = ?", documentID)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	var evs []models.DocEvent
	if err := q.Order("time ASC").Order("event_id ASC").Find(&evs).Error; err != nil {
		return nil, err
	}
	return evs, nil
}
