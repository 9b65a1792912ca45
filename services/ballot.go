package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

var validPositions = map[string]bool{
	models.PositionYes:         true,
	models.PositionNoObjection: true,
	models.PositionDiscuss:     true,
	models.PositionAbstain:     true,
	models.PositionRecuse:      true,
	models.PositionNoRecord:    true,
}

// BallotService manages ballot rounds and per-reviewer positions. A
// reviewer's position is always the latest position event for (document,
// ballot, reviewer); recording is upsert-by-append.
type BallotService struct {
	db     *gorm.DB
	log    *EventLog
	states *DocStateService
}

func NewBallotService(db *gorm.DB) *BallotService {
	if db == nil {
		db = config.DB
	}
	return &BallotService{db: db, log: NewEventLog(db), states: NewDocStateService(db)}
}

// ActiveBallot returns the open ballot round, nil when none is open. A
// ballot is open when its created_ballot event is newer than the last
// closed_ballot event.
func (b *BallotService) ActiveBallot(ctx context.Context, documentID int) (*models.DocEvent, error) {
	latest, err := b.log.Latest(documentID, models.EventCreatedBallot, models.EventClosedBallot)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Type == models.EventClosedBallot {
		return nil, nil
	}
	return latest, nil
}

// OpenBallot opens a new voting round. Only one ballot may be active per
// document at a time.
func (b *BallotService) OpenBallot(ctx context.Context, documentID int, byUserID *int) (*models.DocEvent, error) {
	active, err := b.ActiveBallot(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrBallotExists
	}

	var doc models.Document
	if err := b.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	ev := &models.DocEvent{
		DocumentID: documentID,
		Type:       models.EventCreatedBallot,
		ByUserID:   byUserID,
		Desc:       "Created ballot",
		Rev:        doc.Rev,
	}
	if err := b.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// CloseBallot ends the active round; a no-op error when none is open.
func (b *BallotService) CloseBallot(ctx context.Context, documentID int, byUserID *int) (*models.DocEvent, error) {
	active, err := b.ActiveBallot(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoOpenBallot
	}
	var doc models.Document
	if err := b.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	ev := &models.DocEvent{
		DocumentID: documentID,
		Type:       models.EventClosedBallot,
		ByUserID:   byUserID,
		Desc:       "Closed ballot",
		Rev:        doc.Rev,
		BallotID:   &active.EventID,
	}
	if err := b.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// CurrentPosition returns the reviewer's latest position event for the
// ballot, nil when the reviewer has none yet.
func (b *BallotService) CurrentPosition(ctx context.Context, documentID, ballotID, balloterID int) (*models.DocEvent, error) {
	var ev models.DocEvent
	err := b.db.WithContext(ctx).
		Where("document_id = ? AND type = ? AND ballot_id = ? AND balloter_id = ?",
			documentID, models.EventChangedBallotPosition, ballotID, balloterID).
		Order("time DESC").Order("event_id DESC").
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SetPosition records a reviewer's position. A new event is appended when
// any of position/discuss-text/comment-text changed; nothing is written
// when nothing changed. The discuss and comment timestamps move only when
// their own text does. A discuss position requires discuss text; clearing
// to no-record waives that.
func (b *BallotService) SetPosition(ctx context.Context, documentID, balloterID int, position, discussText, commentText string, byUserID *int) (*models.DocEvent, error) {
	if !validPositions[position] {
		return nil, fmt.Errorf("unknown ballot position %q", position)
	}
	if position == models.PositionDiscuss && discussText == "" {
		return nil, ErrDiscussNeedsText
	}

	active, err := b.ActiveBallot(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoOpenBallot
	}

	prev, err := b.CurrentPosition(ctx, documentID, active.EventID, balloterID)
	if err != nil {
		return nil, err
	}

	prevPosition := models.PositionNoRecord
	prevDiscuss, prevComment := "", ""
	var prevDiscussTime, prevCommentTime *time.Time
	if prev != nil {
		if prev.Position != nil {
			prevPosition = *prev.Position
		}
		prevDiscuss = prev.DiscussText
		prevComment = prev.CommentText
		prevDiscussTime = prev.DiscussTime
		prevCommentTime = prev.CommentTime
	}

	if prevPosition == position && prevDiscuss == discussText && prevComment == commentText {
		return nil, nil // idempotent no-op
	}

	var doc models.Document
	if err := b.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	discussTime := prevDiscussTime
	if discussText != prevDiscuss {
		discussTime = &now
	}
	commentTime := prevCommentTime
	if commentText != prevComment {
		commentTime = &now
	}

	pos := position
	ev := &models.DocEvent{
		DocumentID:  documentID,
		Type:        models.EventChangedBallotPosition,
		ByUserID:    byUserID,
		Desc:        fmt.Sprintf("[Ballot Position Update] Position for balloter %d has been changed to %s", balloterID, position),
		Rev:         doc.Rev,
		BallotID:    &active.EventID,
		BalloterID:  &balloterID,
		Position:    &pos,
		DiscussText: discussText,
		DiscussTime: discussTime,
		CommentText: commentText,
		CommentTime: commentTime,
	}
	if err := b.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Tally counts the latest position per reviewer for the active ballot.
type Tally struct {
	Yes         int `json:"yes"`
	NoObjection int `json:"noobj"`
	Discuss     int `json:"discuss"`
	Abstain     int `json:"abstain"`
	Recuse      int `json:"recuse"`
}

// BallotTally folds the position events into a per-reviewer latest view.
func (b *BallotService) BallotTally(ctx context.Context, documentID, ballotID int) (Tally, error) {
	var evs []models.DocEvent
	err := b.db.WithContext(ctx).
		Where("document_id = ? AND type = ? AND ballot_id = ?",
			documentID, models.EventChangedBallotPosition, ballotID).
		Order("time ASC").Order("event_id ASC").
		Find(&evs).Error
	if err != nil {
		return Tally{}, err
	}

	latest := make(map[int]string)
	for _, ev := range evs {
		if ev.BalloterID == nil || ev.Position == nil {
			continue
		}
		latest[*ev.BalloterID] = *ev.Position
	}

	var t Tally
	for _, pos := range latest {
		switch pos {
		case models.PositionYes:
			t.Yes++
		case models.PositionNoObjection:
			t.NoObjection++
		case models.PositionDiscuss:
			t.Discuss++
		case models.PositionAbstain:
			t.Abstain++
		case models.PositionRecuse:
			t.Recuse++
		}
	}
	return t, nil
}

// NeededVotes computes the votes still required for passage: two thirds of
// the non-recused roster for standards track, one vote otherwise.
func NeededVotes(rosterSize, recused int, intendedLevel string) int {
	if intendedLevel == models.LevelStandard || intendedLevel == models.LevelBCP {
		return int(math.Ceil(2.0 / 3.0 * float64(rosterSize-recused)))
	}
	return 1
}

// EnoughToPass reports whether the tally reaches the needed count. Open
// discusses count toward passage; their resolution is a separate textual
// caveat, not a gating condition.
func EnoughToPass(t Tally, needed int) bool {
	return t.Yes+t.NoObjection+t.Discuss >= needed
}

// Defer moves the document from IESG evaluation to the deferred state. The
// ballot stays open; only the review state and agenda placement change.
func (b *BallotService) Defer(ctx context.Context, documentID int, telechatDate time.Time, byUserID *int) (*models.DocEvent, error) {
	ev, err := b.states.SetState(ctx, documentID, models.StateTypeIESG, models.StateDefer, byUserID, false)
	if err != nil {
		return nil, err
	}
	if _, err := b.states.ScheduleTelechat(ctx, documentID, telechatDate, true, byUserID); err != nil {
		return nil, err
	}
	return ev, nil
}

// Undefer returns a deferred document to IESG evaluation.
func (b *BallotService) Undefer(ctx context.Context, documentID int, byUserID *int) (*models.DocEvent, error) {
	return b.states.SetState(ctx, documentID, models.StateTypeIESG, models.StateIESGEval, byUserID, false)
}

// GenerateApprovalText writes (or supersedes) the approval announcement
// writeup, carrying the routing decision explicitly so approval never has
// to sniff the text.
func (b *BallotService) GenerateApprovalText(ctx context.Context, documentID int, decision, text string, byUserID *int) (*models.DocEvent, error) {
	switch decision {
	case models.DecisionToRFCEditor, models.DecisionDoNotPublish, models.DecisionToAnnounce:
	default:
		return nil, fmt.Errorf("unknown approval decision %q", decision)
	}
	var doc models.Document
	if err := b.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}
	d := decision
	ev := &models.DocEvent{
		DocumentID:       documentID,
		Type:             models.EventChangedApprovalText,
		ByUserID:         byUserID,
		Desc:             "Ballot approval text was generated",
		Rev:              doc.Rev,
		Text:             text,
		ApprovalDecision: &d,
	}
	if err := b.log.Append(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ApprovalOutcome is what Approve did and what the caller should announce.
type ApprovalOutcome struct {
	Approved     bool
	Decision     string
	Announcement string
	StateEvent   *models.DocEvent
}

// Approve closes the active ballot (if any) and routes on the decision
// carried by the latest approval writeup: publication decisions move the
// document to "approved, announcement sent", a do-not-publish decision
// moves it to dead.
func (b *BallotService) Approve(ctx context.Context, documentID int, byUserID *int) (*ApprovalOutcome, error) {
	current, err := b.states.CurrentState(ctx, documentID, models.StateTypeIESG)
	if err != nil {
		return nil, err
	}
	if !CanApprove(current) {
		from := "(none)"
		if current != nil {
			from = current.Slug
		}
		return nil, &InvalidTransitionError{Kind: models.StateTypeIESG, From: from, To: models.StateAnn}
	}

	writeup, err := b.log.Latest(documentID, models.EventChangedApprovalText)
	if err != nil {
		return nil, err
	}
	if writeup == nil || writeup.ApprovalDecision == nil {
		return nil, ErrNoApprovalDecision
	}
	decision := *writeup.ApprovalDecision

	if active, err := b.ActiveBallot(ctx, documentID); err != nil {
		return nil, err
	} else if active != nil {
		if _, err := b.CloseBallot(ctx, documentID, byUserID); err != nil {
			return nil, err
		}
	}

	target := models.StateAnn
	approved := true
	if decision == models.DecisionDoNotPublish {
		target = models.StateDead
		approved = false
	}
	stateEvent, err := b.states.SetState(ctx, documentID, models.StateTypeIESG, target, byUserID, false)
	if err != nil {
		return nil, err
	}

	return &ApprovalOutcome{
		Approved:     approved,
		Decision:     decision,
		Announcement: writeup.Text,
		StateEvent:   stateEvent,
	}, nil
}
