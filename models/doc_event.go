package models

import "time"

// DocEvent types. One table holds all variants; the Type column
// discriminates and the optional columns below carry variant data.
const (
	EventNewRevision           = "new_revision"
	EventChangedState          = "changed_state"
	EventChangedDocument       = "changed_document"
	EventAddedComment          = "added_comment"
	EventCreatedBallot         = "created_ballot"
	EventClosedBallot          = "closed_ballot"
	EventChangedBallotPosition = "changed_ballot_position"
	EventChangedLastCallText   = "changed_last_call_text"
	EventChangedBallotWriteup  = "changed_ballot_writeup_text"
	EventChangedApprovalText   = "changed_ballot_approval_text"
	EventSentLastCall          = "sent_last_call"
	EventScheduledTelechat     = "scheduled_for_telechat"
	EventChangedConsensus      = "changed_consensus"
)

// Ballot positions.
const (
	PositionYes         = "yes"
	PositionNoObjection = "noobj"
	PositionDiscuss     = "discuss"
	PositionAbstain     = "abstain"
	PositionRecuse      = "recuse"
	PositionNoRecord    = "norecord"
)

// Approval decisions carried on the approval writeup from the moment it is
// generated, so approval routing never has to sniff the writeup text.
const (
	DecisionToRFCEditor  = "to-rfc-editor"
	DecisionDoNotPublish = "do-not-publish"
	DecisionToAnnounce   = "to-announcement-list"
)

// DocEvent is one immutable audit-log entry for a document. Events are
// never updated or deleted; the current value of any document attribute is
// the latest event of the relevant type.
type DocEvent struct {
	EventID    int       `gorm:"primaryKey;column:event_id" json:"event_id"`
	DocumentID int       `gorm:"column:document_id;index:idx_docevent_doc_time,priority:1;index:idx_docevent_doc_type,priority:1" json:"document_id"`
	Type       string    `gorm:"column:type;size:40;index:idx_docevent_doc_type,priority:2" json:"type"`
	ByUserID   *int      `gorm:"column:by_user_id" json:"by_user_id,omitempty"`
	Desc       string    `gorm:"column:description;type:text" json:"description"`
	Rev        string    `gorm:"column:rev;size:2" json:"rev"` // document revision at event time
	Time       time.Time `gorm:"column:time;index:idx_docevent_doc_time,priority:2" json:"time"`

	// changed_state
	StateType *string `gorm:"column:state_type;size:32" json:"state_type,omitempty"`
	StateID   *int    `gorm:"column:state_id" json:"state_id,omitempty"`

	// changed_ballot_position / closed_ballot: BallotID references the
	// created_ballot event that opened the round.
	BallotID    *int       `gorm:"column:ballot_id;index" json:"ballot_id,omitempty"`
	BalloterID  *int       `gorm:"column:balloter_id" json:"balloter_id,omitempty"`
	Position    *string    `gorm:"column:position;size:16" json:"position,omitempty"`
	DiscussText string     `gorm:"column:discuss_text;type:text" json:"discuss_text,omitempty"`
	DiscussTime *time.Time `gorm:"column:discuss_time" json:"discuss_time,omitempty"`
	CommentText string     `gorm:"column:comment_text;type:text" json:"comment_text,omitempty"`
	CommentTime *time.Time `gorm:"column:comment_time" json:"comment_time,omitempty"`

	// writeup variants and sent_last_call
	Text             string     `gorm:"column:text;type:text" json:"text,omitempty"`
	ApprovalDecision *string    `gorm:"column:approval_decision;size:24" json:"approval_decision,omitempty"`
	ExpiresAt        *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`

	// scheduled_for_telechat
	TelechatDate  *time.Time `gorm:"column:telechat_date" json:"telechat_date,omitempty"`
	ReturningItem *bool      `gorm:"column:returning_item" json:"returning_item,omitempty"`

	// changed_consensus
	Consensus *bool `gorm:"column:consensus" json:"consensus,omitempty"`
}

func (DocEvent) TableName() string {
	return "doc_events"
}
