package models

// State types a document tracks independently.
const (
	StateTypeDraft = "draft"
	StateTypeIESG  = "draft-iesg"
)

// Draft lifecycle slugs.
const (
	StateActive  = "active"
	StateExpired = "expired"
	StateRepl    = "repl"
	StateRFC     = "rfc"
)

// IESG review slugs.
const (
	StatePubReq    = "pub-req"
	StateADEval    = "ad-eval"
	StateLCReq     = "lc-req"
	StateLC        = "lc"
	StateWriteupW  = "writeupw"
	StateGoaheadW  = "goaheadw"
	StateIESGEval  = "iesg-eva"
	StateDefer     = "defer"
	StateAnn       = "ann"
	StateRFCQueue  = "rfcqueue"
	StatePub       = "pub"
	StateWatching  = "watching"
	StateDead      = "dead"
)

// Stall tags within the IESG review dimension. Exactly one may be attached
// at a time; they record why a document is not moving.
const (
	TagPointRaised    = "point"
	TagADFollowup     = "ad-f-up"
	TagRevisionNeeded = "need-rev"
	TagExternalParty  = "extpty"
)

// StallTags is the mutually exclusive set.
var StallTags = []string{TagPointRaised, TagADFollowup, TagRevisionNeeded, TagExternalParty}

// State is one named point in a progress dimension. Order sorts states of
// one type; lower is earlier in the progression.
type State struct {
	StateID int    `gorm:"primaryKey;column:state_id" json:"state_id"`
	Type    string `gorm:"column:type;size:32;uniqueIndex:uniq_state_type_slug" json:"type"`
	Slug    string `gorm:"column:slug;size:32;uniqueIndex:uniq_state_type_slug" json:"slug"`
	Name    string `gorm:"column:name" json:"name"`
	Order   int    `gorm:"column:sort_order" json:"order"`

	NextStates []State `gorm:"many2many:state_next_states;joinForeignKey:FromStateID;joinReferences:ToStateID" json:"next_states,omitempty"`
}

func (State) TableName() string {
	return "states"
}

// DocumentState pins a document's current state in one state type.
type DocumentState struct {
	ID         int    `gorm:"primaryKey;column:id" json:"id"`
	DocumentID int    `gorm:"column:document_id;uniqueIndex:uniq_doc_state_type" json:"document_id"`
	StateType  string `gorm:"column:state_type;size:32;uniqueIndex:uniq_doc_state_type" json:"state_type"`
	StateID    int    `gorm:"column:state_id" json:"state_id"`

	State State `gorm:"foreignKey:StateID;references:StateID" json:"state,omitempty"`
}

func (DocumentState) TableName() string {
	return "document_states"
}

// DocTag attaches one substate tag to a document.
type DocTag struct {
	ID         int    `gorm:"primaryKey;column:id" json:"id"`
	DocumentID int    `gorm:"column:document_id;uniqueIndex:uniq_doc_tag" json:"document_id"`
	Slug       string `gorm:"column:slug;size:32;uniqueIndex:uniq_doc_tag" json:"slug"`
}

func (DocTag) TableName() string {
	return "doc_tags"
}

type stateSeed struct {
	slug  string
	name  string
	order int
	next  []string
}

var draftSeeds = []stateSeed{
	{StateActive, "Active", 1, []string{StateExpired, StateRepl, StateRFC}},
	{StateExpired, "Expired", 2, []string{StateActive}},
	{StateRepl, "Replaced", 3, []string{StateActive}},
	{StateRFC, "RFC", 4, nil},
}

// The IESG progression. watching carries a late order key: it is a parked
// state, not an early one. dead is a sink reachable from most states.
var iesgSeeds = []stateSeed{
	{StatePubReq, "Publication Requested", 10, []string{StateADEval, StateLCReq, StateDead, StateWatching}},
	{StateADEval, "AD Evaluation", 12, []string{StateLCReq, StateIESGEval, StateDead, StateWatching}},
	{StateLCReq, "Last Call Requested", 15, []string{StateLC, StateDead}},
	{StateLC, "In Last Call", 16, []string{StateWriteupW, StateGoaheadW, StateDead}},
	{StateWriteupW, "Waiting for Writeup", 18, []string{StateGoaheadW, StateIESGEval, StateDead}},
	{StateGoaheadW, "Waiting for AD Go-Ahead", 19, []string{StateIESGEval, StateDead}},
	{StateIESGEval, "IESG Evaluation", 20, []string{StateDefer, StateAnn, StateDead}},
	{StateDefer, "IESG Evaluation - Defer", 21, []string{StateIESGEval, StateDead}},
	{StateAnn, "Approved - Announcement Sent", 30, []string{StateRFCQueue, StateDead}},
	{StateRFCQueue, "RFC Ed Queue", 31, []string{StatePub, StateDead}},
	{StatePub, "RFC Published", 32, nil},
	{StateWatching, "AD is Watching", WatchingOrder, []string{StateADEval, StateLCReq, StateDead}},
	{StateDead, "Dead", 99, []string{StateWatching, StateADEval}},
}

// LastCallThresholdOrder bounds the states from which a last call may still
// be requested; ApprovalThresholdOrder marks where ballot approval becomes
// possible. WatchingOrder is where the parked states begin.
const (
	LastCallThresholdOrder = 15 // lc-req
	ApprovalThresholdOrder = 20 // iesg-eva
	WatchingOrder          = 42 // watching
)
