package models

import "time"

// Intended publication levels.
const (
	LevelStandard      = "ps"
	LevelInformational = "inf"
	LevelExperimental  = "exp"
	LevelBCP           = "bcp"
)

// Typed document relationships.
const (
	RelReplaces  = "replaces"
	RelObsoletes = "obsoletes"
	RelUpdates   = "updates"
)

// Document is the durable record of an accepted draft across all its
// revisions. Name is immutable after creation; the unique index doubles as
// the posting-time name reservation. Denormalized columns (Rev, Title, ...)
// are caches of the latest DocEvent of the relevant type, never the source
// of truth.
type Document struct {
	DocumentID    int        `gorm:"primaryKey;column:document_id" json:"document_id"`
	Name          string     `gorm:"column:name;size:255;uniqueIndex" json:"name"`
	Rev           string     `gorm:"column:rev;size:2" json:"rev"`
	Title         string     `gorm:"column:title" json:"title"`
	Abstract      string     `gorm:"column:abstract;type:text" json:"abstract"`
	Pages         int        `gorm:"column:pages" json:"pages"`
	GroupID       *int       `gorm:"column:group_id" json:"group_id,omitempty"`
	AdID          *int       `gorm:"column:ad_id" json:"ad_id,omitempty"` // responsible reviewer
	IntendedLevel string     `gorm:"column:intended_level;size:8" json:"intended_level"`
	Authors       string     `gorm:"column:authors;type:text" json:"authors"` // comma-separated author emails
	Notify        string     `gorm:"column:notify;type:text" json:"notify"`   // comma-separated addresses
	Note          string     `gorm:"column:note;type:text" json:"note"`
	ExpiresAt     *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Group  *Group          `gorm:"foreignKey:GroupID;references:GroupID" json:"group,omitempty"`
	Ad     *User           `gorm:"foreignKey:AdID" json:"ad,omitempty"`
	States []DocumentState `gorm:"foreignKey:DocumentID" json:"states,omitempty"`
	Tags   []DocTag        `gorm:"foreignKey:DocumentID" json:"tags,omitempty"`
	Events []DocEvent      `gorm:"foreignKey:DocumentID" json:"events,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// NotifyList splits the stored notification addresses.
func (d Document) NotifyList() []string {
	return splitList(d.Notify)
}

// AuthorList splits the stored author emails.
func (d Document) AuthorList() []string {
	return splitList(d.Authors)
}

// IsIndividual reports whether the document has no owning group or belongs
// to an area-level group. Such documents get the longer last-call period.
func (d Document) IsIndividual() bool {
	if d.GroupID == nil {
		return true
	}
	return d.Group != nil && d.Group.Type != GroupTypeWG
}

// DocumentHistory is a full point-in-time snapshot of a document, written
// before every mutating transition.
type DocumentHistory struct {
	HistoryID     int        `gorm:"primaryKey;column:history_id" json:"history_id"`
	DocumentID    int        `gorm:"column:document_id;index" json:"document_id"`
	Rev           string     `gorm:"column:rev;size:2" json:"rev"`
	Title         string     `gorm:"column:title" json:"title"`
	Abstract      string     `gorm:"column:abstract;type:text" json:"abstract"`
	Pages         int        `gorm:"column:pages" json:"pages"`
	GroupID       *int       `gorm:"column:group_id" json:"group_id,omitempty"`
	AdID          *int       `gorm:"column:ad_id" json:"ad_id,omitempty"`
	IntendedLevel string     `gorm:"column:intended_level;size:8" json:"intended_level"`
	Notify        string     `gorm:"column:notify;type:text" json:"notify"`
	Note          string     `gorm:"column:note;type:text" json:"note"`
	ExpiresAt     *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	SnapshotAt    time.Time  `gorm:"column:snapshot_at" json:"snapshot_at"`
}

func (DocumentHistory) TableName() string {
	return "document_history"
}

// RelatedDocument records a typed relationship from one document to a
// logical draft name (which may not exist as a document yet).
type RelatedDocument struct {
	ID           int    `gorm:"primaryKey;column:id" json:"id"`
	SourceID     int    `gorm:"column:source_id;index" json:"source_id"`
	TargetName   string `gorm:"column:target_name;size:255" json:"target_name"`
	Relationship string `gorm:"column:relationship;size:16" json:"relationship"`
}

func (RelatedDocument) TableName() string {
	return "related_documents"
}
