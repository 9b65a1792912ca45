package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Submission states. Terminal states are posted and cancel; everything else
// is "in flight" and counts toward the one-active-per-(name,rev) rule.
const (
	SubmissionWaitingForDraft = "waiting-for-draft"
	SubmissionUploaded        = "uploaded"
	SubmissionValidating      = "validating"
	SubmissionAuth            = "auth"
	SubmissionGroupApproval   = "grp-appr"
	SubmissionADApproval      = "ad-appr"
	SubmissionAuthorApproval  = "aut-appr"
	SubmissionManual          = "manual"
	SubmissionPosted          = "posted"
	SubmissionCancelled       = "cancel"
)

// Submission is one in-flight attempt to add or revise a draft.
//
// Active is true while the submission is in a non-terminal state and NULL
// once it reaches posted/cancel. The composite unique index on
// (name, rev, active) is what closes the duplicate-creation race: two
// concurrent intakes for the same (name, rev) cannot both insert an active
// row, while any number of terminal rows are kept for audit.
type Submission struct {
	SubmissionID   int        `gorm:"primaryKey;column:submission_id" json:"submission_id"`
	Name           string     `gorm:"column:name;size:255;uniqueIndex:uniq_active_name_rev" json:"name"`
	Rev            string     `gorm:"column:rev;size:2;uniqueIndex:uniq_active_name_rev" json:"rev"`
	Active         *bool      `gorm:"column:active;uniqueIndex:uniq_active_name_rev" json:"-"`
	GroupID        *int       `gorm:"column:group_id" json:"group_id,omitempty"`
	Title          string     `gorm:"column:title" json:"title"`
	Abstract       string     `gorm:"column:abstract;type:text" json:"abstract"`
	Pages          int        `gorm:"column:pages" json:"pages"`
	SubmitterEmail string     `gorm:"column:submitter_email" json:"submitter_email"`
	Authors        string     `gorm:"column:authors;type:text" json:"authors"`   // comma-separated author emails
	Replaces       string     `gorm:"column:replaces;type:text" json:"replaces"` // comma-separated draft names
	State          string     `gorm:"column:state" json:"state"`
	AccessToken    string     `gorm:"column:access_token;size:64;index" json:"-"`
	SubmissionDate time.Time  `gorm:"column:submission_date" json:"submission_date"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Group  *Group            `gorm:"foreignKey:GroupID;references:GroupID" json:"group,omitempty"`
	Files  []SubmissionFile  `gorm:"foreignKey:SubmissionID" json:"files,omitempty"`
	Checks []SubmissionCheck `gorm:"foreignKey:SubmissionID" json:"checks,omitempty"`
	Events []SubmissionEvent `gorm:"foreignKey:SubmissionID" json:"events,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// IsTerminal reports whether the submission reached posted or cancel.
func (s Submission) IsTerminal() bool {
	return s.State == SubmissionPosted || s.State == SubmissionCancelled
}

// AuthorList splits the stored author emails.
func (s Submission) AuthorList() []string {
	return splitList(s.Authors)
}

// ReplacesList splits the stored replaced draft names.
func (s Submission) ReplacesList() []string {
	return splitList(s.Replaces)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SubmissionFile records one uploaded rendition of the draft.
type SubmissionFile struct {
	FileID       int       `gorm:"primaryKey;column:file_id" json:"file_id"`
	SubmissionID int       `gorm:"column:submission_id;index" json:"submission_id"`
	Ext          string    `gorm:"column:ext;size:8" json:"ext"` // txt|xml|pdf|ps
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	StoredPath   string    `gorm:"column:stored_path" json:"stored_path"`
	FileSize     int64     `gorm:"column:file_size" json:"file_size"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SubmissionFile) TableName() string {
	return "submission_files"
}

// SubmissionCheck is one checker's verdict against one submission. Rows are
// append-only; the latest row per checker name is the operative view.
type SubmissionCheck struct {
	CheckID      int       `gorm:"primaryKey;column:check_id" json:"check_id"`
	SubmissionID int       `gorm:"column:submission_id;index" json:"submission_id"`
	CheckerName  string    `gorm:"column:checker_name" json:"checker_name"`
	Passed       *bool     `gorm:"column:passed" json:"passed"` // NULL = unknown
	Message      string    `gorm:"column:message;type:text" json:"message"`
	ErrorsJSON   string    `gorm:"column:errors_json;type:text" json:"-"`
	WarningsJSON string    `gorm:"column:warnings_json;type:text" json:"-"`
	ItemsJSON    string    `gorm:"column:items_json;type:text" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SubmissionCheck) TableName() string {
	return "submission_checks"
}

// SetErrors stores the structured error list.
func (c *SubmissionCheck) SetErrors(errs []string) {
	c.ErrorsJSON = marshalList(errs)
}

// SetWarnings stores the structured warning list.
func (c *SubmissionCheck) SetWarnings(warns []string) {
	c.WarningsJSON = marshalList(warns)
}

// SetItems stores checker-specific items.
func (c *SubmissionCheck) SetItems(items map[string]any) {
	if len(items) == 0 {
		c.ItemsJSON = ""
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	c.ItemsJSON = string(b)
}

// Errors returns the structured error list.
func (c SubmissionCheck) Errors() []string {
	return unmarshalList(c.ErrorsJSON)
}

// Warnings returns the structured warning list.
func (c SubmissionCheck) Warnings() []string {
	return unmarshalList(c.WarningsJSON)
}

func marshalList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	b, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// SubmissionEvent is the append-only narrative log tied to a submission.
type SubmissionEvent struct {
	EventID      int       `gorm:"primaryKey;column:event_id" json:"event_id"`
	SubmissionID int       `gorm:"column:submission_id;index" json:"submission_id"`
	ByUserID     *int      `gorm:"column:by_user_id" json:"by_user_id,omitempty"`
	Desc         string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SubmissionEvent) TableName() string {
	return "submission_events"
}
