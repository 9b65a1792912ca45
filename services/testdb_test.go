package services

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens a fresh in-memory database with the schema migrated and
// the state graphs seeded. Shared cache keeps all of gorm's pooled
// connections on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	if err := models.SeedStates(db); err != nil {
		t.Fatalf("seed states: %v", err)
	}
	return db
}

// testSettings returns workflow settings tuned for fast tests.
func testSettings(t *testing.T) config.Settings {
	t.Helper()
	return config.Settings{
		UploadPath:               t.TempDir(),
		RepositoryPath:           t.TempDir(),
		MaxTxtBytes:              1 << 20,
		MaxXMLBytes:              1 << 20,
		MaxPDFBytes:              1 << 20,
		MaxPSBytes:               1 << 20,
		CheckerNames:             []string{"textual", "xmlwf"},
		RequireConfirmation:      true,
		ValidationTimeout:        time.Minute,
		MaxSubmissionAge:         time.Hour,
		LastCallPeriod:           14 * 24 * time.Hour,
		IndividualLastCallPeriod: 28 * 24 * time.Hour,
		RelocateTimeout:          time.Second,
		RelocateRetries:          1,
		WorkerCount:              1,
		PollInterval:             10 * time.Millisecond,
		SweepInterval:            time.Minute,
		BaseURL:                  "http://test.local",
	}
}

// makeSubmission inserts a submission directly in the given state.
func makeSubmission(t *testing.T, db *gorm.DB, name, rev, state string) *models.Submission {
	t.Helper()
	sub := &models.Submission{
		Name:           name,
		Rev:            rev,
		Title:          "A Test Draft",
		Abstract:       "An abstract.",
		Pages:          3,
		SubmitterEmail: "submitter@example.org",
		Authors:        "author@example.org",
		State:          state,
		AccessToken:    uuid.NewString(),
		SubmissionDate: time.Now(),
	}
	if !sub.IsTerminal() {
		active := true
		sub.Active = &active
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("create submission: %v", err)
	}
	return sub
}

// makeDocument inserts a document, optionally placing it in IESG review.
func makeDocument(t *testing.T, db *gorm.DB, name, rev, iesgSlug string) *models.Document {
	t.Helper()
	doc := &models.Document{
		Name:          name,
		Rev:           rev,
		Title:         "A Test Draft",
		Abstract:      "An abstract.",
		IntendedLevel: models.LevelStandard,
		Authors:       "author@example.org",
		Notify:        "notify@example.org",
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := setInitialState(db, doc.DocumentID, models.StateTypeDraft, models.StateActive); err != nil {
		t.Fatalf("set draft state: %v", err)
	}
	if iesgSlug != "" {
		if err := setInitialState(db, doc.DocumentID, models.StateTypeIESG, iesgSlug); err != nil {
			t.Fatalf("set iesg state %s: %v", iesgSlug, err)
		}
	}
	return doc
}

// makeUser inserts a user with the given role.
func makeUser(t *testing.T, db *gorm.DB, email string, roleID int) *models.User {
	t.Helper()
	u := &models.User{
		Email:    email,
		FullName: strings.SplitN(email, "@", 2)[0],
		RoleID:   roleID,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// recordingSender captures notifications instead of mailing them. FailTimes
// makes the first N sends fail to exercise retry behavior.
type recordingSender struct {
	Sent      []Notification
	FailTimes int
	calls     int
}

func (r *recordingSender) Send(n Notification) error {
	r.calls++
	if r.calls <= r.FailTimes {
		return fmt.Errorf("smtp unavailable (attempt %d)", r.calls)
	}
	r.Sent = append(r.Sent, n)
	return nil
}

func countEvents(t *testing.T, db *gorm.DB, submissionID int) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.SubmissionEvent{}).Where("submission_id = ?", submissionID).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}
