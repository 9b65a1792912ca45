package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"draft-submission-api/models"

	"gorm.io/gorm"
)

// writeSubmissionFile puts a stored upload on disk and records it.
func writeSubmissionFile(t *testing.T, db *gorm.DB, sub *models.Submission, dir, ext, content string) {
	t.Helper()
	path := filepath.Join(dir, sub.Name+"-"+sub.Rev+"."+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	if err := db.Create(&models.SubmissionFile{
		SubmissionID: sub.SubmissionID,
		Ext:          ext,
		OriginalName: filepath.Base(path),
		StoredPath:   path,
		FileSize:     int64(len(content)),
	}).Error; err != nil {
		t.Fatalf("record upload: %v", err)
	}
}

func TestPostCreatesDocument(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	poster := NewPoster(db, settings, nil)
	ctx := context.Background()

	sub := makeSubmission(t, db, "draft-example-post", "00", models.SubmissionAuth)
	sub.Replaces = "draft-example-old"
	if err := db.Save(sub).Error; err != nil {
		t.Fatal(err)
	}
	writeSubmissionFile(t, db, sub, settings.UploadPath, "txt", "A Test Draft\n\nAbstract\n\nWords.\n")

	event, err := poster.Post(ctx, sub.SubmissionID, nil, "test post")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if event.Type != models.EventNewRevision {
		t.Errorf("event type = %q, want new_revision", event.Type)
	}

	var doc models.Document
	if err := db.Where("name = ?", sub.Name).First(&doc).Error; err != nil {
		t.Fatalf("document not created: %v", err)
	}
	if doc.Rev != "00" {
		t.Errorf("doc rev = %q", doc.Rev)
	}
	if doc.ExpiresAt == nil {
		t.Error("expiry not set")
	}

	// New documents start active in the draft lifecycle.
	state, err := NewDocStateService(db).CurrentState(ctx, doc.DocumentID, models.StateTypeDraft)
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.Slug != models.StateActive {
		t.Errorf("draft state = %v, want active", state)
	}

	// The replaces relationship was recorded.
	var rel models.RelatedDocument
	if err := db.Where("source_id = ? AND relationship = ?", doc.DocumentID, models.RelReplaces).First(&rel).Error; err != nil {
		t.Fatalf("replaces relationship missing: %v", err)
	}
	if rel.TargetName != "draft-example-old" {
		t.Errorf("replaces target = %q", rel.TargetName)
	}

	// Files moved to the repository.
	if _, err := os.Stat(filepath.Join(settings.RepositoryPath, "draft-example-post-00.txt")); err != nil {
		t.Errorf("repository file missing: %v", err)
	}

	var fresh models.Submission
	if err := db.First(&fresh, sub.SubmissionID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.State != models.SubmissionPosted {
		t.Errorf("submission state = %q, want posted", fresh.State)
	}
	if fresh.Active != nil {
		t.Error("posted submission should have NULL active")
	}
}

func TestPostTwiceIsRefused(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	poster := NewPoster(db, settings, nil)
	ctx := context.Background()

	sub := makeSubmission(t, db, "draft-example-twice", "00", models.SubmissionAuth)
	writeSubmissionFile(t, db, sub, settings.UploadPath, "txt", "content\n")

	if _, err := poster.Post(ctx, sub.SubmissionID, nil, ""); err != nil {
		t.Fatalf("first Post: %v", err)
	}
	if _, err := poster.Post(ctx, sub.SubmissionID, nil, ""); !errors.Is(err, ErrAlreadyPosted) {
		t.Fatalf("second Post = %v, want ErrAlreadyPosted", err)
	}

	var revisions int64
	if err := db.Model(&models.DocEvent{}).Where("type = ?", models.EventNewRevision).Count(&revisions).Error; err != nil {
		t.Fatal(err)
	}
	if revisions != 1 {
		t.Errorf("new_revision events = %d, want 1", revisions)
	}
}

func TestPostRevisionSwapsStallTag(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	poster := NewPoster(db, settings, nil)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-rev", "01", models.StateADEval)
	if err := db.Create(&models.DocTag{DocumentID: doc.DocumentID, Slug: models.TagRevisionNeeded}).Error; err != nil {
		t.Fatal(err)
	}

	sub := makeSubmission(t, db, "draft-example-rev", "02", models.SubmissionAuth)
	writeSubmissionFile(t, db, sub, settings.UploadPath, "txt", "revised content\n")

	if _, err := poster.Post(ctx, sub.SubmissionID, nil, ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	tags, err := NewDocStateService(db).Tags(ctx, doc.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != models.TagADFollowup {
		t.Errorf("tags = %v, want [ad-f-up]", tags)
	}

	// A history snapshot was taken before the mutation.
	var snapshots int64
	if err := db.Model(&models.DocumentHistory{}).Where("document_id = ?", doc.DocumentID).Count(&snapshots).Error; err != nil {
		t.Fatal(err)
	}
	if snapshots == 0 {
		t.Error("no history snapshot written for the revised document")
	}

	var fresh models.Document
	if err := db.First(&fresh, doc.DocumentID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.Rev != "02" {
		t.Errorf("doc rev = %q, want 02", fresh.Rev)
	}
}

// noopRelocator succeeds without touching the filesystem, so concurrent
// posters contend only on the database.
type noopRelocator struct{}

func (noopRelocator) Relocate(ctx context.Context, sub *models.Submission) error {
	return nil
}

func TestConcurrentPostersWriteOneRevision(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	settings := testSettings(t)
	poster := NewPoster(db, settings, noopRelocator{})
	ctx := context.Background()

	sub := makeSubmission(t, db, "draft-example-postrace", "00", models.SubmissionAuth)

	const posters = 4
	errs := make(chan error, posters)
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := poster.Post(ctx, sub.SubmissionID, nil, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrAlreadyPosted) {
			t.Errorf("losing poster got %v, want ErrAlreadyPosted", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d posters succeeded, want exactly 1", succeeded)
	}

	var revisions int64
	if err := db.Model(&models.DocEvent{}).Where("type = ?", models.EventNewRevision).Count(&revisions).Error; err != nil {
		t.Fatal(err)
	}
	if revisions != 1 {
		t.Errorf("new_revision events = %d, want exactly 1", revisions)
	}
	var docs int64
	if err := db.Model(&models.Document{}).Count(&docs).Error; err != nil {
		t.Fatal(err)
	}
	if docs != 1 {
		t.Errorf("documents = %d, want exactly 1", docs)
	}

	var fresh models.Submission
	if err := db.First(&fresh, sub.SubmissionID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.State != models.SubmissionPosted || fresh.Active != nil {
		t.Errorf("submission = (%q, active %v), want posted with NULL active", fresh.State, fresh.Active)
	}
}

// failingRelocator always fails, forcing the compensation path.
type failingRelocator struct{}

func (failingRelocator) Relocate(ctx context.Context, sub *models.Submission) error {
	return errors.New("disk on fire")
}

func TestPostCompensatesOnRelocationFailure(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	poster := NewPoster(db, settings, failingRelocator{})
	ctx := context.Background()

	sub := makeSubmission(t, db, "draft-example-reloc", "00", models.SubmissionAuth)

	_, err := poster.Post(ctx, sub.SubmissionID, nil, "")
	var rerr *RelocationError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RelocationError, got %v", err)
	}

	var fresh models.Submission
	if err := db.First(&fresh, sub.SubmissionID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.State != models.SubmissionCancelled {
		t.Errorf("submission state = %q, want cancel after compensation", fresh.State)
	}

	var docs int64
	if err := db.Model(&models.Document{}).Count(&docs).Error; err != nil {
		t.Fatal(err)
	}
	if docs != 0 {
		t.Error("no document should exist after a failed relocation")
	}
}
