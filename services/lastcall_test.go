package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"draft-submission-api/models"
)

func TestRequestLastCallGeneratesAnnouncement(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	svc := NewLastCallService(db, settings)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-lc", "00", models.StateADEval)

	if _, err := svc.RequestLastCall(ctx, doc.DocumentID, nil); err != nil {
		t.Fatalf("RequestLastCall: %v", err)
	}

	state, _ := NewDocStateService(db).CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
	if state.Slug != models.StateLCReq {
		t.Errorf("state = %q, want lc-req", state.Slug)
	}

	writeup, err := NewEventLog(db).Latest(doc.DocumentID, models.EventChangedLastCallText)
	if err != nil || writeup == nil {
		t.Fatalf("announcement writeup missing (err %v)", err)
	}
	if writeup.Text == "" {
		t.Error("generated announcement is empty")
	}
}

func TestRequestLastCallRefusedPastThreshold(t *testing.T) {
	db := newTestDB(t)
	svc := NewLastCallService(db, testSettings(t))
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-late", "00", models.StateIESGEval)

	_, err := svc.RequestLastCall(ctx, doc.DocumentID, nil)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("got %v, want InvalidTransitionError", err)
	}
}

func TestSendLastCallDefaultPeriods(t *testing.T) {
	tests := []struct {
		name       string
		groupType  string
		wantPeriod time.Duration
	}{
		{"working group document", models.GroupTypeWG, 14 * 24 * time.Hour},
		{"individual document", "", 28 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			settings := testSettings(t)
			svc := NewLastCallService(db, settings)
			ctx := context.Background()

			doc := makeDocument(t, db, "draft-example-period", "00", models.StateADEval)
			if tt.groupType != "" {
				group := models.Group{Acronym: "testwg", Name: "Test WG", Type: tt.groupType}
				if err := db.Create(&group).Error; err != nil {
					t.Fatal(err)
				}
				if err := db.Model(doc).Update("group_id", group.GroupID).Error; err != nil {
					t.Fatal(err)
				}
			}

			if _, err := svc.RequestLastCall(ctx, doc.DocumentID, nil); err != nil {
				t.Fatal(err)
			}
			before := time.Now()
			sent, err := svc.SendLastCall(ctx, doc.DocumentID, nil, nil)
			if err != nil {
				t.Fatalf("SendLastCall: %v", err)
			}
			if sent.ExpiresAt == nil {
				t.Fatal("expiry not set")
			}

			got := sent.ExpiresAt.Sub(before)
			if got < tt.wantPeriod-time.Minute || got > tt.wantPeriod+time.Minute {
				t.Errorf("expiry period = %v, want ~%v", got, tt.wantPeriod)
			}

			state, _ := NewDocStateService(db).CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
			if state.Slug != models.StateLC {
				t.Errorf("state = %q, want lc", state.Slug)
			}
		})
	}
}

func TestExpireLastCalls(t *testing.T) {
	tests := []struct {
		name      string
		writeup   string // "" means none
		wantState string
	}{
		{"no ballot writeup waits for one", "", models.StateWriteupW},
		{"boilerplate writeup still waits", "Technical Summary\n\nTODO - fill in the writeup", models.StateWriteupW},
		{"edited writeup goes ahead", "Technical Summary\n\nAll reviews in.", models.StateGoaheadW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			settings := testSettings(t)
			svc := NewLastCallService(db, settings)
			ctx := context.Background()

			doc := makeDocument(t, db, "draft-example-expire", "00", models.StateADEval)
			if _, err := svc.RequestLastCall(ctx, doc.DocumentID, nil); err != nil {
				t.Fatal(err)
			}
			past := time.Now().Add(-time.Hour)
			if _, err := svc.SendLastCall(ctx, doc.DocumentID, nil, &past); err != nil {
				t.Fatal(err)
			}
			if tt.writeup != "" {
				if _, err := svc.GenerateBallotWriteup(ctx, doc.DocumentID, tt.writeup, nil); err != nil {
					t.Fatal(err)
				}
			}

			moved, err := svc.ExpireLastCalls(ctx)
			if err != nil {
				t.Fatalf("ExpireLastCalls: %v", err)
			}
			if moved != 1 {
				t.Errorf("moved = %d, want 1", moved)
			}

			state, _ := NewDocStateService(db).CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
			if state.Slug != tt.wantState {
				t.Errorf("state = %q, want %q", state.Slug, tt.wantState)
			}

			// A second pass finds nothing left to do.
			moved, err = svc.ExpireLastCalls(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if moved != 0 {
				t.Errorf("second pass moved %d documents", moved)
			}
		})
	}
}

func TestExpireLastCallsSkipsUnexpired(t *testing.T) {
	db := newTestDB(t)
	settings := testSettings(t)
	svc := NewLastCallService(db, settings)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-running", "00", models.StateADEval)
	if _, err := svc.RequestLastCall(ctx, doc.DocumentID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SendLastCall(ctx, doc.DocumentID, nil, nil); err != nil {
		t.Fatal(err)
	}

	moved, err := svc.ExpireLastCalls(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 0 {
		t.Errorf("moved = %d, want 0 for a running last call", moved)
	}
}

func TestGenerateBallotWriteupDefault(t *testing.T) {
	db := newTestDB(t)
	svc := NewLastCallService(db, testSettings(t))
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-writeup", "00", models.StateLC)

	ev, err := svc.GenerateBallotWriteup(ctx, doc.DocumentID, "", nil)
	if err != nil {
		t.Fatalf("GenerateBallotWriteup: %v", err)
	}
	if ev.Text == "" {
		t.Fatal("default writeup is empty")
	}
	if !strings.Contains(ev.Text, BoilerplateMarker) {
		t.Error("default writeup should carry the boilerplate marker")
	}
}
