package services

import (
	"context"
	"errors"
	"testing"

	"draft-submission-api/models"
)

func TestSetStateFollowsGraph(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-state", "00", models.StatePubReq)

	event, err := svc.SetState(ctx, doc.DocumentID, models.StateTypeIESG, models.StateADEval, nil, false)
	if err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if event == nil || event.Type != models.EventChangedState {
		t.Fatalf("expected a changed_state event, got %+v", event)
	}

	state, err := svc.CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
	if err != nil {
		t.Fatal(err)
	}
	if state.Slug != models.StateADEval {
		t.Errorf("state = %q, want ad-eval", state.Slug)
	}
}

func TestSetStateRefusesOffGraph(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-offgraph", "00", models.StatePubReq)
	eventsBefore, _ := NewEventLog(db).All(doc.DocumentID)

	// pub-req cannot jump straight to approval.
	_, err := svc.SetState(ctx, doc.DocumentID, models.StateTypeIESG, models.StateAnn, nil, false)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	state, _ := svc.CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
	if state.Slug != models.StatePubReq {
		t.Errorf("state mutated to %q on refused transition", state.Slug)
	}
	eventsAfter, _ := NewEventLog(db).All(doc.DocumentID)
	if len(eventsAfter) != len(eventsBefore) {
		t.Error("a refused transition must not write events")
	}
}

func TestSetStateForceBypassesGraph(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-force", "00", models.StatePubReq)

	event, err := svc.SetState(ctx, doc.DocumentID, models.StateTypeIESG, models.StateAnn, nil, true)
	if err != nil {
		t.Fatalf("forced SetState: %v", err)
	}
	if event == nil {
		t.Fatal("forced transition should write an event")
	}

	state, _ := svc.CurrentState(ctx, doc.DocumentID, models.StateTypeIESG)
	if state.Slug != models.StateAnn {
		t.Errorf("state = %q, want ann", state.Slug)
	}
}

func TestSetStateSameStateIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-noop", "00", models.StatePubReq)

	event, err := svc.SetState(ctx, doc.DocumentID, models.StateTypeIESG, models.StatePubReq, nil, false)
	if err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if event != nil {
		t.Error("same-state transition must be a silent no-op")
	}
}

func TestIESGStateChangeClearsStallTags(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-stall", "00", models.StateADEval)
	if err := svc.SetStallTag(ctx, doc.DocumentID, models.TagPointRaised, nil); err != nil {
		t.Fatalf("SetStallTag: %v", err)
	}

	if _, err := svc.SetState(ctx, doc.DocumentID, models.StateTypeIESG, models.StateLCReq, nil, false); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	tags, err := svc.Tags(ctx, doc.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none after a review-state change", tags)
	}
}

func TestStallTagsAreMutuallyExclusive(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-tags", "00", models.StateADEval)

	if err := svc.SetStallTag(ctx, doc.DocumentID, models.TagRevisionNeeded, nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetStallTag(ctx, doc.DocumentID, models.TagExternalParty, nil); err != nil {
		t.Fatal(err)
	}

	tags, err := svc.Tags(ctx, doc.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != models.TagExternalParty {
		t.Errorf("tags = %v, want [extpty]", tags)
	}

	if err := svc.SetStallTag(ctx, doc.DocumentID, "bogus", nil); err == nil {
		t.Error("unknown stall tag should be refused")
	}

	// Empty slug clears.
	if err := svc.SetStallTag(ctx, doc.DocumentID, "", nil); err != nil {
		t.Fatal(err)
	}
	tags, _ = svc.Tags(ctx, doc.DocumentID)
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestCanRequestLastCall(t *testing.T) {
	tests := []struct {
		slug  string
		order int
		want  bool
	}{
		{models.StatePubReq, 10, true},
		{models.StateADEval, 12, true},
		{models.StateLCReq, 15, false},
		{models.StateIESGEval, 20, false},
		{models.StateWatching, 42, true},
		{models.StateDead, 99, false},
	}
	for _, tt := range tests {
		state := &models.State{Slug: tt.slug, Order: tt.order}
		if got := CanRequestLastCall(state); got != tt.want {
			t.Errorf("CanRequestLastCall(%s) = %v, want %v", tt.slug, got, tt.want)
		}
	}
	if !CanRequestLastCall(nil) {
		t.Error("a document not yet under review can have a last call requested")
	}
}

func TestCanApprove(t *testing.T) {
	if CanApprove(nil) {
		t.Error("no review state means nothing to approve")
	}
	if CanApprove(&models.State{Slug: models.StateLC, Order: 16}) {
		t.Error("cannot approve before evaluation")
	}
	if !CanApprove(&models.State{Slug: models.StateIESGEval, Order: 20}) {
		t.Error("evaluation state should be approvable")
	}
	if CanApprove(&models.State{Slug: models.StateWatching, Order: 42}) {
		t.Error("parked documents are not approvable")
	}
}

func TestSetConsensus(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocStateService(db)
	ctx := context.Background()

	doc := makeDocument(t, db, "draft-example-consensus", "00", "")

	ev, err := svc.SetConsensus(ctx, doc.DocumentID, true, nil)
	if err != nil {
		t.Fatalf("SetConsensus: %v", err)
	}
	if ev.Consensus == nil || !*ev.Consensus {
		t.Error("consensus flag not carried on the event")
	}

	latest, err := NewEventLog(db).Latest(doc.DocumentID, models.EventChangedConsensus)
	if err != nil || latest == nil {
		t.Fatalf("consensus event missing (err %v)", err)
	}
}
