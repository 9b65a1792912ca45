package services

import (
	"fmt"
	"strings"
)

// Route is the approval route a validated submission takes before posting.
type Route string

const (
	RouteAuth           Route = "auth"     // submitter self-confirmation
	RouteGroupApproval  Route = "grp-appr" // group chair sign-off
	RouteADApproval     Route = "ad-appr"  // area-director sign-off
	RouteAuthorApproval Route = "aut-appr" // prior co-author reconfirmation
	RouteManual         Route = "manual"   // operator handling
	RoutePost           Route = "post"     // post immediately, no confirmation
)

// GateInput is everything the routing decision depends on. The gate is a
// pure function over this value: no side effects, no database access.
type GateInput struct {
	// ManualOverride is the explicit operator escape hatch; it always wins.
	ManualOverride bool

	// GroupRequiresApproval mirrors the owning group's feature flag.
	GroupRequiresApproval bool

	// ADApprovalRequired is set when the intended track needs an area
	// director's sign-off.
	ADApprovalRequired bool

	// Rev is the submission's two-digit revision; "00" is a first version.
	Rev string

	// PriorAuthors holds the current document's author identities; empty
	// for a brand-new draft.
	PriorAuthors []string

	// SubmittedAuthors holds the author identities listed on this
	// submission.
	SubmittedAuthors []string

	// ConfirmationConfigured reports whether the stream sends submitter
	// confirmation emails at all.
	ConfirmationConfigured bool
}

// ResolveRoute decides which approval route applies. It is total: every
// valid input resolves to exactly one route, and malformed input is an
// error rather than a silent default.
func ResolveRoute(in GateInput) (Route, error) {
	if len(in.Rev) != 2 {
		return "", fmt.Errorf("approval gate: revision %q is not a two-digit string", in.Rev)
	}

	if in.ManualOverride {
		return RouteManual, nil
	}
	if in.GroupRequiresApproval {
		return RouteGroupApproval, nil
	}
	if in.ADApprovalRequired {
		return RouteADApproval, nil
	}
	if in.Rev != "00" && len(in.PriorAuthors) > 1 && !coversAll(in.SubmittedAuthors, in.PriorAuthors) {
		return RouteAuthorApproval, nil
	}
	if in.ConfirmationConfigured {
		return RouteAuth, nil
	}
	return RoutePost, nil
}

// coversAll reports whether every prior author appears in the submitted
// author list (case-insensitive).
func coversAll(submitted, prior []string) bool {
	have := make(map[string]bool, len(submitted))
	for _, a := range submitted {
		have[strings.ToLower(strings.TrimSpace(a))] = true
	}
	for _, p := range prior {
		if !have[strings.ToLower(strings.TrimSpace(p))] {
			return false
		}
	}
	return true
}
