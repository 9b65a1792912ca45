package controllers

import (
	"draft-submission-api/config"
	"draft-submission-api/services"
)

// Deps holds the wired service instances the controllers use. Built once
// in main and handed over here; no service constructs itself from ambient
// state.
type Deps struct {
	Settings    config.Settings
	Submissions *services.SubmissionService
	Queue       *services.TaskQueue
	Poster      *services.Poster
	Notifier    *services.Notifier
	Ballots     *services.BallotService
	DocStates   *services.DocStateService
	LastCall    *services.LastCallService
	Events      *services.EventLog
}

var deps Deps

// Setup installs the wired dependencies for the controller package.
func Setup(d Deps) {
	deps = d
}
