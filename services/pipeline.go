package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"gorm.io/gorm"
)

// Pipeline runs the registered checkers against a validated upload and
// routes the submission onward. Checkers are read-only observers: they
// produce SubmissionCheck rows and never touch submission state; routing
// happens here, after all of them ran.
type Pipeline struct {
	db       *gorm.DB
	settings config.Settings
	registry *Registry
	subs     *SubmissionService
	notifier *Notifier
	poster   *Poster
}

func NewPipeline(db *gorm.DB, settings config.Settings, registry *Registry, notifier *Notifier, poster *Poster) *Pipeline {
	if db == nil {
		db = config.DB
	}
	return &Pipeline{
		db:       db,
		settings: settings,
		registry: registry,
		subs:     NewSubmissionService(db),
		notifier: notifier,
		poster:   poster,
	}
}

// Validate executes every capable checker against the submission's files
// and then routes the submission out of validating. Re-running against an
// unchanged submission is safe; only the latest check per checker is
// authoritative.
func (p *Pipeline) Validate(ctx context.Context, submissionID int) error {
	var sub models.Submission
	err := p.db.WithContext(ctx).Preload("Group").Preload("Files").First(&sub, submissionID).Error
	if err != nil {
		return err
	}
	if sub.State != models.SubmissionValidating {
		// A sweep or operator got here first; nothing to do.
		log.Printf("validation skipped: submission %d is in state %s", submissionID, sub.State)
		return nil
	}

	if err := p.runCheckers(ctx, &sub); err != nil {
		return err
	}
	return p.route(ctx, &sub)
}

func (p *Pipeline) runCheckers(ctx context.Context, sub *models.Submission) error {
	for _, reg := range p.registry.Checkers() {
		for _, file := range sub.Files {
			var (
				result CheckResult
				err    error
				ran    bool
			)
			switch {
			case file.Ext == "txt" && reg.Capabilities.Has(CapFileText):
				result, err = reg.Checker.(FileTextChecker).CheckFileText(file.StoredPath)
				ran = true
			case file.Ext == "xml" && reg.Capabilities.Has(CapFileXML):
				result, err = reg.Checker.(FileXMLChecker).CheckFileXML(file.StoredPath)
				ran = true
			}
			if !ran {
				continue
			}

			check := models.SubmissionCheck{
				SubmissionID: sub.SubmissionID,
				CheckerName:  reg.Checker.Name(),
			}
			if err != nil {
				// The checker broke; record an unknown verdict rather than
				// failing the submission.
				check.Message = fmt.Sprintf("checker did not complete: %v", err)
			} else {
				check.Passed = result.Passed
				check.Message = result.Message
				check.SetErrors(result.Errors)
				check.SetWarnings(result.Warnings)
				check.SetItems(result.Items)
			}
			if err := p.db.WithContext(ctx).Create(&check).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// route applies the approval gate to a submission that finished
// validating.
func (p *Pipeline) route(ctx context.Context, sub *models.Submission) error {
	in := GateInput{
		Rev:                    sub.Rev,
		SubmittedAuthors:       sub.AuthorList(),
		ConfirmationConfigured: p.settings.RequireConfirmation,
	}
	if sub.Group != nil {
		in.GroupRequiresApproval = sub.Group.RequiresApproval
		in.ADApprovalRequired = sub.Group.RequiresADApproval
	}

	var doc models.Document
	err := p.db.WithContext(ctx).Where("name = ?", sub.Name).First(&doc).Error
	switch {
	case err == nil:
		in.PriorAuthors = doc.AuthorList()
	case errors.Is(err, gorm.ErrRecordNotFound):
		// brand-new draft
	default:
		return err
	}

	route, err := ResolveRoute(in)
	if err != nil {
		return err
	}

	switch route {
	case RoutePost:
		_, err = p.poster.Post(ctx, sub.SubmissionID, nil, "Posted automatically after validation")
		return err

	case RouteAuth:
		if _, err := p.subs.Transition(ctx, sub.SubmissionID, models.SubmissionAuth, nil,
			"Validation passed, awaiting author confirmation"); err != nil {
			return err
		}
		token, err := ConfirmationToken(sub.SubmissionID, 0)
		if err != nil {
			return err
		}
		return p.notifyOrCancel(ctx, sub, p.notifier.SubmissionConfirmation(sub, token))

	case RouteAuthorApproval:
		if _, err := p.subs.Transition(ctx, sub.SubmissionID, models.SubmissionAuthorApproval, nil,
			"Awaiting reconfirmation from prior authors"); err != nil {
			return err
		}
		token, err := ConfirmationToken(sub.SubmissionID, 0)
		if err != nil {
			return err
		}
		prior := *sub
		prior.Authors = doc.Authors // confirmation goes to the current document's authors
		return p.notifyOrCancel(ctx, sub, p.notifier.SubmissionConfirmation(&prior, token))

	case RouteGroupApproval:
		if _, err := p.subs.Transition(ctx, sub.SubmissionID, models.SubmissionGroupApproval, nil,
			"Awaiting group chair approval"); err != nil {
			return err
		}
		chairs, err := p.roleEmails(ctx, models.RoleChair)
		if err != nil {
			return err
		}
		return p.notifyOrCancel(ctx, sub, p.notifier.ChairApprovalRequest(sub, chairs))

	case RouteADApproval:
		if _, err := p.subs.Transition(ctx, sub.SubmissionID, models.SubmissionADApproval, nil,
			"Awaiting area director approval"); err != nil {
			return err
		}
		ads, err := p.roleEmails(ctx, models.RoleAreaDirector)
		if err != nil {
			return err
		}
		return p.notifyOrCancel(ctx, sub, p.notifier.ChairApprovalRequest(sub, ads))

	case RouteManual:
		if _, err := p.subs.Transition(ctx, sub.SubmissionID, models.SubmissionManual, nil,
			"No automatic route applies, queued for manual handling"); err != nil {
			return err
		}
		operators, err := p.roleEmails(ctx, models.RoleSecretariat)
		if err != nil {
			return err
		}
		return p.notifyOrCancel(ctx, sub, p.notifier.ManualPostRequest(sub, operators, "no automatic route"))
	}

	return fmt.Errorf("unhandled route %q", route)
}

// notifyOrCancel converts notification-delivery exhaustion into a
// cancellation with a diagnostic event, never a silent success.
func (p *Pipeline) notifyOrCancel(ctx context.Context, sub *models.Submission, notifyErr error) error {
	if notifyErr == nil {
		return nil
	}
	if _, cerr := p.subs.Cancel(ctx, sub.SubmissionID, nil,
		fmt.Sprintf("notification could not be delivered: %v", notifyErr)); cerr != nil {
		return errors.Join(notifyErr, cerr)
	}
	return notifyErr
}

func (p *Pipeline) roleEmails(ctx context.Context, roleID int) ([]string, error) {
	var emails []string
	err := p.db.WithContext(ctx).Model(&models.User{}).
		Where("role_id = ? AND deleted_at IS NULL", roleID).
		Pluck("email", &emails).Error
	return emails, err
}
