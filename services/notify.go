package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"github.com/google/uuid"
)

// Notification is the structured payload handed to the outward
// notification collaborator. The core composes it; transport is not its
// problem.
type Notification struct {
	To            []string
	Subject       string
	Body          string
	CorrelationID string
}

// Sender delivers one notification. Production uses the SMTP mailer; tests
// record instead.
type Sender interface {
	Send(n Notification) error
}

// MailSender delivers through config.SendMail.
type MailSender struct{}

func (MailSender) Send(n Notification) error {
	return config.SendMail(n.To, n.Subject, n.Body)
}

// Notifier composes the workflow's outward notifications and delivers them
// with bounded retry. Delivery exhaustion is reported to the caller, never
// swallowed.
type Notifier struct {
	sender  Sender
	baseURL string
	retries int
	backoff time.Duration
}

func NewNotifier(sender Sender, baseURL string) *Notifier {
	if sender == nil {
		sender = MailSender{}
	}
	return &Notifier{sender: sender, baseURL: strings.TrimRight(baseURL, "/"), retries: 3, backoff: 2 * time.Second}
}

func (n *Notifier) deliver(note Notification) error {
	note.CorrelationID = uuid.NewString()
	var err error
	for attempt := 0; attempt < n.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(n.backoff << (attempt - 1))
		}
		if err = n.sender.Send(note); err == nil {
			return nil
		}
		log.Printf("notification delivery attempt %d failed (%s): %v", attempt+1, note.Subject, err)
	}
	return fmt.Errorf("notification %q not delivered after %d attempts: %w", note.Subject, n.retries, err)
}

// SubmissionConfirmation asks the author list to confirm a submission via
// the signed link.
func (n *Notifier) SubmissionConfirmation(sub *models.Submission, token string) error {
	link := fmt.Sprintf("%s/api/v1/submissions/%d/confirm?token=%s", n.baseURL, sub.SubmissionID, token)
	return n.deliver(Notification{
		To:      sub.AuthorList(),
		Subject: fmt.Sprintf("Confirm submission of %s-%s", sub.Name, sub.Rev),
		Body: fmt.Sprintf("A new revision of %s has been submitted by %s.\n\n"+
			"To confirm and post it, follow:\n%s\n\nIf you did not expect this submission, ignore this message.",
			sub.Name, sub.SubmitterEmail, link),
	})
}

// FullAccessLink sends the submitter the status-polling URL with the
// unguessable access token.
func (n *Notifier) FullAccessLink(sub *models.Submission) error {
	link := fmt.Sprintf("%s/api/v1/submissions/%d/status?token=%s", n.baseURL, sub.SubmissionID, sub.AccessToken)
	return n.deliver(Notification{
		To:      []string{sub.SubmitterEmail},
		Subject: fmt.Sprintf("Submission status for %s-%s", sub.Name, sub.Rev),
		Body:    fmt.Sprintf("Track and manage your submission at:\n%s\n", link),
	})
}

// ChairApprovalRequest notifies group chairs that a submission waits on
// their sign-off.
func (n *Notifier) ChairApprovalRequest(sub *models.Submission, chairs []string) error {
	return n.deliver(Notification{
		To:      chairs,
		Subject: fmt.Sprintf("Approval requested for %s-%s", sub.Name, sub.Rev),
		Body: fmt.Sprintf("Submission %s-%s by %s awaits group approval.\n",
			sub.Name, sub.Rev, sub.SubmitterEmail),
	})
}

// ManualPostRequest alerts the operators that a submission needs a human.
func (n *Notifier) ManualPostRequest(sub *models.Submission, operators []string, reason string) error {
	return n.deliver(Notification{
		To:      operators,
		Subject: fmt.Sprintf("Manual post requested for %s-%s", sub.Name, sub.Rev),
		Body:    fmt.Sprintf("Submission %s-%s needs manual handling: %s\n", sub.Name, sub.Rev, reason),
	})
}

// NewRevisionAnnouncement announces a posted revision.
func (n *Notifier) NewRevisionAnnouncement(doc *models.Document, to []string) error {
	return n.deliver(Notification{
		To:      to,
		Subject: fmt.Sprintf("New revision %s-%s posted", doc.Name, doc.Rev),
		Body:    fmt.Sprintf("%s\n\n%s\n", doc.Title, doc.Abstract),
	})
}

// LastCallAnnouncement sends the last-call text to the review community.
func (n *Notifier) LastCallAnnouncement(doc *models.Document, text string, expires time.Time, to []string) error {
	return n.deliver(Notification{
		To:      to,
		Subject: fmt.Sprintf("Last Call: %s (%s)", doc.Name, doc.Title),
		Body:    fmt.Sprintf("%s\n\nThis last call expires on %s.\n", text, expires.Format("2006-01-02")),
	})
}

// ApprovalAnnouncement sends the approval announcement.
func (n *Notifier) ApprovalAnnouncement(doc *models.Document, text string, to []string) error {
	return n.deliver(Notification{
		To:      to,
		Subject: fmt.Sprintf("Document Action: %s", doc.Name),
		Body:    text,
	})
}

// StateChangeNotice reports a review-state change to the notify list.
func (n *Notifier) StateChangeNotice(doc *models.Document, from, to string) error {
	return n.deliver(Notification{
		To:      doc.NotifyList(),
		Subject: fmt.Sprintf("State change: %s", doc.Name),
		Body:    fmt.Sprintf("%s moved from %s to %s.\n", doc.Name, from, to),
	})
}
