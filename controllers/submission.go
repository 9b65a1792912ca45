package controllers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"draft-submission-api/config"
	"draft-submission-api/models"
	"draft-submission-api/services"
	"draft-submission-api/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateSubmission handles the multipart draft intake. Files are parsed
// synchronously so the submitter gets structured rejections right away;
// the checkers run afterwards through the task queue.
func CreateSubmission(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}

	uploads, err := readUploads(form.File["files"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, verr := services.ParseAll(deps.Settings, uploads)
	if verr != nil {
		handleServiceError(c, verr)
		return
	}

	groupID, err := resolveGroup(c.PostForm("group"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submitter := utils.SanitizeInput(c.PostForm("submitter_email"))
	if !utils.ValidateEmail(submitter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid submitter_email is required"})
		return
	}

	authors := splitField(c.PostForm("authors"))
	if len(authors) == 0 {
		authors = []string{submitter}
	}

	sub, err := deps.Submissions.Create(c.Request.Context(), services.SubmissionInput{
		Name:           meta.Name,
		Rev:            meta.Rev,
		GroupID:        groupID,
		Title:          meta.Title,
		Abstract:       meta.Abstract,
		Pages:          meta.Pages,
		SubmitterEmail: submitter,
		Authors:        authors,
		Replaces:       splitField(c.PostForm("replaces")),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if err := storeUploads(sub, uploads); err != nil {
		// Intake already committed; cancel so the slot frees up.
		if _, cerr := deps.Submissions.Cancel(c.Request.Context(), sub.SubmissionID, nil,
			fmt.Sprintf("upload storage failed: %v", err)); cerr != nil {
			log.Printf("submission %d could not be cancelled after storage failure: %v", sub.SubmissionID, cerr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded files"})
		return
	}

	// The transition and its validation task commit together; a crash
	// between them cannot strand the submission in validating.
	err = config.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if _, err := deps.Submissions.WithTx(tx).Transition(c.Request.Context(), sub.SubmissionID,
			models.SubmissionValidating, nil, "Queued for validation"); err != nil {
			return err
		}
		return deps.Queue.Enqueue(tx, sub.SubmissionID, models.TaskValidate)
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Best effort; losing the mail only loses the convenience link.
	if err := deps.Notifier.FullAccessLink(sub); err != nil {
		log.Printf("access link for submission %d not delivered: %v", sub.SubmissionID, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"submission_id": sub.SubmissionID,
		"name":          sub.Name,
		"rev":           sub.Rev,
		"state":         models.SubmissionValidating,
		"access_token":  sub.AccessToken,
		"status_url": fmt.Sprintf("%s/api/v1/submissions/%d/status?token=%s",
			deps.Settings.BaseURL, sub.SubmissionID, sub.AccessToken),
	})
}

func readUploads(headers []*multipart.FileHeader) ([]services.UploadedFile, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("at least one file is required under the %q field", "files")
	}
	uploads := make([]services.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not read upload %s", fh.Filename)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read upload %s", fh.Filename)
		}
		uploads = append(uploads, services.UploadedFile{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

func storeUploads(sub *models.Submission, uploads []services.UploadedFile) error {
	dir := filepath.Join(deps.Settings.UploadPath, strconv.Itoa(sub.SubmissionID))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	for _, u := range uploads {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
		dest := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", sub.Name, sub.Rev, ext))
		if err := os.WriteFile(dest, u.Content, 0644); err != nil {
			return err
		}
		if err := config.DB.Create(&models.SubmissionFile{
			SubmissionID: sub.SubmissionID,
			Ext:          ext,
			OriginalName: filepath.Base(u.Filename),
			StoredPath:   dest,
			FileSize:     int64(len(u.Content)),
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func resolveGroup(acronym string) (*int, error) {
	acronym = utils.SanitizeInput(acronym)
	if acronym == "" {
		return nil, nil
	}
	var group models.Group
	if err := config.DB.Where("acronym = ?", acronym).First(&group).Error; err != nil {
		return nil, fmt.Errorf("unknown group %q", acronym)
	}
	return &group.GroupID, nil
}

func splitField(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetSubmissionStatus returns the submitter's view: state, files, events
// and the latest check per checker. Access is by unguessable token only.
func GetSubmissionStatus(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access token is required"})
		return
	}

	sub, err := deps.Submissions.GetByToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}
	if id, err := strconv.Atoi(c.Param("id")); err != nil || id != sub.SubmissionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

// ConfirmSubmission consumes a signed confirmation link and posts the
// submission. Only the two confirmation-waiting states accept it.
func ConfirmSubmission(c *gin.Context) {
	submissionID, err := services.ParseConfirmationToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if id, err := strconv.Atoi(c.Param("id")); err != nil || id != submissionID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "confirmation token does not match this submission"})
		return
	}

	var sub models.Submission
	if err := config.DB.First(&sub, submissionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}
	if sub.State != models.SubmissionAuth && sub.State != models.SubmissionAuthorApproval {
		handleServiceError(c, &services.InvalidTransitionError{
			Kind: "submission", From: sub.State, To: models.SubmissionPosted,
		})
		return
	}

	postSubmission(c, submissionID, nil, "Confirmed by author")
}

// ApproveSubmission is the privileged posting path for submissions parked
// on chair, area-director or manual approval.
func ApproveSubmission(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	var sub models.Submission
	if err := config.DB.First(&sub, submissionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}
	switch sub.State {
	case models.SubmissionGroupApproval, models.SubmissionADApproval, models.SubmissionManual:
	default:
		handleServiceError(c, &services.InvalidTransitionError{
			Kind: "submission", From: sub.State, To: models.SubmissionPosted,
		})
		return
	}

	postSubmission(c, submissionID, currentUserID(c), "Approved and posted")
}

// RequestManualPost is the operator override: it pulls a submission out
// of whatever non-terminal state it is in and parks it for manual
// handling, alerting the secretariat.
func RequestManualPost(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	reason := c.Query("reason")
	if reason == "" {
		reason = "operator requested manual handling"
	}

	sub, err := deps.Submissions.Transition(c.Request.Context(), submissionID,
		models.SubmissionManual, currentUserID(c), fmt.Sprintf("Moved to manual handling: %s", reason))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var operators []string
	if err := config.DB.Model(&models.User{}).
		Where("role_id = ? AND deleted_at IS NULL", models.RoleSecretariat).
		Pluck("email", &operators).Error; err == nil && len(operators) > 0 {
		if nerr := deps.Notifier.ManualPostRequest(sub, operators, reason); nerr != nil {
			log.Printf("manual post request for submission %d not delivered: %v", submissionID, nerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"state": sub.State})
}

func postSubmission(c *gin.Context, submissionID int, byUserID *int, reason string) {
	event, err := deps.Poster.Post(c.Request.Context(), submissionID, byUserID, reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var doc models.Document
	if err := config.DB.First(&doc, event.DocumentID).Error; err == nil {
		if nerr := deps.Notifier.NewRevisionAnnouncement(&doc, append(doc.AuthorList(), doc.NotifyList()...)); nerr != nil {
			log.Printf("new revision announcement for %s-%s not delivered: %v", doc.Name, doc.Rev, nerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"state":       models.SubmissionPosted,
		"document_id": event.DocumentID,
		"rev":         event.Rev,
	})
}

// CancelSubmission cancels an in-flight submission. The submitter proves
// ownership with the access token; operators come through the JWT route.
func CancelSubmission(c *gin.Context) {
	submissionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	byUserID := currentUserID(c)
	if byUserID == nil {
		token := c.Query("token")
		var sub models.Submission
		if token == "" || config.DB.Where("submission_id = ? AND access_token = ?", submissionID, token).First(&sub).Error != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "access token is required"})
			return
		}
	}

	reason := c.Query("reason")
	sub, err := deps.Submissions.Cancel(c.Request.Context(), submissionID, byUserID, reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sub.State})
}
