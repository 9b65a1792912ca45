package controllers

import (
	"log"
	"net/http"
	"time"

	"draft-submission-api/config"
	"draft-submission-api/models"
	"draft-submission-api/services"

	"github.com/gin-gonic/gin"
)

// OpenBallot opens a voting round on a document under review.
func OpenBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	event, err := deps.Ballots.OpenBallot(c.Request.Context(), doc.DocumentID, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ballot_id": event.EventID})
}

// CloseBallot ends the active round without approving.
func CloseBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	if _, err := deps.Ballots.CloseBallot(c.Request.Context(), doc.DocumentID, currentUserID(c)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// GetBallot returns the active round with its tally and pass threshold.
func GetBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	active, err := deps.Ballots.ActiveBallot(c.Request.Context(), doc.DocumentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if active == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document has no open ballot"})
		return
	}

	tally, err := deps.Ballots.BallotTally(c.Request.Context(), doc.DocumentID, active.EventID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var roster int64
	if err := config.DB.Model(&models.User{}).
		Where("role_id = ? AND deleted_at IS NULL", models.RoleAreaDirector).
		Count(&roster).Error; err != nil {
		handleServiceError(c, err)
		return
	}
	needed := services.NeededVotes(int(roster), tally.Recuse, doc.IntendedLevel)

	c.JSON(http.StatusOK, gin.H{
		"ballot_id":      active.EventID,
		"tally":          tally,
		"needed":         needed,
		"enough_to_pass": services.EnoughToPass(tally, needed),
	})
}

type PositionRequest struct {
	Position    string `json:"position" binding:"required"`
	DiscussText string `json:"discuss_text"`
	CommentText string `json:"comment_text"`
}

// SetBallotPosition records the caller's position on the active ballot.
func SetBallotPosition(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	balloter := currentUserID(c)
	if balloter == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := deps.Ballots.SetPosition(c.Request.Context(), doc.DocumentID, *balloter,
		req.Position, req.DiscussText, req.CommentText, balloter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"changed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": true, "event": event})
}

// DeferBallot pushes the document to the next review meeting.
func DeferBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req TelechatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	event, err := deps.Ballots.Defer(c.Request.Context(), doc.DocumentID, date, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// UndeferBallot returns a deferred document to evaluation.
func UndeferBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	event, err := deps.Ballots.Undefer(c.Request.Context(), doc.DocumentID, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// RequestLastCall moves the document into the last-call request state.
func RequestLastCall(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	event, err := deps.LastCall.RequestLastCall(c.Request.Context(), doc.DocumentID, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

type SendLastCallRequest struct {
	Expires string `json:"expires"` // YYYY-MM-DD, empty uses the default period
}

// SendLastCall confirms the last call and announces it.
func SendLastCall(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req SendLastCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expiry *time.Time
	if req.Expires != "" {
		t, err := parseDate(req.Expires)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires must be YYYY-MM-DD"})
			return
		}
		expiry = &t
	}

	event, err := deps.LastCall.SendLastCall(c.Request.Context(), doc.DocumentID, currentUserID(c), expiry)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if nerr := deps.Notifier.LastCallAnnouncement(doc, event.Text, *event.ExpiresAt, doc.NotifyList()); nerr != nil {
		log.Printf("last call announcement for %s not delivered: %v", doc.Name, nerr)
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

type WriteupRequest struct {
	Text string `json:"text"`
}

// SetBallotWriteup creates or replaces the ballot writeup text.
func SetBallotWriteup(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req WriteupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := deps.LastCall.GenerateBallotWriteup(c.Request.Context(), doc.DocumentID, req.Text, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

type ApprovalTextRequest struct {
	Decision string `json:"decision" binding:"required"`
	Text     string `json:"text"`
}

// SetApprovalText records the approval announcement writeup together with
// its routing decision.
func SetApprovalText(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req ApprovalTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := deps.Ballots.GenerateApprovalText(c.Request.Context(), doc.DocumentID, req.Decision, req.Text, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// ApproveBallot executes the approval carried by the latest approval
// writeup and announces the outcome.
func ApproveBallot(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	outcome, err := deps.Ballots.Approve(c.Request.Context(), doc.DocumentID, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if outcome.Approved {
		if nerr := deps.Notifier.ApprovalAnnouncement(doc, outcome.Announcement, doc.NotifyList()); nerr != nil {
			log.Printf("approval announcement for %s not delivered: %v", doc.Name, nerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"approved": outcome.Approved,
		"decision": outcome.Decision,
	})
}
