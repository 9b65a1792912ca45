package controllers

import (
	"net/http"

	"draft-submission-api/config"
	"draft-submission-api/models"

	"github.com/gin-gonic/gin"
)

// findDocument loads the document named in the route, or writes the 404.
func findDocument(c *gin.Context) (*models.Document, bool) {
	var doc models.Document
	err := config.DB.Preload("Group").
		Where("name = ?", c.Param("name")).
		First(&doc).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return nil, false
	}
	return &doc, true
}

// GetDocument returns the document with its current states and tags.
func GetDocument(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	draftState, err := deps.DocStates.CurrentState(c.Request.Context(), doc.DocumentID, models.StateTypeDraft)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	iesgState, err := deps.DocStates.CurrentState(c.Request.Context(), doc.DocumentID, models.StateTypeIESG)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	tags, err := deps.DocStates.Tags(c.Request.Context(), doc.DocumentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document":    doc,
		"draft_state": draftState,
		"iesg_state":  iesgState,
		"tags":        tags,
	})
}

// GetDocumentHistory returns the full event log, oldest first.
func GetDocumentHistory(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	events, err := deps.Events.All(doc.DocumentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type SetStateRequest struct {
	StateType string `json:"state_type" binding:"required"`
	State     string `json:"state" binding:"required"`
	Force     bool   `json:"force"`
}

// SetDocumentState transitions the document along its state graph. Force
// is honored only for the secretariat; everyone else stays on the graph.
func SetDocumentState(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req SetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	force := req.Force
	if roleID, _ := c.Get("roleID"); force && roleID != models.RoleSecretariat {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the secretariat may force a transition"})
		return
	}

	from, err := deps.DocStates.CurrentState(c.Request.Context(), doc.DocumentID, req.StateType)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	event, err := deps.DocStates.SetState(c.Request.Context(), doc.DocumentID, req.StateType, req.State, currentUserID(c), force)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if event == nil {
		// Same state; nothing happened.
		c.JSON(http.StatusOK, gin.H{"state": req.State, "changed": false})
		return
	}

	fromSlug := "(none)"
	if from != nil {
		fromSlug = from.Slug
	}
	if err := deps.Notifier.StateChangeNotice(doc, fromSlug, req.State); err != nil {
		// The transition already committed; the notice is advisory.
		c.JSON(http.StatusOK, gin.H{"state": req.State, "changed": true, "notice": "state change notice not delivered"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": req.State, "changed": true})
}

type SetTagRequest struct {
	Tag string `json:"tag"` // empty clears the stall tags
}

// SetDocumentTag attaches one stall tag, replacing any other.
func SetDocumentTag(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req SetTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := deps.DocStates.SetStallTag(c.Request.Context(), doc.DocumentID, req.Tag, currentUserID(c)); err != nil {
		handleServiceError(c, err)
		return
	}

	tags, err := deps.DocStates.Tags(c.Request.Context(), doc.DocumentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

type SetConsensusRequest struct {
	Consensus *bool `json:"consensus" binding:"required"`
}

// SetDocumentConsensus records the working-group consensus flag.
func SetDocumentConsensus(c *gin.Context) {
	doc, ok := findDocument(c)
	if !ok {
		return
	}

	var req SetConsensusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := deps.DocStates.SetConsensus(c.Request.Context(), doc.DocumentID, *req.Consensus, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

type TelechatRequest struct {
	Date          string `json:"date" binding:"required"` // YYYY-MM-DD
	ReturningItem bool   `json:"returning_item"`
}

// ScheduleTelechat places the document on a review meeting agenda.
func ScheduleTelechat(c *gin.Context) {
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

	event, err := deps.DocStates.ScheduleTelechat(c.Request.Context(), doc.DocumentID, date, req.ReturningItem, currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}
