package controllers

import (
	"errors"
	"net/http"
	"time"

	"draft-submission-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// handleServiceError maps service-layer errors to HTTP responses. The
// distinct error kinds the services return become distinct status codes;
// anything unrecognized is a plain 500.
func handleServiceError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Submission rejected",
			"problems": verr.Problems,
		})
		return
	}

	var ite *services.InvalidTransitionError
	if errors.As(err, &ite) {
		c.JSON(http.StatusConflict, gin.H{"error": ite.Error()})
		return
	}

	switch {
	case errors.Is(err, services.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "duplicate"})
	case errors.Is(err, services.ErrAlreadyPosted),
		errors.Is(err, services.ErrSubmissionCancelled),
		errors.Is(err, services.ErrBallotExists),
		errors.Is(err, services.ErrDiscussNeedsText),
		errors.Is(err, services.ErrNoApprovalDecision):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoOpenBallot):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parseDate parses the YYYY-MM-DD wire format used for agenda dates.
func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}

// currentUserID returns the authenticated user id, nil on public routes.
func currentUserID(c *gin.Context) *int {
	v, exists := c.Get("userID")
	if !exists {
		return nil
	}
	id, ok := v.(int)
	if !ok {
		return nil
	}
	return &id
}
