package routes

import (
	"draft-submission-api/controllers"
	"draft-submission-api/middleware"
	"draft-submission-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Draft Submission API is running",
				})
			})

			// Submission intake and the token-authenticated submitter surface
			public.POST("/submissions", controllers.CreateSubmission)
			public.GET("/submissions/:id/status", controllers.GetSubmissionStatus)
			public.POST("/submissions/:id/confirm", controllers.ConfirmSubmission)
			public.POST("/submissions/:id/cancel", controllers.CancelSubmission)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)

			// Submission approval paths
			submissions := protected.Group("/submissions")
			{
				submissions.POST("/:id/approve",
					middleware.RequireRole(models.RoleChair, models.RoleAreaDirector, models.RoleSecretariat),
					controllers.ApproveSubmission)
				submissions.POST("/:id/manual",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.RequestManualPost)
			}

			// Documents and their review workflow
			documents := protected.Group("/documents")
			{
				documents.GET("/:name", controllers.GetDocument)
				documents.GET("/:name/history", controllers.GetDocumentHistory)

				documents.PUT("/:name/state",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.SetDocumentState)
				documents.PUT("/:name/tag",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.SetDocumentTag)
				documents.PUT("/:name/consensus",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.SetDocumentConsensus)
				documents.POST("/:name/telechat",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.ScheduleTelechat)

				// Last call
				documents.POST("/:name/last-call/request",
					middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
					controllers.RequestLastCall)
				documents.POST("/:name/last-call/send",
					middleware.RequireRole(models.RoleSecretariat),
					controllers.SendLastCall)

				// Ballot
				ballot := documents.Group("/:name/ballot")
				{
					ballot.GET("", controllers.GetBallot)
					ballot.POST("",
						middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
						controllers.OpenBallot)
					ballot.DELETE("",
						middleware.RequireRole(models.RoleSecretariat),
						controllers.CloseBallot)
					ballot.PUT("/position",
						middleware.RequireRole(models.RoleAreaDirector),
						controllers.SetBallotPosition)
					ballot.POST("/defer",
						middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
						controllers.DeferBallot)
					ballot.POST("/undefer",
						middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
						controllers.UndeferBallot)
					ballot.PUT("/writeup",
						middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
						controllers.SetBallotWriteup)
					ballot.PUT("/approval-text",
						middleware.RequireRole(models.RoleAreaDirector, models.RoleSecretariat),
						controllers.SetApprovalText)
					ballot.POST("/approve",
						middleware.RequireRole(models.RoleSecretariat),
						controllers.ApproveBallot)
				}
			}
		}
	}
}
