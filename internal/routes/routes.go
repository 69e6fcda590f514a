package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/idan157001/TestShuffleFinal/internal/handler"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
)

type Handlers struct {
	Upload *handler.UploadHandler
	Job    *handler.JobHandler
	WS     *handler.WSHandler
	Exam   *handler.ExamHandler
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
}

func RegisterRoutes(router *gin.RouterGroup, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	// Public routes - no authentication required
	router.GET("/healthz", h.Health.Health)
	router.GET("/auth/logout", h.Auth.Logout)

	// Protected routes - authentication required
	protected := router.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/auth/me", h.Auth.Me)

		protected.POST("/upload-pdf", h.Upload.UploadPDF)

		protected.GET("/jobs/:job_id", h.Job.GetJob)
		protected.DELETE("/jobs/:job_id", h.Job.AckJob)
		protected.GET("/ws/:job_id", h.WS.Serve)

		exams := protected.Group("/exams")
		exams.GET("", h.Exam.ListExams)
		exams.GET("/:exam_id", h.Exam.GetExam)
		exams.DELETE("/:exam_id", h.Exam.DeleteExam)
		exams.GET("/:exam_id/export", h.Exam.ExportExam)
		exams.GET("/:exam_id/source", h.Exam.GetSourceUrl)
	}
}
