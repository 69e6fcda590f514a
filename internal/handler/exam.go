package handler

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/middleware"
	"github.com/idan157001/TestShuffleFinal/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

type ExamHandler struct {
	examService *service.Exams
	logger      *zap.Logger
}

func NewExamHandler(examService *service.Exams, logger *zap.Logger) *ExamHandler {
	return &ExamHandler{examService: examService, logger: logger}
}

func (h *ExamHandler) ListExams(c *gin.Context) {
	list, err := h.examService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exams": list})
}

func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.examService.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("exam_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) DeleteExam(c *gin.Context) {
	if err := h.examService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("exam_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ExamHandler) ExportExam(c *gin.Context) {
	data, exam, err := h.examService.Export(c.Request.Context(), middleware.GetUserID(c), c.Param("exam_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := unsafeFileChars.ReplaceAllString(exam.Name, "_")
	if filename == "" || filename == "_" {
		filename = "exam"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *ExamHandler) GetSourceUrl(c *gin.Context) {
	resp, err := h.examService.SourceURL(c.Request.Context(), middleware.GetUserID(c), c.Param("exam_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
