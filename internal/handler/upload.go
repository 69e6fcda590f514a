package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
	"github.com/idan157001/TestShuffleFinal/internal/service"
)

type UploadHandler struct {
	uploadService *service.Upload
	maxFileSize   int64
	logger        *zap.Logger
}

func NewUploadHandler(uploadService *service.Upload, maxFileSize int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxFileSize:   maxFileSize,
		logger:        logger,
	}
}

// UploadPDF accepts a multipart "file" field.
func (h *UploadHandler) UploadPDF(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.logger, service.ErrEmptyFile)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the size check
	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp, err := h.uploadService.Submit(c.Request.Context(), service.SubmitRequest{
		User: exams.Owner{
			UserID: middleware.GetUserID(c),
			Email:  middleware.GetUserEmail(c),
		},
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
