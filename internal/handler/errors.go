package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/common"
)

var statusByCode = map[string]int{
	common.CodeEmptyFile:       http.StatusBadRequest,
	common.CodeFileTooLarge:    http.StatusRequestEntityTooLarge,
	common.CodeInvalidFileType: http.StatusUnsupportedMediaType,
	common.CodeQuotaExceeded:   http.StatusForbidden,
	common.CodeDuplicateExam:   http.StatusConflict,
	common.CodeJobInProgress:   http.StatusConflict,
	common.CodeNotFound:        http.StatusNotFound,
	common.CodeForbidden:       http.StatusForbidden,
}

// respondError writes {"error", "code"}. Errors that are not AppErrors are
// logged and reported as internal.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		status, known := statusByCode[appErr.Code]
		if known {
			c.AbortWithStatusJSON(status, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}
	}

	logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  common.CodeInternal,
	})
}
