package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/common"
	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
)

var (
	errJobNotFound  = common.NewAppError(common.CodeNotFound, "job not found", common.ErrNotFound)
	errJobForbidden = common.NewAppError(common.CodeForbidden, "job belongs to another user", common.ErrForbidden)
	errJobRunning   = common.NewAppError(common.CodeJobInProgress, "job is still processing", common.ErrConflict)
)

func jobError(err error) error {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return errJobNotFound
	case errors.Is(err, jobs.ErrForbidden):
		return errJobForbidden
	default:
		return err
	}
}

type JobHandler struct {
	jobs   *jobs.Manager
	logger *zap.Logger
}

func NewJobHandler(manager *jobs.Manager, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: manager, logger: logger}
}

func (h *JobHandler) GetJob(c *gin.Context) {
	rec, err := h.jobs.Authorize(c.Request.Context(), c.Param("job_id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, jobError(err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AckJob deletes a finished job record once the client has seen its result.
func (h *JobHandler) AckJob(c *gin.Context) {
	jobID := c.Param("job_id")
	rec, err := h.jobs.Authorize(c.Request.Context(), jobID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, jobError(err))
		return
	}
	if !rec.Status.Terminal() {
		respondError(c, h.logger, errJobRunning)
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), jobID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
