package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/common"
	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/extract"
	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/storage"
	"github.com/idan157001/TestShuffleFinal/internal/types"
)

const (
	pdfContentType       = "application/pdf"
	terminalWriteTimeout = 10 * time.Second
	timeoutMessage       = "extraction timed out"
)

var (
	ErrEmptyFile       = common.NewAppError(common.CodeEmptyFile, "uploaded file is empty", common.ErrInvalidInput)
	ErrFileTooLarge    = common.NewAppError(common.CodeFileTooLarge, "uploaded file exceeds the size limit", common.ErrInvalidInput)
	ErrInvalidFileType = common.NewAppError(common.CodeInvalidFileType, "only PDF files are accepted", common.ErrInvalidInput)
	ErrQuotaExceeded   = common.NewAppError(common.CodeQuotaExceeded, "exam limit reached", common.ErrForbidden)
	ErrDuplicateExam   = common.NewAppError(common.CodeDuplicateExam, "this exam was already uploaded", common.ErrConflict)
)

// Scheduler hands an extraction task to background execution.
type Scheduler interface {
	Schedule(ctx context.Context, task types.ExtractionTask) error
}

// BlobStore archives raw uploads.
type BlobStore interface {
	Put(ctx context.Context, objectName string, content []byte, contentType string) error
	Get(ctx context.Context, objectName string) ([]byte, error)
}

type UploadConfig struct {
	MaxFileSize       int64
	MaxExams          int
	ExtractionTimeout time.Duration
}

type SubmitRequest struct {
	User        exams.Owner
	FileName    string
	ContentType string
	Content     []byte
}

type SubmitResult struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// Upload validates submissions, de-duplicates them by fingerprint and runs
// extraction in the background.
type Upload struct {
	jobs      *jobs.Manager
	exams     exams.Repository
	extractor extract.Extractor
	scheduler Scheduler
	blobs     BlobStore
	cfg       UploadConfig
	logger    *zap.Logger
	newID     func() string
}

// NewUpload wires the orchestrator. blobs may be nil when uploads are not
// archived.
func NewUpload(
	jobManager *jobs.Manager,
	repo exams.Repository,
	extractor extract.Extractor,
	scheduler Scheduler,
	blobs BlobStore,
	cfg UploadConfig,
	logger *zap.Logger,
) *Upload {
	return &Upload{
		jobs:      jobManager,
		exams:     repo,
		extractor: extractor,
		scheduler: scheduler,
		blobs:     blobs,
		cfg:       cfg,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (u *Upload) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := u.validate(req); err != nil {
		return nil, err
	}

	count, err := u.exams.CountByOwner(ctx, req.User.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count exams: %w", err)
	}
	if count >= u.cfg.MaxExams {
		return nil, ErrQuotaExceeded
	}

	hash := Fingerprint(req.Content)

	exists, err := u.exams.ExistsForOwner(ctx, hash, req.User.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateExam
	}

	other, err := u.exams.FindElsewhere(ctx, hash, req.User.UserID)
	if err != nil {
		return nil, err
	}
	if other != nil {
		return u.copyExisting(ctx, req, other)
	}

	jobID := u.newID()
	if err := u.jobs.Create(ctx, jobID, req.User.UserID); err != nil {
		return nil, err
	}

	task := types.ExtractionTask{
		JobID:       jobID,
		UserID:      req.User.UserID,
		Email:       req.User.Email,
		FileHash:    hash,
		FileName:    req.FileName,
		FileSize:    int64(len(req.Content)),
		Content:     req.Content,
		SubmittedAt: time.Now().UTC(),
	}
	if objectName, ok := u.archive(ctx, req.User.UserID, hash, req.Content); ok {
		task.ObjectName = objectName
	}

	if err := u.scheduler.Schedule(ctx, task); err != nil {
		u.logger.Error("failed to schedule extraction", zap.String("job_id", jobID), zap.Error(err))
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
		defer cancel()
		if failErr := u.jobs.Fail(failCtx, jobID, req.User.UserID, "failed to schedule extraction"); failErr != nil {
			return nil, errors.Join(err, failErr)
		}
		return nil, fmt.Errorf("failed to schedule extraction: %w", err)
	}

	u.logger.Info("upload accepted",
		zap.String("job_id", jobID),
		zap.String("user_id", req.User.UserID),
		zap.String("file_hash", hash),
		zap.Int("size", len(req.Content)),
	)
	return &SubmitResult{JobID: jobID, Status: jobs.StatusProcessing}, nil
}

func (u *Upload) validate(req SubmitRequest) error {
	if len(req.Content) == 0 {
		return ErrEmptyFile
	}
	if int64(len(req.Content)) > u.cfg.MaxFileSize {
		return ErrFileTooLarge
	}
	if !strings.EqualFold(filepath.Ext(req.FileName), ".pdf") {
		return ErrInvalidFileType
	}
	if ct := strings.TrimSpace(req.ContentType); ct != "" && !strings.HasPrefix(strings.ToLower(ct), pdfContentType) {
		return ErrInvalidFileType
	}
	if !extract.IsPDF(req.Content) {
		return ErrInvalidFileType
	}
	return nil
}

// copyExisting reuses another user's extraction for identical content. The
// job is written as done straight away; nothing runs in the background.
func (u *Upload) copyExisting(ctx context.Context, req SubmitRequest, src *exams.Exam) (*SubmitResult, error) {
	examID, err := u.exams.CopyTo(ctx, req.User, src)
	if err != nil {
		return nil, err
	}

	jobID := u.newID()
	if err := u.jobs.Complete(ctx, jobID, req.User.UserID, jobs.Result{ExamID: examID, ExamName: src.Name}); err != nil {
		return nil, err
	}
	u.archive(ctx, req.User.UserID, src.FileHash, req.Content)

	u.logger.Info("upload matched existing exam",
		zap.String("job_id", jobID),
		zap.String("user_id", req.User.UserID),
		zap.String("source_exam_id", src.ID),
		zap.String("exam_id", examID),
	)
	return &SubmitResult{JobID: jobID, Status: jobs.StatusDone}, nil
}

// archive stores the raw PDF when a blob store is configured. Failures are
// logged and reported through ok.
func (u *Upload) archive(ctx context.Context, userID, hash string, content []byte) (objectName string, ok bool) {
	if u.blobs == nil {
		return "", false
	}
	objectName = storage.GetObjectName(userID, hash)
	if err := u.blobs.Put(ctx, objectName, content, pdfContentType); err != nil {
		u.logger.Warn("failed to archive upload", zap.String("object", objectName), zap.Error(err))
		return "", false
	}
	return objectName, true
}

// Process runs extraction for one task and records the terminal status.
func (u *Upload) Process(ctx context.Context, task types.ExtractionTask) error {
	if u.cfg.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.ExtractionTimeout)
		defer cancel()
	}

	result, err := u.extractAndStore(ctx, task)

	terminalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			message = timeoutMessage
		}
		if failErr := u.jobs.Fail(terminalCtx, task.JobID, task.UserID, message); failErr != nil {
			return errors.Join(err, failErr)
		}
		return err
	}

	return u.jobs.Complete(terminalCtx, task.JobID, task.UserID, *result)
}

func (u *Upload) extractAndStore(ctx context.Context, task types.ExtractionTask) (*jobs.Result, error) {
	content, err := u.loadContent(ctx, task)
	if err != nil {
		return nil, err
	}

	pages, err := extract.Inspect(content)
	if err != nil {
		if errors.Is(err, extract.ErrNotPDF) {
			return nil, err
		}
		u.logger.Warn("pdf inspection failed, continuing", zap.String("job_id", task.JobID), zap.Error(err))
	} else {
		u.logger.Debug("pdf inspected", zap.String("job_id", task.JobID), zap.Int("pages", pages))
	}

	data, err := u.extractor.Extract(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := data.DisplayName()
	examID, err := u.exams.Create(ctx, exams.NewExam{
		Owner:    exams.Owner{UserID: task.UserID, Email: task.Email},
		FileHash: task.FileHash,
		Name:     name,
		Data:     *data,
	})
	if err != nil {
		return nil, err
	}

	return &jobs.Result{ExamID: examID, ExamName: name}, nil
}

func (u *Upload) loadContent(ctx context.Context, task types.ExtractionTask) ([]byte, error) {
	if len(task.Content) > 0 {
		return task.Content, nil
	}
	if task.ObjectName == "" || u.blobs == nil {
		return nil, errors.New("extraction task carries no content")
	}
	content, err := u.blobs.Get(ctx, task.ObjectName)
	if err != nil {
		return nil, fmt.Errorf("failed to load upload: %w", err)
	}
	return content, nil
}
