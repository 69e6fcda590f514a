package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager is the only writer of job status. It persists every transition and
// pushes a best-effort notification once a job reaches a terminal status.
// The store stays authoritative: a missed push is recovered by polling.
type Manager struct {
	store    Store
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(store Store, registry *Registry, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Manager) Create(ctx context.Context, jobID, userID string) error {
	rec := Record{
		JobID:     jobID,
		Status:    StatusProcessing,
		UserID:    userID,
		UpdatedAt: m.now().UTC(),
	}
	if err := m.store.Set(ctx, rec); err != nil {
		m.logger.Error("job create failed", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to create job %s: %w", jobID, err)
	}
	m.logger.Info("job created", zap.String("job_id", jobID), zap.String("user_id", userID))
	return nil
}

// Complete marks the job done. A repeated call overwrites the record; only
// one background task is ever scheduled per job id.
func (m *Manager) Complete(ctx context.Context, jobID, userID string, result Result) error {
	rec := Record{
		JobID:     jobID,
		Status:    StatusDone,
		UserID:    userID,
		Result:    &result,
		UpdatedAt: m.now().UTC(),
	}
	if err := m.store.Set(ctx, rec); err != nil {
		m.logger.Error("job complete failed", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	m.logger.Info("job done", zap.String("job_id", jobID), zap.String("exam_id", result.ExamID))
	m.notify(ctx, jobID, StatusDone)
	return nil
}

func (m *Manager) Fail(ctx context.Context, jobID, userID, message string) error {
	rec := Record{
		JobID:     jobID,
		Status:    StatusError,
		UserID:    userID,
		Error:     message,
		UpdatedAt: m.now().UTC(),
	}
	if err := m.store.Set(ctx, rec); err != nil {
		m.logger.Error("job fail write failed", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to mark job %s as error: %w", jobID, err)
	}
	m.logger.Warn("job failed", zap.String("job_id", jobID), zap.String("error", message))
	m.notify(ctx, jobID, StatusError)
	return nil
}

func (m *Manager) Get(ctx context.Context, jobID string) (*Record, error) {
	rec, err := m.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return rec, nil
}

// Authorize loads the job and checks that userID owns it.
func (m *Manager) Authorize(ctx context.Context, jobID, userID string) (*Record, error) {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// Delete removes the record after the client acknowledged the result.
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	if err := m.store.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	m.logger.Debug("job acknowledged", zap.String("job_id", jobID))
	return nil
}

func (m *Manager) notify(ctx context.Context, jobID string, status Status) {
	if m.registry == nil {
		return
	}
	ch, ok := m.registry.Lookup(jobID)
	if !ok {
		return
	}
	if err := ch.Send(ctx, string(status)); err != nil {
		m.logger.Debug("job notification dropped", zap.String("job_id", jobID), zap.Error(err))
	}
}
