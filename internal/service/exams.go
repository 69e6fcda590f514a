package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/common"
	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/export"
	"github.com/idan157001/TestShuffleFinal/internal/storage"
)

const urlExpiryDuration = 15 * time.Minute

var (
	ErrExamNotFound      = common.NewAppError(common.CodeNotFound, "exam not found", common.ErrNotFound)
	ErrExamForbidden     = common.NewAppError(common.CodeForbidden, "exam belongs to another user", common.ErrForbidden)
	ErrSourceUnavailable = common.NewAppError(common.CodeNotFound, "source file is not archived", common.ErrNotFound)
)

// Presigner issues time-limited download links for archived uploads.
type Presigner interface {
	GetDownloadUrl(ctx context.Context, objectName string, duration time.Duration) (string, error)
}

type ExamSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"exam_name"`
	Questions int       `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

type GetUrlResponse struct {
	PresignedUrl string `json:"pre-signed_url"`
	ValidFor     string `json:"valid_for"`
}

// Exams serves a user's stored exams.
type Exams struct {
	repo      exams.Repository
	presigner Presigner
	logger    *zap.Logger
}

// NewExams builds the exam service. presigner may be nil.
func NewExams(repo exams.Repository, presigner Presigner, logger *zap.Logger) *Exams {
	return &Exams{repo: repo, presigner: presigner, logger: logger}
}

func (s *Exams) List(ctx context.Context, userID string) ([]ExamSummary, error) {
	list, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ExamSummary, 0, len(list))
	for _, e := range list {
		out = append(out, ExamSummary{
			ID:        e.ID,
			Name:      e.Name,
			Questions: len(e.Data.Questions),
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

// Get loads an exam owned by userID.
func (s *Exams) Get(ctx context.Context, userID, examID string) (*exams.Exam, error) {
	exam, err := s.repo.Get(ctx, examID)
	if err != nil {
		if errors.Is(err, exams.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.UserID != userID {
		return nil, ErrExamForbidden
	}
	return exam, nil
}

func (s *Exams) Delete(ctx context.Context, userID, examID string) error {
	if _, err := s.Get(ctx, userID, examID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, examID); err != nil {
		if errors.Is(err, exams.ErrNotFound) {
			return ErrExamNotFound
		}
		return err
	}
	s.logger.Info("exam deleted", zap.String("user_id", userID), zap.String("exam_id", examID))
	return nil
}

// Export renders the exam as an XLSX workbook.
func (s *Exams) Export(ctx context.Context, userID, examID string) ([]byte, *exams.Exam, error) {
	exam, err := s.Get(ctx, userID, examID)
	if err != nil {
		return nil, nil, err
	}
	data, err := export.ExamXLSX(exam)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export exam: %w", err)
	}
	return data, exam, nil
}

// SourceURL returns a presigned link to the uploaded PDF.
func (s *Exams) SourceURL(ctx context.Context, userID, examID string) (*GetUrlResponse, error) {
	if s.presigner == nil {
		return nil, ErrSourceUnavailable
	}
	exam, err := s.Get(ctx, userID, examID)
	if err != nil {
		return nil, err
	}

	presignedUrl, err := s.presigner.GetDownloadUrl(ctx, storage.GetObjectName(exam.UserID, exam.FileHash), urlExpiryDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return &GetUrlResponse{
		PresignedUrl: presignedUrl,
		ValidFor:     fmt.Sprintf("%.0f minutes", urlExpiryDuration.Minutes()),
	}, nil
}
