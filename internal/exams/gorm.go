package exams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// examRow is the GORM model behind GormRepository.
type examRow struct {
	ID        string   `gorm:"primaryKey;size:36"`
	UserID    string   `gorm:"index;not null"`
	UserEmail string
	ExamName  string   `gorm:"not null"`
	FileHash  string   `gorm:"index;not null"`
	Data      ExamData `gorm:"serializer:json"`
	CreatedAt time.Time
}

func (examRow) TableName() string { return "exams" }

func (r examRow) toExam() Exam {
	return Exam{
		ID:        r.ID,
		UserID:    r.UserID,
		UserEmail: r.UserEmail,
		Name:      r.ExamName,
		FileHash:  r.FileHash,
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
	}
}

// GormRepository implements Repository using GORM. It backs local runs on
// SQLite where no Postgres is available.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates the exams table.
func (r *GormRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&examRow{})
}

func (r *GormRepository) CountByOwner(ctx context.Context, userID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&examRow{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count exams: %w", err)
	}
	return int(count), nil
}

func (r *GormRepository) ExistsForOwner(ctx context.Context, fileHash, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&examRow{}).
		Where("file_hash = ? AND user_id = ?", fileHash, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam fingerprint: %w", err)
	}
	return count > 0, nil
}

func (r *GormRepository) FindElsewhere(ctx context.Context, fileHash, userID string) (*Exam, error) {
	var row examRow
	err := r.db.WithContext(ctx).
		Where("file_hash = ? AND user_id <> ?", fileHash, userID).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up exam fingerprint: %w", err)
	}
	exam := row.toExam()
	return &exam, nil
}

func (r *GormRepository) Create(ctx context.Context, exam NewExam) (string, error) {
	row := examRow{
		ID:        uuid.NewString(),
		UserID:    exam.Owner.UserID,
		UserEmail: exam.Owner.Email,
		ExamName:  exam.Name,
		FileHash:  exam.FileHash,
		Data:      exam.Data,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create exam: %w", err)
	}
	return row.ID, nil
}

func (r *GormRepository) CopyTo(ctx context.Context, owner Owner, src *Exam) (string, error) {
	return r.Create(ctx, NewExam{
		Owner:    owner,
		FileHash: src.FileHash,
		Name:     src.Name,
		Data:     src.Data,
	})
}

func (r *GormRepository) ListByOwner(ctx context.Context, userID string) ([]Exam, error) {
	var rows []examRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	out := make([]Exam, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toExam())
	}
	return out, nil
}

func (r *GormRepository) Get(ctx context.Context, examID string) (*Exam, error) {
	var row examRow
	if err := r.db.WithContext(ctx).Where("id = ?", examID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}
	exam := row.toExam()
	return &exam, nil
}

func (r *GormRepository) Delete(ctx context.Context, userID, examID string) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", examID, userID).Delete(&examRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
