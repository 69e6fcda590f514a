package exams

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores exams in the exams table. The data column is
// jsonb; pgx encodes and decodes ExamData through encoding/json.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const examColumns = `id::text, user_id, user_email, exam_name, file_hash, data, created_at`

func (r *PostgresRepository) CountByOwner(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM exams WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count exams: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) ExistsForOwner(ctx context.Context, fileHash, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exams WHERE file_hash = $1 AND user_id = $2)`,
		fileHash, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check exam fingerprint: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindElsewhere(ctx context.Context, fileHash, userID string) (*Exam, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE file_hash = $1 AND user_id <> $2 ORDER BY created_at LIMIT 1`,
		fileHash, userID,
	)
	exam, err := scanExam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up exam fingerprint: %w", err)
	}
	return exam, nil
}

func (r *PostgresRepository) Create(ctx context.Context, exam NewExam) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exams (id, user_id, user_email, exam_name, file_hash, data) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, exam.Owner.UserID, exam.Owner.Email, exam.Name, exam.FileHash, exam.Data,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create exam: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) CopyTo(ctx context.Context, owner Owner, src *Exam) (string, error) {
	return r.Create(ctx, NewExam{
		Owner:    owner,
		FileHash: src.FileHash,
		Name:     src.Name,
		Data:     src.Data,
	})
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	defer rows.Close()

	var out []Exam
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam: %w", err)
		}
		out = append(out, *exam)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, examID string) (*Exam, error) {
	if _, err := uuid.Parse(examID); err != nil {
		return nil, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, examID)
	exam, err := scanExam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}
	return exam, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, examID string) error {
	if _, err := uuid.Parse(examID); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1 AND user_id = $2`, examID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanExam(row pgx.Row) (*Exam, error) {
	var (
		exam  Exam
		email *string
	)
	if err := row.Scan(&exam.ID, &exam.UserID, &email, &exam.Name, &exam.FileHash, &exam.Data, &exam.CreatedAt); err != nil {
		return nil, err
	}
	if email != nil {
		exam.UserEmail = *email
	}
	return &exam, nil
}
