package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/lms-backend/internal/model"
)

// ExamRepository handles read access to exam definitions. Exam authoring is
// owned by the course-management collaborator; this subsystem only consumes
// duration, passing marks, attempt limits, and the answer key.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves one exam definition.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, duration_minutes, passing_marks, max_attempts, total_marks, status, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.CourseID, &e.Title, &e.DurationMinutes, &e.PassingMarks,
		&e.MaxAttempts, &e.TotalMarks, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetAnswerKey loads the grading view of an exam's questions.
func (r *ExamRepository) GetAnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, correct_option, marks
		 FROM questions
		 WHERE exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(model.AnswerKey)
	for rows.Next() {
		var (
			id    uuid.UUID
			qType model.QuestionType
			entry model.AnswerKeyEntry
		)
		if err := rows.Scan(&id, &qType, &entry.CorrectOption, &entry.Marks); err != nil {
			return nil, err
		}
		entry.AutoGradable = qType.AutoGradable()
		key[id] = entry
	}
	return key, rows.Err()
}
