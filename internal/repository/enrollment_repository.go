package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/lms-backend/internal/model"
)

// EnrollmentRepository handles read access to course enrollments.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// IsActivePaid reports whether the student holds an ACTIVE enrollment with
// PAID status for the course. This is the gate for starting an attempt.
func (r *EnrollmentRepository) IsActivePaid(ctx context.Context, courseID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE course_id = $1 AND student_id = $2
			  AND status = $3 AND payment_status = $4
		 )`,
		courseID, studentID, model.EnrollmentStatusActive, model.PaymentStatusPaid,
	).Scan(&exists)
	return exists, err
}
