package repository

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/lms-backend/internal/model"
)

// attemptColumns is the canonical select list for exam_attempts rows.
const attemptColumns = `
	id, exam_id, student_id, course_id, attempt_number,
	start_time, end_time, submitted_at, time_taken_seconds,
	status, answers,
	total_marks, obtained_marks, percentage, passed,
	violations, total_violations, tab_switch_count, fullscreen_exits, time_outside_ms,
	last_heartbeat, heartbeat_missed,
	disqualified_at, disqualified_reason, auto_submit_reason,
	result_published, result_published_at,
	created_at, updated_at`

// AttemptRepository handles exam attempt data access. All status-changing
// writes are conditional on the expected pre-state so concurrent transitions
// (student submit racing the sweep) cannot double-apply.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := row.Scan(
		&a.ID, &a.ExamID, &a.StudentID, &a.CourseID, &a.AttemptNumber,
		&a.StartTime, &a.EndTime, &a.SubmittedAt, &a.TimeTakenSeconds,
		&a.Status, &a.Answers,
		&a.TotalMarks, &a.ObtainedMarks, &a.Percentage, &a.Passed,
		&a.Violations, &a.TotalViolations, &a.TabSwitchCount, &a.FullscreenExits, &a.TimeOutsideMs,
		&a.LastHeartbeat, &a.HeartbeatMissed,
		&a.DisqualifiedAt, &a.DisqualifiedReason, &a.AutoSubmitReason,
		&a.ResultPublished, &a.ResultPublishedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt. The attempt number is assigned in SQL as
// priorCount+1 for the (exam, student) pair; the partial unique index on
// active statuses makes concurrent starts collide, in which case no row is
// returned and the caller sees pgx.ErrNoRows.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts
			(exam_id, student_id, course_id, attempt_number, start_time, end_time, status, answers, violations, total_marks)
		 SELECT $1, $2, $3, COALESCE(MAX(attempt_number), 0) + 1, $4, $5, $6, '[]'::jsonb, '[]'::jsonb, $7
		 FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2
		 ON CONFLICT DO NOTHING
		 RETURNING id, attempt_number, created_at, updated_at`,
		a.ExamID, a.StudentID, a.CourseID, a.StartTime, a.EndTime, a.Status, a.TotalMarks,
	).Scan(&a.ID, &a.AttemptNumber, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves one attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// GetActive retrieves the single NOT_STARTED/IN_PROGRESS attempt for the
// (exam, student) pair, if any.
func (r *AttemptRepository) GetActive(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status = ANY($3)`,
		examID, studentID, statusStrings(model.ActiveStatuses)))
}

// CountByExamAndStudent returns how many attempts exist for the pair,
// regardless of status.
func (r *AttemptRepository) CountByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID,
	).Scan(&n)
	return n, err
}

// Update persists the full mutable snapshot, guarded by the expected
// pre-states. Zero rows updated means the attempt moved out from under the
// caller; that is surfaced as pgx.ErrNoRows so the service can re-fetch.
func (r *AttemptRepository) Update(ctx context.Context, a *model.ExamAttempt, expected ...model.AttemptStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET
			submitted_at = $2, time_taken_seconds = $3,
			status = $4, answers = $5,
			obtained_marks = $6, percentage = $7, passed = $8,
			violations = $9, total_violations = $10,
			tab_switch_count = $11, fullscreen_exits = $12, time_outside_ms = $13,
			last_heartbeat = $14, heartbeat_missed = $15,
			disqualified_at = $16, disqualified_reason = $17, auto_submit_reason = $18,
			result_published = $19, result_published_at = $20,
			updated_at = NOW()
		 WHERE id = $1 AND status = ANY($21)`,
		a.ID,
		a.SubmittedAt, a.TimeTakenSeconds,
		a.Status, a.Answers,
		a.ObtainedMarks, a.Percentage, a.Passed,
		a.Violations, a.TotalViolations,
		a.TabSwitchCount, a.FullscreenExits, a.TimeOutsideMs,
		a.LastHeartbeat, a.HeartbeatMissed,
		a.DisqualifiedAt, a.DisqualifiedReason, a.AutoSubmitReason,
		a.ResultPublished, a.ResultPublishedAt,
		statusStrings(expected),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetResultPublished flips result visibility without touching any other
// field; allowed on terminal attempts (grading gate, not a lifecycle write).
func (r *AttemptRepository) SetResultPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET result_published = TRUE, result_published_at = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, publishedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByStudent retrieves a student's attempts for one exam, oldest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY attempt_number ASC`,
		examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListByExam retrieves all attempts for an exam with pagination, for the
// teacher/admin review surface.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamAttempt, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE exam_id = $1
		 ORDER BY student_id ASC, attempt_number ASC
		 LIMIT $2 OFFSET $3`,
		examID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts, err := collectAttempts(rows)
	return attempts, total, err
}

// ListOverdue returns attempts still in an active state whose exam window
// has closed. The sweep drains these in batches.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE status = ANY($1) AND end_time < $2
		 ORDER BY end_time ASC
		 LIMIT $3`,
		statusStrings(model.ActiveStatuses), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListHeartbeatStale returns IN_PROGRESS attempts whose last heartbeat is
// older than the cutoff. Attempts that never sent a beat count from their
// start time.
func (r *AttemptRepository) ListHeartbeatStale(ctx context.Context, cutoff time.Time, limit int) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE status = $1
		   AND (last_heartbeat < $2 OR (last_heartbeat IS NULL AND start_time < $2))
		 ORDER BY start_time ASC
		 LIMIT $3`,
		model.AttemptStatusInProgress, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// AbandonStale marks NOT_STARTED attempts created before the cutoff as
// ABANDONED. Returns the number of rows transitioned.
func (r *AttemptRepository) AbandonStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND created_at < $3`,
		model.AttemptStatusAbandoned, model.AttemptStatusNotStarted, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// PurgeAbandoned physically deletes ABANDONED attempts past the retention
// window. The only place attempts are ever deleted.
func (r *AttemptRepository) PurgeAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM exam_attempts WHERE status = $1 AND created_at < $2`,
		model.AttemptStatusAbandoned, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Stats computes the exam aggregate in a single pass over graded terminal
// attempts (SUBMITTED and AUTO_SUBMITTED).
func (r *AttemptRepository) Stats(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	s := &model.ExamStats{ExamID: examID}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COALESCE(AVG(percentage), 0),
			COALESCE(MAX(percentage), 0),
			COALESCE(MIN(percentage), 0),
			COALESCE(AVG(time_taken_seconds), 0),
			COUNT(*) FILTER (WHERE passed),
			COALESCE(AVG(total_violations), 0)
		 FROM exam_attempts
		 WHERE exam_id = $1 AND status = ANY($2)`,
		examID,
		statusStrings([]model.AttemptStatus{model.AttemptStatusSubmitted, model.AttemptStatusAutoSubmitted}),
	).Scan(
		&s.AttemptCount, &s.AveragePercentage, &s.HighestPercentage, &s.LowestPercentage,
		&s.AverageTimeTaken, &s.PassCount, &s.AverageViolations,
	)
	if err != nil {
		return nil, err
	}
	s.AveragePercentage = round2(s.AveragePercentage)
	s.HighestPercentage = round2(s.HighestPercentage)
	s.LowestPercentage = round2(s.LowestPercentage)
	s.AverageTimeTaken = round2(s.AverageTimeTaken)
	s.AverageViolations = round2(s.AverageViolations)
	return s, nil
}

func collectAttempts(rows pgx.Rows) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func statusStrings(statuses []model.AttemptStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
