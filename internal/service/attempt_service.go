package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/lms-backend/internal/config"
	"github.com/stemsi/lms-backend/internal/model"
)

// sweepBatchSize bounds how many attempts a single sweep pass loads.
const sweepBatchSize = 200

// AttemptStore is the persistence contract for exam attempts. Update must be
// conditional on the expected pre-states and surface pgx.ErrNoRows when the
// attempt moved concurrently.
type AttemptStore interface {
	Create(ctx context.Context, a *model.ExamAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	GetActive(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error)
	CountByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (int, error)
	Update(ctx context.Context, a *model.ExamAttempt, expected ...model.AttemptStatus) error
	SetResultPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	ListByStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamAttempt, int64, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error)
	ListHeartbeatStale(ctx context.Context, cutoff time.Time, limit int) ([]model.ExamAttempt, error)
	AbandonStale(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error)
}

// ExamStore is the read contract against the exam-definition collaborator.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetAnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error)
}

// EnrollmentStore is the read contract against the course-enrollment collaborator.
type EnrollmentStore interface {
	IsActivePaid(ctx context.Context, courseID uuid.UUID, studentID int) (bool, error)
}

// ViolationEvent is the audit-queue payload for one accepted violation.
type ViolationEvent struct {
	AttemptID  string `json:"attempt_id"`
	ExamID     string `json:"exam_id"`
	StudentID  int    `json:"student_id"`
	Type       string `json:"type"`
	Details    string `json:"details,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// AttemptService is the single authority over attempt lifecycle state. Only
// this service writes `status`; every transition is validated here and
// applied with a status precondition at the store layer.
type AttemptService struct {
	attempts    AttemptStore
	exams       ExamStore
	enrollments EnrollmentStore
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
	clock       func() time.Time
}

// NewAttemptService creates a new AttemptService. rdb carries the liveness
// cache and the violation audit queue; it may be nil in tests.
func NewAttemptService(
	attempts AttemptStore,
	exams ExamStore,
	enrollments EnrollmentStore,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		exams:       exams,
		enrollments: enrollments,
		rdb:         rdb,
		cfg:         cfg,
		log:         log.With().Str("component", "attempt_service").Logger(),
		clock:       time.Now,
	}
}

// ─── Lifecycle operations ───────────────────────────────────────────────────

// StartAttempt creates a fresh attempt for the (exam, student) pair.
// The attempt starts NOT_STARTED with its timing window fixed from the exam
// duration; the first client activity promotes it to IN_PROGRESS.
func (s *AttemptService) StartAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotPublished
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	enrolled, err := s.enrollments.IsActivePaid(ctx, exam.CourseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	// Pre-checks give clean errors; the partial unique index on active
	// statuses is the actual guard against concurrent starts.
	if _, err := s.attempts.GetActive(ctx, examID, studentID); err == nil {
		return nil, ErrAlreadyActive
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active attempt: %w", err)
	}

	prior, err := s.attempts.CountByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if exam.MaxAttempts > 0 && prior >= exam.MaxAttempts {
		return nil, ErrAttemptLimitExceeded
	}

	now := s.clock()
	a := &model.ExamAttempt{
		ExamID:     examID,
		StudentID:  studentID,
		CourseID:   exam.CourseID,
		StartTime:  now,
		EndTime:    now.Add(exam.Duration()),
		Status:     model.AttemptStatusNotStarted,
		Answers:    []model.Answer{},
		Violations: []model.Violation{},
		TotalMarks: exam.TotalMarks,
	}

	if err := s.attempts.Create(ctx, a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start won the race.
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Pointer for reconnecting clients; expires with the exam window.
	if s.rdb != nil {
		key := config.CacheKey.StudentActiveAttemptKey(examID.String(), studentID)
		if cerr := s.rdb.Set(ctx, key, a.ID.String(), exam.Duration()+time.Hour).Err(); cerr != nil {
			s.log.Warn().Err(cerr).Str("attempt_id", a.ID.String()).Msg("Active attempt cache write failed")
		}
	}

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Int("attempt_number", a.AttemptNumber).
		Msg("Attempt started")

	return a, nil
}

// RecordAnswer upserts one answer by question ID, grades it against the
// answer key where the question type allows, and recomputes the score.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID uuid.UUID, studentID int, req *model.RecordAnswerRequest) (*model.ExamAttempt, error) {
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}

	return s.mutate(ctx, attemptID, studentID, func(a *model.ExamAttempt, now time.Time) error {
		exam, err := s.exams.GetByID(ctx, a.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}
		key, err := s.loadAnswerKey(ctx, a.ExamID)
		if err != nil {
			return fmt.Errorf("get answer key: %w", err)
		}
		entry, ok := key[questionID]
		if !ok {
			return ErrQuestionNotFound
		}

		ans := a.AnswerFor(questionID)
		if ans == nil {
			a.Answers = append(a.Answers, model.Answer{QuestionID: questionID})
			ans = &a.Answers[len(a.Answers)-1]
		}
		ans.SelectedOption = req.SelectedOption
		ans.TextAnswer = req.TextAnswer
		ans.FileURL = req.FileURL

		GradeAnswer(entry, ans)
		ApplyScore(a, exam.PassingMarks)
		return nil
	})
}

// RecordViolation appends one event to the attempt's violation ledger,
// recomputes the rollups, and evaluates the disqualification policy
// synchronously. A policy-triggered transition (DISQUALIFIED or
// VIOLATION_LIMIT auto-submit) is a successful write, not an error; callers
// must inspect the returned attempt's status.
func (s *AttemptService) RecordViolation(ctx context.Context, attemptID uuid.UUID, studentID int, req *model.RecordViolationRequest) (*model.ExamAttempt, error) {
	vType := model.ViolationType(req.Type)
	if !vType.Valid() {
		return nil, ErrInvalidViolation
	}

	var recorded *model.Violation
	a, err := s.mutate(ctx, attemptID, studentID, func(a *model.ExamAttempt, now time.Time) error {
		a.Violations = append(a.Violations, model.Violation{
			Type:       vType,
			At:         now,
			Details:    req.Details,
			DurationMs: req.DurationMs,
		})
		recorded = &a.Violations[len(a.Violations)-1]
		RecomputeViolationRollups(a)

		if a.TimeOutsideMs > s.cfg.MaxOutsideMs {
			return s.disqualify(ctx, a, now, fmt.Sprintf(
				"time outside the exam view exceeded the allowed limit (%d ms > %d ms)",
				a.TimeOutsideMs, s.cfg.MaxOutsideMs))
		}
		if s.cfg.MaxViolations > 0 && a.TotalViolations > s.cfg.MaxViolations {
			return s.finalize(ctx, a, now, model.AutoSubmitViolationLimit)
		}
		return nil
	})
	if err != nil {
		return a, err
	}

	s.enqueueViolation(ctx, a, recorded)
	return a, nil
}

// Heartbeat records a liveness ping: refreshes lastHeartbeat and resets the
// consecutive-miss counter.
func (s *AttemptService) Heartbeat(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	a, err := s.mutate(ctx, attemptID, studentID, func(a *model.ExamAttempt, now time.Time) error {
		a.LastHeartbeat = &now
		a.HeartbeatMissed = 0
		return nil
	})
	if err != nil {
		return a, err
	}

	// Fast-path liveness cache for monitors; the row is the source of truth.
	if s.rdb != nil {
		key := config.CacheKey.AttemptHeartbeatKey(a.ID.String())
		if cerr := s.rdb.Set(ctx, key, a.LastHeartbeat.Unix(), 2*s.cfg.HeartbeatTimeout).Err(); cerr != nil {
			s.log.Warn().Err(cerr).Str("attempt_id", a.ID.String()).Msg("Heartbeat cache write failed")
		}
	}
	return a, nil
}

// Submit closes an attempt and computes its final score. Idempotent: a
// terminal attempt is returned unchanged, so duplicate submits (network
// retries, a student submit racing the sweep) are safe. reason is empty for
// a student-initiated submit; a student submit after the window closes is
// recorded as AUTO_SUBMITTED/TIME_EXPIRED.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int, reason model.AutoSubmitReason) (*model.ExamAttempt, error) {
	a, err := s.getOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return a, nil
	}

	now := s.clock()
	prev := a.Status

	if a.Status == model.AttemptStatusNotStarted && a.Overdue(now) {
		// Never started and the window is gone: nothing to grade.
		a.Status = model.AttemptStatusExpired
	} else {
		if reason == "" && a.Overdue(now) {
			reason = model.AutoSubmitTimeExpired
		}
		if err := s.finalize(ctx, a, now, reason); err != nil {
			return nil, err
		}
	}

	saved, err := s.save(ctx, a, prev)
	if errors.Is(err, ErrStaleAttempt) {
		// Another writer closed the attempt first; that outcome stands.
		return saved, nil
	}
	return saved, err
}

// ExpireOverdueAttempts force-closes every active attempt whose end time has
// passed. Safe to run concurrently and repeatedly: each transition is
// guarded by its status precondition, so a second pass sees nothing to do.
// Returns the number of attempts transitioned.
func (s *AttemptService) ExpireOverdueAttempts(ctx context.Context) (int, error) {
	now := s.clock()
	overdue, err := s.attempts.ListOverdue(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	expired := 0
	for i := range overdue {
		if _, err := s.Submit(ctx, overdue[i].ID, 0, model.AutoSubmitTimeExpired); err != nil {
			if errors.Is(err, ErrNotActive) || errors.Is(err, ErrStaleAttempt) {
				continue // Lost the race to another writer; already closed.
			}
			s.log.Error().Err(err).Str("attempt_id", overdue[i].ID.String()).Msg("Expire failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// CheckHeartbeats marks a missed beat on every IN_PROGRESS attempt that has
// been silent past the heartbeat timeout, recording a HEARTBEAT_MISSED
// violation each time. Crossing the missed-beat limit auto-submits with
// HEARTBEAT_TIMEOUT. Returns the number of attempts touched.
func (s *AttemptService) CheckHeartbeats(ctx context.Context) (int, error) {
	now := s.clock()
	cutoff := now.Add(-s.cfg.HeartbeatTimeout)
	stale, err := s.attempts.ListHeartbeatStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list heartbeat-stale: %w", err)
	}

	touched := 0
	for i := range stale {
		a := &stale[i]
		prev := a.Status

		a.HeartbeatMissed++
		a.Violations = append(a.Violations, model.Violation{
			Type:    model.ViolationHeartbeatMissed,
			At:      now,
			Details: fmt.Sprintf("no heartbeat for over %s (miss %d)", s.cfg.HeartbeatTimeout, a.HeartbeatMissed),
		})
		RecomputeViolationRollups(a)

		if a.HeartbeatMissed >= s.cfg.MaxMissedHeartbeats {
			if err := s.finalize(ctx, a, now, model.AutoSubmitHeartbeatTimeout); err != nil {
				s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Heartbeat finalize failed")
				continue
			}
		}

		if _, err := s.save(ctx, a, prev); err != nil {
			if errors.Is(err, ErrNotActive) || errors.Is(err, ErrStaleAttempt) {
				continue
			}
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Heartbeat sweep update failed")
			continue
		}
		touched++
	}
	return touched, nil
}

// AbandonStaleAttempts moves NOT_STARTED attempts past the staleness window
// to ABANDONED and purges abandoned rows past the retention window. Returns
// (abandoned, purged).
func (s *AttemptService) AbandonStaleAttempts(ctx context.Context) (int64, int64, error) {
	now := s.clock()

	abandoned, err := s.attempts.AbandonStale(ctx, now.Add(-s.cfg.AttemptStaleAfter))
	if err != nil {
		return 0, 0, fmt.Errorf("abandon stale: %w", err)
	}

	purged, err := s.attempts.PurgeAbandoned(ctx, now.Add(-s.cfg.AttemptRetention))
	if err != nil {
		return abandoned, 0, fmt.Errorf("purge abandoned: %w", err)
	}
	return abandoned, purged, nil
}

// ─── Grading & result visibility ────────────────────────────────────────────

// RegradeAnswer lets a grader score a manually-reviewed answer on a closed
// attempt. The final score is re-derived from the answers; violations,
// timing, and liveness fields are untouched, so a regrade is idempotent.
func (s *AttemptService) RegradeAnswer(ctx context.Context, attemptID uuid.UUID, graderID int, req *model.RegradeAnswerRequest) (*model.ExamAttempt, error) {
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}

	a, err := s.getOwned(ctx, attemptID, 0)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusSubmitted && a.Status != model.AttemptStatusAutoSubmitted {
		return nil, ErrNotActive
	}

	ans := a.AnswerFor(questionID)
	if ans == nil {
		return nil, ErrQuestionNotFound
	}

	now := s.clock()
	ans.MarksObtained = req.MarksObtained
	ans.IsCorrect = req.IsCorrect
	ans.NeedsReview = false
	ans.GradedBy = &graderID
	ans.GradedAt = &now
	if req.Note != "" {
		note := req.Note
		ans.GraderNote = &note
	}

	exam, err := s.exams.GetByID(ctx, a.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	ApplyScore(a, exam.PassingMarks)

	return s.save(ctx, a, a.Status)
}

// PublishResult makes the attempt's result visible to the student. Gated
// separately from scoring so grading can finish before release.
func (s *AttemptService) PublishResult(ctx context.Context, attemptID uuid.UUID) (*model.ExamAttempt, error) {
	if err := s.attempts.SetResultPublished(ctx, attemptID, s.clock()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("publish result: %w", err)
	}
	return s.getOwned(ctx, attemptID, 0)
}

// ─── Read accessors ─────────────────────────────────────────────────────────

// GetActiveAttempt returns the student's NOT_STARTED/IN_PROGRESS attempt for
// the exam.
func (s *AttemptService) GetActiveAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	a, err := s.attempts.GetActive(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get active attempt: %w", err)
	}
	return a, nil
}

// GetAttempt returns one attempt, enforcing ownership when studentID > 0.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	return s.getOwned(ctx, attemptID, studentID)
}

// GetStudentAttempts returns the student's attempt history for an exam.
func (s *AttemptService) GetStudentAttempts(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ExamAttempt, error) {
	attempts, err := s.attempts.ListByStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// ListExamAttempts returns all attempts for an exam with pagination.
func (s *AttemptService) ListExamAttempts(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamAttempt, int64, error) {
	return s.attempts.ListByExam(ctx, examID, page, perPage)
}

// GetExamStats returns the single-pass aggregate over an exam's graded attempts.
func (s *AttemptService) GetExamStats(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	stats, err := s.attempts.Stats(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("exam stats: %w", err)
	}
	return stats, nil
}

// ─── Internal helpers ───────────────────────────────────────────────────────

// getOwned fetches an attempt; studentID > 0 enforces ownership (a foreign
// attempt reads as not found rather than leaking its existence).
func (s *AttemptService) getOwned(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if studentID > 0 && a.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// mutate runs one state-machine write: fetch, window check,
// activate-on-touch, apply fn, conditional save. The overdue path closes the
// attempt and reports ErrStaleAttempt so the client gets a clear
// "exam no longer active" signal on its next interaction.
func (s *AttemptService) mutate(ctx context.Context, attemptID uuid.UUID, studentID int, fn func(a *model.ExamAttempt, now time.Time) error) (*model.ExamAttempt, error) {
	a, err := s.getOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return a, ErrStaleAttempt
	}

	now := s.clock()
	prev := a.Status

	if a.Overdue(now) {
		if a.Status == model.AttemptStatusNotStarted {
			a.Status = model.AttemptStatusExpired
		} else if err := s.finalize(ctx, a, now, model.AutoSubmitTimeExpired); err != nil {
			return nil, err
		}
		if saved, err := s.save(ctx, a, prev); err == nil {
			return saved, ErrStaleAttempt
		}
		return a, ErrStaleAttempt
	}

	if a.Status == model.AttemptStatusNotStarted {
		// First client activity promotes the attempt.
		a.Status = model.AttemptStatusInProgress
	}

	if err := fn(a, now); err != nil {
		return nil, err
	}
	return s.save(ctx, a, prev)
}

// finalize stamps the closing fields and computes the final score. reason ""
// means a student-initiated submit.
func (s *AttemptService) finalize(ctx context.Context, a *model.ExamAttempt, now time.Time, reason model.AutoSubmitReason) error {
	exam, err := s.exams.GetByID(ctx, a.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if a.Status == model.AttemptStatusNotStarted {
		a.Status = model.AttemptStatusInProgress
	}

	a.SubmittedAt = &now
	elapsed := int(now.Sub(a.StartTime).Seconds())
	if limit := int(a.EndTime.Sub(a.StartTime).Seconds()); elapsed > limit {
		elapsed = limit
	}
	a.TimeTakenSeconds = elapsed

	ApplyScore(a, exam.PassingMarks)

	if reason == "" {
		a.Status = model.AttemptStatusSubmitted
	} else {
		a.Status = model.AttemptStatusAutoSubmitted
		r := reason
		a.AutoSubmitReason = &r
	}
	return nil
}

// disqualify flips the attempt to DISQUALIFIED with a human-readable reason.
// The score is still derived so the review surface shows what was earned.
func (s *AttemptService) disqualify(ctx context.Context, a *model.ExamAttempt, now time.Time, reason string) error {
	exam, err := s.exams.GetByID(ctx, a.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	ApplyScore(a, exam.PassingMarks)
	a.Passed = false

	a.Status = model.AttemptStatusDisqualified
	a.DisqualifiedAt = &now
	a.DisqualifiedReason = &reason
	r := model.AutoSubmitDisqualified
	a.AutoSubmitReason = &r

	s.log.Warn().
		Str("attempt_id", a.ID.String()).
		Int("student_id", a.StudentID).
		Str("reason", reason).
		Msg("Attempt disqualified")
	return nil
}

// loadAnswerKey fetches the grading key, Redis-cached because every saved
// answer needs it. Question authoring is out of band, so a short TTL bounds
// staleness after a question edit.
func (s *AttemptService) loadAnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	cacheKey := config.CacheKey.ExamAnswerKeyKey(examID.String())

	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var key model.AnswerKey
			if json.Unmarshal(raw, &key) == nil {
				return key, nil
			}
		}
	}

	key, err := s.exams.GetAnswerKey(ctx, examID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(key); err == nil {
			if cerr := s.rdb.Set(ctx, cacheKey, raw, 10*time.Minute).Err(); cerr != nil {
				s.log.Warn().Err(cerr).Str("exam_id", examID.String()).Msg("Answer key cache write failed")
			}
		}
	}
	return key, nil
}

// save applies the conditional update and resolves races: if the row moved
// out from under us, the re-fetched state decides between StaleAttempt
// (now terminal) and NotActive (caller should re-fetch and retry).
func (s *AttemptService) save(ctx context.Context, a *model.ExamAttempt, expected model.AttemptStatus) (*model.ExamAttempt, error) {
	err := s.attempts.Update(ctx, a, expected)
	if err == nil {
		if a.Status.Terminal() && s.rdb != nil {
			// The active-attempt pointer is dead once the row closes.
			key := config.CacheKey.StudentActiveAttemptKey(a.ExamID.String(), a.StudentID)
			if cerr := s.rdb.Del(ctx, key).Err(); cerr != nil {
				s.log.Warn().Err(cerr).Str("attempt_id", a.ID.String()).Msg("Active attempt cache clear failed")
			}
		}
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update attempt: %w", err)
	}

	current, ferr := s.attempts.GetByID(ctx, a.ID)
	if ferr != nil {
		return nil, fmt.Errorf("refetch after conflict: %w", ferr)
	}
	if current.Status.Terminal() {
		return current, ErrStaleAttempt
	}
	return current, ErrNotActive
}

// enqueueViolation pushes the accepted event onto the audit queue.
// Best-effort: the attempt row already holds the ledger entry.
func (s *AttemptService) enqueueViolation(ctx context.Context, a *model.ExamAttempt, v *model.Violation) {
	if s.rdb == nil || v == nil {
		return
	}
	payload, _ := json.Marshal(ViolationEvent{
		AttemptID:  a.ID.String(),
		ExamID:     a.ExamID.String(),
		StudentID:  a.StudentID,
		Type:       string(v.Type),
		Details:    v.Details,
		DurationMs: v.DurationMs,
		Timestamp:  v.At.Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Violation audit enqueue failed")
	}
}
