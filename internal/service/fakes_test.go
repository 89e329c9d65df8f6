package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/lms-backend/internal/config"
	"github.com/stemsi/lms-backend/internal/model"
)

// fakeAttemptStore mimics the repository's conditional-update semantics in
// memory, including pgx.ErrNoRows on precondition failure. beforeUpdate lets
// a test interleave a concurrent writer between fetch and save.
type fakeAttemptStore struct {
	rows         map[uuid.UUID]*model.ExamAttempt
	beforeUpdate func()
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{rows: make(map[uuid.UUID]*model.ExamAttempt)}
}

func cloneAttempt(a *model.ExamAttempt) *model.ExamAttempt {
	c := *a
	c.Answers = append([]model.Answer(nil), a.Answers...)
	c.Violations = append([]model.Violation(nil), a.Violations...)
	return &c
}

func (f *fakeAttemptStore) isActive(status model.AttemptStatus) bool {
	for _, s := range model.ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.ExamAttempt) error {
	n := 0
	for _, row := range f.rows {
		if row.ExamID == a.ExamID && row.StudentID == a.StudentID {
			n++
			if f.isActive(row.Status) {
				return pgx.ErrNoRows
			}
		}
	}
	a.ID = uuid.New()
	a.AttemptNumber = n + 1
	a.CreatedAt = a.StartTime
	a.UpdatedAt = a.StartTime
	f.rows[a.ID] = cloneAttempt(a)
	return nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneAttempt(row), nil
}

func (f *fakeAttemptStore) GetActive(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	for _, row := range f.rows {
		if row.ExamID == examID && row.StudentID == studentID && f.isActive(row.Status) {
			return cloneAttempt(row), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) CountByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (int, error) {
	n := 0
	for _, row := range f.rows {
		if row.ExamID == examID && row.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptStore) Update(_ context.Context, a *model.ExamAttempt, expected ...model.AttemptStatus) error {
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook()
	}
	row, ok := f.rows[a.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	match := false
	for _, s := range expected {
		if row.Status == s {
			match = true
			break
		}
	}
	if !match {
		return pgx.ErrNoRows
	}
	f.rows[a.ID] = cloneAttempt(a)
	return nil
}

func (f *fakeAttemptStore) SetResultPublished(_ context.Context, id uuid.UUID, publishedAt time.Time) error {
	row, ok := f.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.ResultPublished = true
	row.ResultPublishedAt = &publishedAt
	return nil
}

func (f *fakeAttemptStore) ListByStudent(_ context.Context, examID uuid.UUID, studentID int) ([]model.ExamAttempt, error) {
	var out []model.ExamAttempt
	for _, row := range f.rows {
		if row.ExamID == examID && row.StudentID == studentID {
			out = append(out, *cloneAttempt(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (f *fakeAttemptStore) ListByExam(_ context.Context, examID uuid.UUID, _, _ int) ([]model.ExamAttempt, int64, error) {
	var out []model.ExamAttempt
	for _, row := range f.rows {
		if row.ExamID == examID {
			out = append(out, *cloneAttempt(row))
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttemptStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]model.ExamAttempt, error) {
	var out []model.ExamAttempt
	for _, row := range f.rows {
		if f.isActive(row.Status) && row.EndTime.Before(now) && len(out) < limit {
			out = append(out, *cloneAttempt(row))
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListHeartbeatStale(_ context.Context, cutoff time.Time, limit int) ([]model.ExamAttempt, error) {
	var out []model.ExamAttempt
	for _, row := range f.rows {
		if row.Status != model.AttemptStatusInProgress || len(out) >= limit {
			continue
		}
		silentSince := row.StartTime
		if row.LastHeartbeat != nil {
			silentSince = *row.LastHeartbeat
		}
		if silentSince.Before(cutoff) {
			out = append(out, *cloneAttempt(row))
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) AbandonStale(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.Status == model.AttemptStatusNotStarted && row.CreatedAt.Before(cutoff) {
			row.Status = model.AttemptStatusAbandoned
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptStore) PurgeAbandoned(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, row := range f.rows {
		if row.Status == model.AttemptStatusAbandoned && row.CreatedAt.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptStore) Stats(_ context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	stats := &model.ExamStats{ExamID: examID}
	var sumPct, sumTime, sumViol float64
	for _, row := range f.rows {
		if row.ExamID != examID || (row.Status != model.AttemptStatusSubmitted && row.Status != model.AttemptStatusAutoSubmitted) {
			continue
		}
		stats.AttemptCount++
		sumPct += row.Percentage
		sumTime += float64(row.TimeTakenSeconds)
		sumViol += float64(row.TotalViolations)
		if row.Passed {
			stats.PassCount++
		}
		if stats.AttemptCount == 1 || row.Percentage > stats.HighestPercentage {
			stats.HighestPercentage = row.Percentage
		}
		if stats.AttemptCount == 1 || row.Percentage < stats.LowestPercentage {
			stats.LowestPercentage = row.Percentage
		}
	}
	if stats.AttemptCount > 0 {
		stats.AveragePercentage = Round2(sumPct / float64(stats.AttemptCount))
		stats.AverageTimeTaken = Round2(sumTime / float64(stats.AttemptCount))
		stats.AverageViolations = Round2(sumViol / float64(stats.AttemptCount))
	}
	return stats, nil
}

type fakeExamStore struct {
	exams map[uuid.UUID]*model.Exam
	keys  map[uuid.UUID]model.AnswerKey
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{
		exams: make(map[uuid.UUID]*model.Exam),
		keys:  make(map[uuid.UUID]model.AnswerKey),
	}
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) GetAnswerKey(_ context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	return f.keys[examID], nil
}

type fakeEnrollmentStore struct {
	enrolled map[uuid.UUID]map[int]bool
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{enrolled: make(map[uuid.UUID]map[int]bool)}
}

func (f *fakeEnrollmentStore) enroll(courseID uuid.UUID, studentID int) {
	if f.enrolled[courseID] == nil {
		f.enrolled[courseID] = make(map[int]bool)
	}
	f.enrolled[courseID][studentID] = true
}

func (f *fakeEnrollmentStore) IsActivePaid(_ context.Context, courseID uuid.UUID, studentID int) (bool, error) {
	return f.enrolled[courseID][studentID], nil
}

// testEnv bundles a service wired to fakes with a controllable clock.
type testEnv struct {
	svc         *AttemptService
	attempts    *fakeAttemptStore
	exams       *fakeExamStore
	enrollments *fakeEnrollmentStore
	cfg         *config.Config
	now         time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		attempts:    newFakeAttemptStore(),
		exams:       newFakeExamStore(),
		enrollments: newFakeEnrollmentStore(),
		cfg: &config.Config{
			MaxOutsideMs:        300000,
			MaxViolations:       20,
			HeartbeatTimeout:    60 * time.Second,
			MaxMissedHeartbeats: 3,
			AttemptStaleAfter:   24 * time.Hour,
			AttemptRetention:    30 * 24 * time.Hour,
		},
		now: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}
	env.svc = NewAttemptService(env.attempts, env.exams, env.enrollments, nil, env.cfg, zerolog.Nop())
	env.svc.clock = func() time.Time { return env.now }
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

// addExam registers a published 60-minute exam with three auto-gradable
// questions worth 20 marks total and a 60% passing threshold.
func (env *testEnv) addExam() (*model.Exam, []uuid.UUID) {
	exam := &model.Exam{
		ID:              uuid.New(),
		CourseID:        uuid.New(),
		Title:           "Final Exam",
		DurationMinutes: 60,
		PassingMarks:    60,
		MaxAttempts:     3,
		TotalMarks:      20,
		Status:          model.ExamStatusPublished,
	}
	env.exams.exams[exam.ID] = exam

	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	env.exams.keys[exam.ID] = model.AnswerKey{
		q1: {CorrectOption: "A", Marks: 5, AutoGradable: true},
		q2: {CorrectOption: "true", Marks: 5, AutoGradable: true},
		q3: {CorrectOption: "", Marks: 10, AutoGradable: false},
	}
	return exam, []uuid.UUID{q1, q2, q3}
}
