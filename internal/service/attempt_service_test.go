package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stemsi/lms-backend/internal/model"
)

func strPtr(s string) *string { return &s }

func answerReq(questionID uuid.UUID, option string) *model.RecordAnswerRequest {
	return &model.RecordAnswerRequest{
		QuestionID:     questionID.String(),
		SelectedOption: strPtr(option),
	}
}

func TestStartAttempt(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)

	a, err := env.svc.StartAttempt(context.Background(), exam.ID, 42)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusNotStarted, a.Status)
	assert.Equal(t, 1, a.AttemptNumber)
	assert.Equal(t, env.now, a.StartTime)
	assert.Equal(t, env.now.Add(60*time.Minute), a.EndTime)
	assert.Equal(t, 20.0, a.TotalMarks)
	assert.NotEqual(t, uuid.Nil, a.ID)
}

func TestStartAttempt_RejectsSecondActive(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)

	_, err := env.svc.StartAttempt(context.Background(), exam.ID, 42)
	require.NoError(t, err)

	_, err = env.svc.StartAttempt(context.Background(), exam.ID, 42)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestStartAttempt_NotEnrolled(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()

	_, err := env.svc.StartAttempt(context.Background(), exam.ID, 42)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestStartAttempt_UnpublishedExam(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	exam.Status = model.ExamStatusDraft
	env.exams.exams[exam.ID] = exam
	env.enrollments.enroll(exam.CourseID, 42)

	_, err := env.svc.StartAttempt(context.Background(), exam.ID, 42)
	assert.ErrorIs(t, err, ErrExamNotPublished)
}

func TestStartAttempt_LimitAndMonotonicNumbers(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
		require.NoError(t, err)
		assert.Equal(t, want, a.AttemptNumber)

		_, err = env.svc.Submit(ctx, a.ID, 42, "")
		require.NoError(t, err)
	}

	_, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	assert.ErrorIs(t, err, ErrAttemptLimitExceeded)
}

func TestRecordAnswer_PromotesAndGrades(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	a, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusInProgress, a.Status)
	require.Len(t, a.Answers, 1)
	assert.True(t, a.Answers[0].IsCorrect)
	assert.Equal(t, 5.0, a.Answers[0].MarksObtained)
	assert.Equal(t, 5.0, a.ObtainedMarks)
}

func TestRecordAnswer_UpsertsByQuestion(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "B"))
	require.NoError(t, err)

	a, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	require.Len(t, a.Answers, 1)
	assert.True(t, a.Answers[0].IsCorrect)
	assert.Equal(t, 5.0, a.ObtainedMarks)
}

func TestRecordAnswer_CaseInsensitiveMatch(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	a, err = env.svc.RecordAnswer(ctx, a.ID, 42, &model.RecordAnswerRequest{
		QuestionID: qs[1].String(),
		TextAnswer: strPtr("  TRUE "),
	})
	require.NoError(t, err)
	assert.True(t, a.Answers[0].IsCorrect)
}

func TestRecordAnswer_ManualReviewQuestion(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	a, err = env.svc.RecordAnswer(ctx, a.ID, 42, &model.RecordAnswerRequest{
		QuestionID: qs[2].String(),
		TextAnswer: strPtr("long essay text"),
	})
	require.NoError(t, err)

	require.Len(t, a.Answers, 1)
	assert.True(t, a.Answers[0].NeedsReview)
	assert.False(t, a.Answers[0].IsCorrect)
	assert.Equal(t, 0.0, a.ObtainedMarks)
}

func TestRecordAnswer_UnknownQuestion(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(uuid.New(), "A"))
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestRecordAnswer_AfterWindowClosesAttempt(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	env.advance(61 * time.Minute)

	closed, err := env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[1], "true"))
	assert.ErrorIs(t, err, ErrStaleAttempt)
	require.NotNil(t, closed)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, closed.Status)
	require.NotNil(t, closed.AutoSubmitReason)
	assert.Equal(t, model.AutoSubmitTimeExpired, *closed.AutoSubmitReason)
}

func TestRecordViolation_Rollups(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	for _, req := range []*model.RecordViolationRequest{
		{Type: "TAB_SWITCH"},
		{Type: "TAB_SWITCH"},
		{Type: "FULLSCREEN_EXIT"},
		{Type: "TIME_OUTSIDE_EXCEEDED", DurationMs: 12000},
	} {
		a, err = env.svc.RecordViolation(ctx, a.ID, 42, req)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, a.TotalViolations)
	assert.Equal(t, 2, a.TabSwitchCount)
	assert.Equal(t, 1, a.FullscreenExits)
	assert.Equal(t, int64(12000), a.TimeOutsideMs)
	assert.Len(t, a.Violations, 4)
}

func TestRecordViolation_InvalidType(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	_, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{Type: "LOOKED_AWAY"})
	assert.ErrorIs(t, err, ErrInvalidViolation)
}

func TestRecordViolation_DisqualifiesOnTimeOutside(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	// Exactly at the limit stays in progress.
	a, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{
		Type: "TIME_OUTSIDE_EXCEEDED", DurationMs: 300000,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusInProgress, a.Status)

	// One more millisecond crosses it.
	a, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{
		Type: "TIME_OUTSIDE_EXCEEDED", DurationMs: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusDisqualified, a.Status)
	assert.False(t, a.Passed)
	require.NotNil(t, a.DisqualifiedAt)
	require.NotNil(t, a.DisqualifiedReason)
	assert.Contains(t, *a.DisqualifiedReason, "300001")
}

func TestRecordViolation_LimitAutoSubmits(t *testing.T) {
	env := newTestEnv()
	env.cfg.MaxViolations = 3
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		a, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{Type: "TAB_SWITCH"})
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, a.Status)
	}

	a, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{Type: "TAB_SWITCH"})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, a.Status)
	require.NotNil(t, a.AutoSubmitReason)
	assert.Equal(t, model.AutoSubmitViolationLimit, *a.AutoSubmitReason)
}

func TestHeartbeat_ResetsMissCounter(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	env.advance(30 * time.Second)
	a, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusInProgress, a.Status)
	require.NotNil(t, a.LastHeartbeat)
	assert.Equal(t, env.now, *a.LastHeartbeat)
	assert.Equal(t, 0, a.HeartbeatMissed)
}

func TestSubmit_ScoresAndCloses(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[1], "true"))
	require.NoError(t, err)

	env.advance(20 * time.Minute)
	a, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusSubmitted, a.Status)
	assert.Equal(t, 10.0, a.ObtainedMarks)
	assert.Equal(t, 50.0, a.Percentage)
	assert.False(t, a.Passed)
	assert.Equal(t, 20*60, a.TimeTakenSeconds)
	require.NotNil(t, a.SubmittedAt)
	assert.Nil(t, a.AutoSubmitReason)
}

func TestSubmit_Idempotent(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	first, err := env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	env.advance(5 * time.Minute)
	second, err := env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.SubmittedAt.Unix(), second.SubmittedAt.Unix())
	assert.Equal(t, first.ObtainedMarks, second.ObtainedMarks)
	assert.Equal(t, first.TimeTakenSeconds, second.TimeTakenSeconds)
}

func TestSubmit_LateSubmitRecordedAsAuto(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)

	env.advance(65 * time.Minute)
	a, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusAutoSubmitted, a.Status)
	require.NotNil(t, a.AutoSubmitReason)
	assert.Equal(t, model.AutoSubmitTimeExpired, *a.AutoSubmitReason)
	// Time taken is capped at the window length.
	assert.Equal(t, 60*60, a.TimeTakenSeconds)
}

func TestSubmit_NeverStartedExpires(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	env.advance(2 * time.Hour)
	a, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusExpired, a.Status)
	assert.Nil(t, a.SubmittedAt)
}

func TestSubmit_RaceWithSweepResolvesIdempotently(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)

	// The sweep closes the row between the student's fetch and save.
	env.attempts.beforeUpdate = func() {
		row := env.attempts.rows[a.ID]
		row.Status = model.AttemptStatusAutoSubmitted
		reason := model.AutoSubmitTimeExpired
		row.AutoSubmitReason = &reason
	}

	got, err := env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, got.Status)
}

func TestTerminalAttemptRejectsWrites(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	assert.ErrorIs(t, err, ErrStaleAttempt)

	_, err = env.svc.RecordViolation(ctx, a.ID, 42, &model.RecordViolationRequest{Type: "TAB_SWITCH"})
	assert.ErrorIs(t, err, ErrStaleAttempt)

	_, err = env.svc.Heartbeat(ctx, a.ID, 42)
	assert.ErrorIs(t, err, ErrStaleAttempt)
}

func TestOwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	_, err = env.svc.RecordAnswer(ctx, a.ID, 99, answerReq(qs[0], "A"))
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = env.svc.GetAttempt(ctx, a.ID, 99)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestExpireOverdueAttempts(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	env.enrollments.enroll(exam.CourseID, 43)
	ctx := context.Background()

	inProgress, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, inProgress.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	neverStarted, err := env.svc.StartAttempt(ctx, exam.ID, 43)
	require.NoError(t, err)

	env.advance(61 * time.Minute)
	n, err := env.svc.ExpireOverdueAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := env.svc.GetAttempt(ctx, inProgress.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, got.Status)
	assert.Equal(t, 5.0, got.ObtainedMarks)

	got, err = env.svc.GetAttempt(ctx, neverStarted.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusExpired, got.Status)

	// Second pass finds nothing to do.
	n, err = env.svc.ExpireOverdueAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCheckHeartbeats_TimesOutAfterMaxMisses(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)

	// Client goes silent; each sweep past the timeout marks one miss.
	for i := 1; i <= 2; i++ {
		env.advance(61 * time.Second)
		n, err := env.svc.CheckHeartbeats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := env.svc.GetAttempt(ctx, a.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, got.Status)
		assert.Equal(t, i, got.HeartbeatMissed)
	}

	env.advance(61 * time.Second)
	_, err = env.svc.CheckHeartbeats(ctx)
	require.NoError(t, err)

	got, err := env.svc.GetAttempt(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, got.Status)
	require.NotNil(t, got.AutoSubmitReason)
	assert.Equal(t, model.AutoSubmitHeartbeatTimeout, *got.AutoSubmitReason)
	assert.Equal(t, 3, got.TotalViolations)
}

func TestHeartbeatRevivesMissCount(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)

	env.advance(61 * time.Second)
	_, err = env.svc.CheckHeartbeats(ctx)
	require.NoError(t, err)

	a, err = env.svc.Heartbeat(ctx, a.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, a.HeartbeatMissed)

	// Violation ledger keeps the recorded miss even after recovery.
	assert.Equal(t, 1, a.TotalViolations)
}

func TestAbandonStaleAttempts(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)

	// EndTime passed long ago; the attempt was never touched. After the
	// staleness window it is abandoned, after retention it is purged.
	env.advance(25 * time.Hour)
	abandoned, purged, err := env.svc.AbandonStaleAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), abandoned)
	assert.Equal(t, int64(0), purged)

	got, err := env.svc.GetAttempt(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusAbandoned, got.Status)

	env.advance(31 * 24 * time.Hour)
	abandoned, purged, err = env.svc.AbandonStaleAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), abandoned)
	assert.Equal(t, int64(1), purged)

	_, err = env.svc.GetAttempt(ctx, a.ID, 0)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRegradeAnswer(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[1], "true"))
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, &model.RecordAnswerRequest{
		QuestionID: qs[2].String(),
		TextAnswer: strPtr("essay"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	a, err = env.svc.RegradeAnswer(ctx, a.ID, 7, &model.RegradeAnswerRequest{
		QuestionID:    qs[2].String(),
		MarksObtained: 5,
		IsCorrect:     true,
		Note:          "partial credit",
	})
	require.NoError(t, err)

	ans := a.AnswerFor(qs[2])
	require.NotNil(t, ans)
	assert.False(t, ans.NeedsReview)
	assert.Equal(t, 5.0, ans.MarksObtained)
	require.NotNil(t, ans.GradedBy)
	assert.Equal(t, 7, *ans.GradedBy)

	// 5 + 5 + 5 of 20 total.
	assert.Equal(t, 15.0, a.ObtainedMarks)
	assert.Equal(t, 75.0, a.Percentage)
	assert.True(t, a.Passed)
	assert.Equal(t, model.AttemptStatusSubmitted, a.Status)
}

func TestRegradeAnswer_RequiresSubmittedAttempt(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.RecordAnswer(ctx, a.ID, 42, answerReq(qs[0], "A"))
	require.NoError(t, err)

	_, err = env.svc.RegradeAnswer(ctx, a.ID, 7, &model.RegradeAnswerRequest{
		QuestionID:    qs[0].String(),
		MarksObtained: 5,
	})
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestPublishResult(t *testing.T) {
	env := newTestEnv()
	exam, _ := env.addExam()
	env.enrollments.enroll(exam.CourseID, 42)
	ctx := context.Background()

	a, err := env.svc.StartAttempt(ctx, exam.ID, 42)
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, a.ID, 42, "")
	require.NoError(t, err)

	a, err = env.svc.PublishResult(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, a.ResultPublished)
	require.NotNil(t, a.ResultPublishedAt)

	_, err = env.svc.PublishResult(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestGetExamStats(t *testing.T) {
	env := newTestEnv()
	exam, qs := env.addExam()
	ctx := context.Background()

	for student, opt := range map[int]string{42: "A", 43: "B"} {
		env.enrollments.enroll(exam.CourseID, student)
		a, err := env.svc.StartAttempt(ctx, exam.ID, student)
		require.NoError(t, err)
		_, err = env.svc.RecordAnswer(ctx, a.ID, student, answerReq(qs[0], opt))
		require.NoError(t, err)
		_, err = env.svc.Submit(ctx, a.ID, student, "")
		require.NoError(t, err)
	}

	stats, err := env.svc.GetExamStats(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.AttemptCount)
	assert.Equal(t, 25.0, stats.HighestPercentage)
	assert.Equal(t, 0.0, stats.LowestPercentage)
	assert.Equal(t, 12.5, stats.AveragePercentage)
	assert.Equal(t, int64(0), stats.PassCount)
}
