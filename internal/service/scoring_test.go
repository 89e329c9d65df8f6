package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stemsi/lms-backend/internal/model"
)

func TestGradeAnswer(t *testing.T) {
	auto := model.AnswerKeyEntry{CorrectOption: "A", Marks: 5, AutoGradable: true}

	tests := []struct {
		name      string
		entry     model.AnswerKeyEntry
		given     string
		correct   bool
		marks     float64
		review    bool
	}{
		{"exact match", auto, "A", true, 5, false},
		{"case and whitespace ignored", auto, "  a ", true, 5, false},
		{"wrong option", auto, "B", false, 0, false},
		{"empty answer", auto, "", false, 0, false},
		{"manual review", model.AnswerKeyEntry{Marks: 10}, "essay text", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			given := tt.given
			ans := &model.Answer{QuestionID: uuid.New(), SelectedOption: &given}
			GradeAnswer(tt.entry, ans)
			assert.Equal(t, tt.correct, ans.IsCorrect)
			assert.Equal(t, tt.marks, ans.MarksObtained)
			assert.Equal(t, tt.review, ans.NeedsReview)
		})
	}
}

func TestApplyScore(t *testing.T) {
	a := &model.ExamAttempt{
		TotalMarks: 20,
		Answers: []model.Answer{
			{IsCorrect: true, MarksObtained: 5},
			{IsCorrect: true, MarksObtained: 10},
			{IsCorrect: false, MarksObtained: 0},
		},
	}

	ApplyScore(a, 60)
	assert.Equal(t, 15.0, a.ObtainedMarks)
	assert.Equal(t, 75.0, a.Percentage)
	assert.True(t, a.Passed)

	// Recomputing from the same answers is a no-op.
	ApplyScore(a, 60)
	assert.Equal(t, 15.0, a.ObtainedMarks)
	assert.Equal(t, 75.0, a.Percentage)
}

func TestApplyScore_Rounding(t *testing.T) {
	a := &model.ExamAttempt{
		TotalMarks: 3,
		Answers:    []model.Answer{{IsCorrect: true, MarksObtained: 1}},
	}
	ApplyScore(a, 33.33)
	assert.Equal(t, 33.33, a.Percentage)
	assert.True(t, a.Passed)
}

func TestApplyScore_ZeroTotalMarks(t *testing.T) {
	a := &model.ExamAttempt{TotalMarks: 0}
	ApplyScore(a, 60)
	assert.Equal(t, 0.0, a.Percentage)
	assert.False(t, a.Passed)
}

func TestRecomputeViolationRollups(t *testing.T) {
	a := &model.ExamAttempt{
		Violations: []model.Violation{
			{Type: model.ViolationTabSwitch},
			{Type: model.ViolationTabSwitch},
			{Type: model.ViolationFullscreenExit},
			{Type: model.ViolationTimeOutsideExceeded, DurationMs: 4000},
			{Type: model.ViolationTimeOutsideExceeded, DurationMs: 6000},
			{Type: model.ViolationCopyAttempt},
		},
		// Stale counter values must be overwritten, not accumulated.
		TotalViolations: 99,
		TabSwitchCount:  99,
		TimeOutsideMs:   99999,
		HeartbeatMissed: 2,
	}

	RecomputeViolationRollups(a)
	assert.Equal(t, 6, a.TotalViolations)
	assert.Equal(t, 2, a.TabSwitchCount)
	assert.Equal(t, 1, a.FullscreenExits)
	assert.Equal(t, int64(10000), a.TimeOutsideMs)
	// Liveness counter is owned by the heartbeat monitor, not the ledger.
	assert.Equal(t, 2, a.HeartbeatMissed)
}
