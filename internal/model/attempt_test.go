package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAttemptStatusTerminal(t *testing.T) {
	terminal := []AttemptStatus{
		AttemptStatusSubmitted,
		AttemptStatusAutoSubmitted,
		AttemptStatusDisqualified,
		AttemptStatusExpired,
		AttemptStatusAbandoned,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	assert.False(t, AttemptStatusNotStarted.Terminal())
	assert.False(t, AttemptStatusInProgress.Terminal())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, AttemptStatusNotStarted.CanTransition(AttemptStatusInProgress))
	assert.True(t, AttemptStatusNotStarted.CanTransition(AttemptStatusExpired))
	assert.True(t, AttemptStatusNotStarted.CanTransition(AttemptStatusAbandoned))
	assert.True(t, AttemptStatusInProgress.CanTransition(AttemptStatusSubmitted))
	assert.True(t, AttemptStatusInProgress.CanTransition(AttemptStatusAutoSubmitted))
	assert.True(t, AttemptStatusInProgress.CanTransition(AttemptStatusDisqualified))

	// No skipping the IN_PROGRESS stage into a graded state.
	assert.False(t, AttemptStatusNotStarted.CanTransition(AttemptStatusSubmitted))
	// Terminal states have no outgoing edges.
	for _, s := range []AttemptStatus{
		AttemptStatusSubmitted, AttemptStatusAutoSubmitted,
		AttemptStatusDisqualified, AttemptStatusExpired, AttemptStatusAbandoned,
	} {
		assert.False(t, s.CanTransition(AttemptStatusInProgress), "%s must not reopen", s)
	}
}

func TestViolationTypeValid(t *testing.T) {
	assert.True(t, ViolationTabSwitch.Valid())
	assert.True(t, ViolationHeartbeatMissed.Valid())
	assert.False(t, ViolationType("LOOKED_AWAY").Valid())
	assert.False(t, ViolationType("").Valid())
}

func TestAnswerFor(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	a := &ExamAttempt{Answers: []Answer{{QuestionID: q1, MarksObtained: 5}}}

	got := a.AnswerFor(q1)
	assert.NotNil(t, got)
	assert.Equal(t, 5.0, got.MarksObtained)

	// Returned pointer aliases the slice entry so grading mutates in place.
	got.MarksObtained = 7
	assert.Equal(t, 7.0, a.Answers[0].MarksObtained)

	assert.Nil(t, a.AnswerFor(q2))
}

func TestRemainingTime(t *testing.T) {
	now := time.Now()
	a := &ExamAttempt{EndTime: now.Add(10 * time.Minute)}

	assert.Equal(t, 10*time.Minute, a.RemainingTime(now))
	assert.Equal(t, time.Duration(0), a.RemainingTime(now.Add(time.Hour)))
	assert.False(t, a.Overdue(now))
	assert.True(t, a.Overdue(now.Add(11*time.Minute)))
}

func TestQuestionTypeAutoGradable(t *testing.T) {
	assert.True(t, QuestionMultipleChoice.AutoGradable())
	assert.True(t, QuestionTrueFalse.AutoGradable())
	assert.True(t, QuestionShortAnswer.AutoGradable())
	assert.False(t, QuestionEssay.AutoGradable())
	assert.False(t, QuestionFileUpload.AutoGradable())
}
