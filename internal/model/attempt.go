package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusNotStarted    AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress    AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted     AttemptStatus = "SUBMITTED"
	AttemptStatusAutoSubmitted AttemptStatus = "AUTO_SUBMITTED"
	AttemptStatusDisqualified  AttemptStatus = "DISQUALIFIED"
	AttemptStatusExpired       AttemptStatus = "EXPIRED"
	AttemptStatusAbandoned     AttemptStatus = "ABANDONED"
)

// ActiveStatuses are the states counted toward active-attempt uniqueness:
// at most one attempt per (exam, student) may hold one of them.
var ActiveStatuses = []AttemptStatus{AttemptStatusNotStarted, AttemptStatusInProgress}

// attemptTransitions is the single source of truth for legal lifecycle steps.
// Terminal states have no outgoing edges.
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptStatusNotStarted: {
		AttemptStatusInProgress,
		AttemptStatusExpired,
		AttemptStatusAbandoned,
	},
	AttemptStatusInProgress: {
		AttemptStatusSubmitted,
		AttemptStatusAutoSubmitted,
		AttemptStatusDisqualified,
	},
}

// Terminal reports whether the status accepts no further writes.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptStatusSubmitted, AttemptStatusAutoSubmitted,
		AttemptStatusDisqualified, AttemptStatusExpired, AttemptStatusAbandoned:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s AttemptStatus) CanTransition(next AttemptStatus) bool {
	for _, t := range attemptTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AutoSubmitReason records why the system, rather than the student, closed an attempt.
type AutoSubmitReason string

const (
	AutoSubmitTimeExpired      AutoSubmitReason = "TIME_EXPIRED"
	AutoSubmitDisqualified     AutoSubmitReason = "DISQUALIFIED"
	AutoSubmitHeartbeatTimeout AutoSubmitReason = "HEARTBEAT_TIMEOUT"
	AutoSubmitSystemError      AutoSubmitReason = "SYSTEM_ERROR"
	AutoSubmitViolationLimit   AutoSubmitReason = "VIOLATION_LIMIT"
)

// Answer is one graded response inside an attempt. Answers are upserted by
// question ID, so an attempt never holds two entries for the same question.
type Answer struct {
	QuestionID     uuid.UUID  `json:"question_id"`
	SelectedOption *string    `json:"selected_option,omitempty"`
	TextAnswer     *string    `json:"text_answer,omitempty"`
	FileURL        *string    `json:"file_url,omitempty"`
	IsCorrect      bool       `json:"is_correct"`
	MarksObtained  float64    `json:"marks_obtained"`
	NeedsReview    bool       `json:"needs_review"`
	GradedBy       *int       `json:"graded_by,omitempty"`
	GradedAt       *time.Time `json:"graded_at,omitempty"`
	GraderNote     *string    `json:"grader_note,omitempty"`
}

// ExamAttempt is the full snapshot of one timed exam attempt. Answers and
// violations live inline; every derived field (score, violation rollups) is
// recomputed explicitly after each mutation rather than trusted from input.
type ExamAttempt struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	StudentID     int       `json:"student_id"`
	CourseID      uuid.UUID `json:"course_id"`
	AttemptNumber int       `json:"attempt_number"`

	StartTime        time.Time  `json:"start_time"`
	EndTime          time.Time  `json:"end_time"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	TimeTakenSeconds int        `json:"time_taken_seconds"`

	Status  AttemptStatus `json:"status"`
	Answers []Answer      `json:"answers"`

	TotalMarks    float64 `json:"total_marks"`
	ObtainedMarks float64 `json:"obtained_marks"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`

	Violations      []Violation `json:"violations"`
	TotalViolations int         `json:"total_violations"`
	TabSwitchCount  int         `json:"tab_switch_count"`
	FullscreenExits int         `json:"fullscreen_exits"`
	TimeOutsideMs   int64       `json:"time_outside_ms"`

	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
	HeartbeatMissed int        `json:"heartbeat_missed"`

	DisqualifiedAt     *time.Time        `json:"disqualified_at,omitempty"`
	DisqualifiedReason *string           `json:"disqualified_reason,omitempty"`
	AutoSubmitReason   *AutoSubmitReason `json:"auto_submit_reason,omitempty"`

	ResultPublished   bool       `json:"result_published"`
	ResultPublishedAt *time.Time `json:"result_published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnswerFor returns a pointer to the stored answer for questionID, or nil.
func (a *ExamAttempt) AnswerFor(questionID uuid.UUID) *Answer {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return &a.Answers[i]
		}
	}
	return nil
}

// Overdue reports whether the attempt's exam window has closed.
func (a *ExamAttempt) Overdue(now time.Time) bool {
	return now.After(a.EndTime)
}

// RemainingTime returns the time left in the exam window, floored at zero.
func (a *ExamAttempt) RemainingTime(now time.Time) time.Duration {
	remaining := a.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExamStats is the single-pass aggregate over an exam's graded attempts.
type ExamStats struct {
	ExamID            uuid.UUID `json:"exam_id"`
	AttemptCount      int64     `json:"attempt_count"`
	AveragePercentage float64   `json:"average_percentage"`
	HighestPercentage float64   `json:"highest_percentage"`
	LowestPercentage  float64   `json:"lowest_percentage"`
	AverageTimeTaken  float64   `json:"average_time_taken_seconds"`
	PassCount         int64     `json:"pass_count"`
	AverageViolations float64   `json:"average_violations"`
}

// RecordAnswerRequest is the payload for saving one answer.
type RecordAnswerRequest struct {
	QuestionID     string  `json:"question_id" binding:"required,uuid"`
	SelectedOption *string `json:"selected_option" binding:"omitempty,max=255"`
	TextAnswer     *string `json:"text_answer" binding:"omitempty,max=20000"`
	FileURL        *string `json:"file_url" binding:"omitempty,url"`
}

// RecordViolationRequest is the payload for reporting a proctoring violation.
type RecordViolationRequest struct {
	Type       string `json:"type" binding:"required,max=40"`
	Details    string `json:"details" binding:"omitempty,max=1000"`
	DurationMs int64  `json:"duration_ms" binding:"omitempty,min=0"`
}

// RegradeAnswerRequest is the payload for a teacher manually scoring an answer.
type RegradeAnswerRequest struct {
	QuestionID    string  `json:"question_id" binding:"required,uuid"`
	MarksObtained float64 `json:"marks_obtained" binding:"min=0"`
	IsCorrect     bool    `json:"is_correct"`
	Note          string  `json:"note" binding:"omitempty,max=1000"`
}
