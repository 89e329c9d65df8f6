package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam definition.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam is the exam definition consumed by the attempt state machine.
// PassingMarks is a percentage threshold (0–100); TotalMarks is the sum of
// question marks, snapshotted onto each attempt at creation.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	CourseID        uuid.UUID  `json:"course_id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	PassingMarks    float64    `json:"passing_marks"`
	MaxAttempts     int        `json:"max_attempts"`
	TotalMarks      float64    `json:"total_marks"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the exam window length.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionEssay          QuestionType = "ESSAY"
	QuestionFileUpload     QuestionType = "FILE_UPLOAD"
)

// AutoGradable reports whether answers of this type are graded against the
// answer key at record time. Essay and file answers wait for manual review.
func (t QuestionType) AutoGradable() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer:
		return true
	}
	return false
}

// Question is one exam question. Options is the client-facing choice list;
// CorrectOption never leaves the server.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	Type          QuestionType    `json:"type"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectOption string          `json:"-"`
	Marks         float64         `json:"marks"`
	OrderNum      int             `json:"order_num"`
}

// AnswerKeyEntry is the grading view of a question.
type AnswerKeyEntry struct {
	CorrectOption string
	Marks         float64
	AutoGradable  bool
}

// AnswerKey maps question IDs to their grading entries.
type AnswerKey map[uuid.UUID]AnswerKeyEntry
