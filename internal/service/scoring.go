package service

import (
	"math"
	"strings"

	"github.com/stemsi/lms-backend/internal/model"
)

// Scoring and rollup derivation. Everything here is pure and re-derivable
// from the attempt's answers/violations, so it can run at submit time and
// again after a manual regrade without touching timing or liveness fields.

// Round2 rounds to two decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// GradeAnswer grades a single answer in place against its answer-key entry.
// Non-auto-gradable questions (essay, file upload) are flagged for manual
// review and carry zero marks until a grader scores them.
func GradeAnswer(entry model.AnswerKeyEntry, ans *model.Answer) {
	if !entry.AutoGradable {
		ans.NeedsReview = true
		ans.IsCorrect = false
		ans.MarksObtained = 0
		return
	}

	given := ""
	if ans.SelectedOption != nil {
		given = *ans.SelectedOption
	} else if ans.TextAnswer != nil {
		given = *ans.TextAnswer
	}

	ans.NeedsReview = false
	if strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(entry.CorrectOption)) {
		ans.IsCorrect = true
		ans.MarksObtained = entry.Marks
	} else {
		ans.IsCorrect = false
		ans.MarksObtained = 0
	}
}

// ApplyScore recomputes the attempt's score fields from its answers.
// obtained = Σ marks of correct answers; percentage is rounded to 2 decimals
// and zero when the exam carries no marks; passed compares the percentage
// against the exam's passing threshold.
func ApplyScore(a *model.ExamAttempt, passingMarks float64) {
	var obtained float64
	for i := range a.Answers {
		if a.Answers[i].IsCorrect {
			obtained += a.Answers[i].MarksObtained
		}
	}

	a.ObtainedMarks = obtained
	if a.TotalMarks > 0 {
		a.Percentage = Round2(obtained / a.TotalMarks * 100)
	} else {
		a.Percentage = 0
	}
	a.Passed = a.Percentage >= passingMarks
}

// RecomputeViolationRollups re-derives every violation counter from the
// ledger. The counters are never trusted from caller input. HeartbeatMissed
// is deliberately left alone: it is the consecutive-miss liveness counter
// owned by the heartbeat monitor, reset on every beat.
func RecomputeViolationRollups(a *model.ExamAttempt) {
	a.TotalViolations = len(a.Violations)
	a.TabSwitchCount = 0
	a.FullscreenExits = 0
	a.TimeOutsideMs = 0

	for i := range a.Violations {
		switch a.Violations[i].Type {
		case model.ViolationTabSwitch:
			a.TabSwitchCount++
		case model.ViolationFullscreenExit:
			a.FullscreenExits++
		case model.ViolationTimeOutsideExceeded:
			a.TimeOutsideMs += a.Violations[i].DurationMs
		}
	}
}
