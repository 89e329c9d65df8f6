package model

// CompletionPolicy is a course's certificate policy: which checks are enabled
// and their thresholds. Disabled checks always pass.
type CompletionPolicy struct {
	MinProgressPercent    float64 `json:"min_progress_percent" binding:"min=0,max=100"`
	RequireAllAssignments bool    `json:"require_all_assignments"`
	RequireExamPass       bool    `json:"require_exam_pass"`
}

// StudentStanding is the student's aggregate performance snapshot, assembled
// by the course/certificate collaborator from progress, assignment, and
// attempt records.
type StudentStanding struct {
	ProgressPercent      float64 `json:"progress_percent" binding:"min=0,max=100"`
	AssignmentsAssigned  int     `json:"assignments_assigned" binding:"min=0"`
	AssignmentsSubmitted int     `json:"assignments_submitted" binding:"min=0"`
	ExamPassed           bool    `json:"exam_passed"`
	ExamResultPublished  bool    `json:"exam_result_published"`
}

// EligibilityResult is the per-check breakdown of a certificate evaluation.
// Eligible is the logical AND of every enabled check.
type EligibilityResult struct {
	Eligible       bool     `json:"eligible"`
	ProgressMet    bool     `json:"progress_met"`
	AssignmentsMet bool     `json:"assignments_met"`
	ExamMet        bool     `json:"exam_met"`
	Reasons        []string `json:"reasons,omitempty"`
}

// EvaluateEligibilityRequest is the payload for the certificate evaluator endpoint.
type EvaluateEligibilityRequest struct {
	Policy   CompletionPolicy `json:"policy" binding:"required"`
	Standing StudentStanding  `json:"standing" binding:"required"`
}
