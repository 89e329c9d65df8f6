package service

import (
	"fmt"

	"github.com/stemsi/lms-backend/internal/model"
)

// CertificateService evaluates certificate eligibility. It is a pure policy
// evaluator: the course collaborator assembles the student's standing and
// owns certificate issuance; this service only answers yes/no with reasons.
type CertificateService struct{}

// NewCertificateService creates a new CertificateService.
func NewCertificateService() *CertificateService {
	return &CertificateService{}
}

// EvaluateEligibility runs the course's completion policy against the
// student's standing. Eligible is the AND of every enabled check; disabled
// checks always pass. Reasons lists every failed check so the caller can
// show the student what is missing.
func (s *CertificateService) EvaluateEligibility(policy model.CompletionPolicy, standing model.StudentStanding) model.EligibilityResult {
	res := model.EligibilityResult{
		ProgressMet:    true,
		AssignmentsMet: true,
		ExamMet:        true,
	}

	if policy.MinProgressPercent > 0 && standing.ProgressPercent < policy.MinProgressPercent {
		res.ProgressMet = false
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"course progress %.2f%% is below the required %.2f%%",
			standing.ProgressPercent, policy.MinProgressPercent))
	}

	if policy.RequireAllAssignments && standing.AssignmentsSubmitted < standing.AssignmentsAssigned {
		res.AssignmentsMet = false
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"%d of %d assignments submitted",
			standing.AssignmentsSubmitted, standing.AssignmentsAssigned))
	}

	if policy.RequireExamPass {
		switch {
		case !standing.ExamResultPublished:
			res.ExamMet = false
			res.Reasons = append(res.Reasons, "exam result has not been published yet")
		case !standing.ExamPassed:
			res.ExamMet = false
			res.Reasons = append(res.Reasons, "final exam has not been passed")
		}
	}

	res.Eligible = res.ProgressMet && res.AssignmentsMet && res.ExamMet
	return res
}
