package service

import "errors"

// Attempt state-machine errors. Validation errors (ErrNotEnrolled,
// ErrAttemptLimitExceeded) surface before any state changes. Race errors
// (ErrNotActive on a concurrently terminated attempt) are recoverable by
// re-fetching; the state machine never retries on the caller's behalf.
var (
	ErrAlreadyActive        = errors.New("an active attempt already exists for this exam")
	ErrAttemptLimitExceeded = errors.New("attempt limit for this exam has been reached")
	ErrNotActive            = errors.New("attempt is not in progress")
	ErrStaleAttempt         = errors.New("attempt is closed and no longer accepts writes")
	ErrNotEnrolled          = errors.New("student has no active paid enrollment for this course")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrExamNotPublished     = errors.New("exam is not published")
	ErrQuestionNotFound     = errors.New("question does not belong to this exam")
	ErrInvalidViolation     = errors.New("unknown violation type")
)
