package model

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus enumerates enrollment lifecycle states.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// PaymentStatus enumerates enrollment payment states.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Enrollment ties a student to a course. The attempt state machine only ever
// reads it: starting an attempt requires an ACTIVE enrollment with PAID status.
type Enrollment struct {
	ID            uuid.UUID        `json:"id"`
	CourseID      uuid.UUID        `json:"course_id"`
	StudentID     int              `json:"student_id"`
	Status        EnrollmentStatus `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	EnrolledAt    time.Time        `json:"enrolled_at"`
}
