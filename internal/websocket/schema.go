package websocket

import "github.com/stemsi/lms-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionViolation Action = "violation"
	ActionHeartbeat Action = "heartbeat"
	ActionSubmit    Action = "submit"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to save a single answer.
type AnswerRequest struct {
	Action Action                    `json:"action"`
	Answer model.RecordAnswerRequest `json:"answer"`
}

// ViolationRequest is sent by the client to report a proctoring event.
type ViolationRequest struct {
	Action    Action                       `json:"action"`
	Violation model.RecordViolationRequest `json:"violation"`
}

// HeartbeatRequest is the periodic liveness ping.
type HeartbeatRequest struct {
	Action Action `json:"action"`
}

// SubmitRequest is sent by the client to finish the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError         Event = "error"
	EventSaved         Event = "saved"
	EventPong          Event = "pong"
	EventSubmitted     Event = "submitted"
	EventAttemptClosed Event = "attempt_closed"
)

// SavedResponse acknowledges a recorded answer or violation.
type SavedResponse struct {
	Event           Event `json:"event"`
	TotalViolations int   `json:"total_violations,omitempty"`
}

// PongResponse answers a heartbeat with the remaining window so the client
// clock cannot drift from the server's.
type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// SubmittedResponse reports the final state after a submit.
type SubmittedResponse struct {
	Event      Event               `json:"event"`
	Status     model.AttemptStatus `json:"status"`
	Percentage float64             `json:"percentage"`
	Passed     bool                `json:"passed"`
}

// AttemptClosedResponse tells the client its attempt reached a terminal
// state outside its own submit (expiry, disqualification, violation limit).
type AttemptClosedResponse struct {
	Event  Event               `json:"event"`
	Status model.AttemptStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
