package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/lms-backend/internal/middleware"
	"github.com/stemsi/lms-backend/internal/model"
	"github.com/stemsi/lms-backend/internal/service"
	ws "github.com/stemsi/lms-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams attempt writes over one socket per attempt: answers,
// violations, heartbeats, and submit. Every message still goes through the
// state machine, so the socket grants no authority the REST surface lacks.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Ownership and liveness check before the upgrade.
	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("attempt_id", attemptID.String()).
		Logger()

	if attempt.Status.Terminal() {
		ws.WriteTyped(conn, ws.AttemptClosedResponse{
			Event:  ws.EventAttemptClosed,
			Status: attempt.Status,
		})
		return
	}

	wsLog.Info().Msg("Student connected")

	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		done := h.dispatch(conn, wsLog, attemptID, studentID, raw)
		if done {
			break
		}
	}
}

// dispatch routes one raw client message. Returns true once the attempt
// reached a terminal state and the socket should close.
func (h *WSHandler) dispatch(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, studentID int, raw []byte) bool {
	var envelope ws.RequestEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		ws.WriteError(conn, "malformed message")
		return false
	}

	ctx := context.Background()

	switch envelope.Action {
	case ws.ActionAnswer:
		var msg ws.AnswerRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.WriteError(conn, "malformed answer payload")
			return false
		}
		attempt, err := h.attemptService.RecordAnswer(ctx, attemptID, studentID, &msg.Answer)
		if err != nil {
			return h.writeAttemptError(conn, attempt, err)
		}
		ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved})
		return false

	case ws.ActionViolation:
		var msg ws.ViolationRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.WriteError(conn, "malformed violation payload")
			return false
		}
		attempt, err := h.attemptService.RecordViolation(ctx, attemptID, studentID, &msg.Violation)
		if err != nil {
			return h.writeAttemptError(conn, attempt, err)
		}
		if attempt.Status.Terminal() {
			reason := ""
			if attempt.DisqualifiedReason != nil {
				reason = *attempt.DisqualifiedReason
			}
			ws.WriteTyped(conn, ws.AttemptClosedResponse{
				Event:  ws.EventAttemptClosed,
				Status: attempt.Status,
				Reason: reason,
			})
			return true
		}
		ws.WriteTyped(conn, ws.SavedResponse{
			Event:           ws.EventSaved,
			TotalViolations: attempt.TotalViolations,
		})
		return false

	case ws.ActionHeartbeat:
		attempt, err := h.attemptService.Heartbeat(ctx, attemptID, studentID)
		if err != nil {
			return h.writeAttemptError(conn, attempt, err)
		}
		ws.WriteTyped(conn, ws.PongResponse{
			Event:            ws.EventPong,
			RemainingSeconds: int(attempt.RemainingTime(*attempt.LastHeartbeat).Seconds()),
		})
		return false

	case ws.ActionSubmit:
		attempt, err := h.attemptService.Submit(ctx, attemptID, studentID, "")
		if err != nil {
			ws.WriteError(conn, "submit failed")
			return false
		}
		wsLog.Info().Str("status", string(attempt.Status)).Msg("Attempt submitted over socket")
		ws.WriteTyped(conn, ws.SubmittedResponse{
			Event:      ws.EventSubmitted,
			Status:     attempt.Status,
			Percentage: attempt.Percentage,
			Passed:     attempt.Passed,
		})
		return true

	default:
		wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
		ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		return false
	}
}

// writeAttemptError reports a failed write. A stale attempt closes the
// socket, carrying the terminal state when the service returned one.
func (h *WSHandler) writeAttemptError(conn *websocket.Conn, attempt *model.ExamAttempt, err error) bool {
	if errors.Is(err, service.ErrStaleAttempt) {
		closed := ws.AttemptClosedResponse{Event: ws.EventAttemptClosed}
		if attempt != nil {
			closed.Status = attempt.Status
			if attempt.DisqualifiedReason != nil {
				closed.Reason = *attempt.DisqualifiedReason
			}
		}
		ws.WriteTyped(conn, closed)
		return true
	}
	ws.WriteError(conn, err.Error())
	return false
}
