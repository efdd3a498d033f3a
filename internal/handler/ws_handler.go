package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/service"
	ws "github.com/stemsi/exstem-runner/internal/websocket"
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
			// Non-browser clients such as the runner send no Origin.
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the autosave mirror stream.
type WSHandler struct {
	examService *service.ExamAuthorityService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamAuthorityService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and records autosaved answers. Submission is never
// accepted over the stream.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID := c.Param("exam_id")

	// Refuse the upgrade outright when the student may not sit the exam.
	eligibility, err := h.examService.Eligibility(c.Request.Context(), examID, claims.UserID, claims.ClassID)
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	case errors.Is(err, service.ErrExamForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Eligibility check failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	case !eligibility.Available:
		response.FailWithMessage(c, http.StatusConflict, response.ErrExamNotAvailable, eligibility.Message)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.AutosaveRequest
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(c.Request.Context(), conn, wsLog, examID, claims, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, msg.MsgID, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, examID string, claims *service.Claims, msg *ws.AutosaveRequest) {
	if msg.QID == "" || msg.Answer == "" {
		ws.WriteError(conn, msg.MsgID, "q_id and ans are required")
		return
	}

	err := h.examService.MirrorAnswer(ctx, examID, claims.UserID, claims.ClassID, msg.QID, model.OptionLabel(msg.Answer))
	if err != nil {
		if errors.Is(err, service.ErrUnknownQuestion) {
			ws.WriteError(conn, msg.MsgID, "unknown question or option")
			return
		}
		wsLog.Error().Err(err).Msg("Autosave error")
		ws.WriteError(conn, msg.MsgID, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, MsgID: msg.MsgID, Status: "saved"})
}
