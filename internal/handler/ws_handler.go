package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/config"
	"github.com/courseworks/registrar-backend/internal/middleware"
	"github.com/courseworks/registrar-backend/internal/repository"
	"github.com/courseworks/registrar-backend/internal/service"
	ws "github.com/courseworks/registrar-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins; an empty slice
// permits all origins (development mode).
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

// WSHandler streams live roster changes to instructors.
type WSHandler struct {
	rdb          *redis.Client
	classService *service.ClassService
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, classService *service.ClassService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:          rdb,
		classService: classService,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
	}
}

// RosterStream godoc
// WS /ws/v1/instructor/classes/:course_number/roster
// Upgrades to WebSocket and forwards every roster change on the class
// (enrolls, drops and deletion) to the owning instructor.
func (h *WSHandler) RosterStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	courseNumber := c.Param("course_number")

	class, err := h.classService.GetByCourseNumber(c.Request.Context(), courseNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if class.InstructorID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the class owner"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, config.CacheKey.RosterChannel(courseNumber))
	defer sub.Close()

	// Reader goroutine: notices a closed connection and answers keepalive
	// pings; any other client message is ignored.
	go func() {
		defer cancel()
		for {
			conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			var msg ws.RequestPayload
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Action == ws.ActionPing {
				_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var ev service.RosterEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn().Err(err).Msg("bad roster event payload")
				_ = ws.WriteError(conn, "malformed roster event")
				continue
			}
			update := ws.RosterUpdate{
				Event:        ws.EventRoster,
				CourseNumber: ev.CourseNumber,
				Action:       ev.Action,
				StudentID:    ev.StudentID,
				StudentName:  ev.StudentName,
				SeatsLeft:    ev.SeatsLeft,
			}
			if err := ws.WriteTyped(conn, update); err != nil {
				return
			}
			// The class is gone; nothing further will be published.
			if ev.Action == "delete" {
				return
			}
		}
	}
}
