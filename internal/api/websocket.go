package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/logging"
)

const (
	wsMaxMessageBytes = 1 << 20
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = wsPongWait * 9 / 10
	wsWriteWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS configuration of the HTTP routes
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleRecommendationSocket answers every note frame with its
// recommendations so editors can refresh them while a note is edited.
func (s *Server) handleRecommendationSocket(c *gin.Context) {
	log := logging.FromContext(c.Request.Context(), s.logger)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var writeMu sync.Mutex
	write := func(msgType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(msgType, data)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	log.Debug("Recommendation socket opened")
	frames := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Recommendation socket closed unexpectedly")
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		frames++

		var reply gin.H
		var note domain.ClinicalNote
		if err := json.Unmarshal(data, &note); err != nil {
			reply = gin.H{"error": "invalid clinical note JSON"}
		} else {
			reply = gin.H{"recommendations": s.deps.Engine.Generate(&note)}
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			break
		}
		if err := write(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	log.WithField("frames", frames).Debug("Recommendation socket closed")
}
