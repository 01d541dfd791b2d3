package graphql

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/opscore/auth"
	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/event"
	"github.com/c360/opscore/fanout"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

// wsEnvelope is the wire frame sent to subscribers.
type wsEnvelope struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	Event   event.Event `json:"event"`
}

// handleSubscribe bridges a broker subscription onto a WebSocket. Channel
// and filter come from query parameters:
//
//	GET /subscribe?channel=alerts&min_severity=HIGH
//	GET /subscribe?channel=cases
//
// Slow clients fall behind in the subscription's ring buffer and lose the
// oldest messages; the connection itself is never stalled by the broker.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	minSeverity := event.Severity(r.URL.Query().Get("min_severity"))

	if minSeverity != "" && !minSeverity.Valid() {
		s.writeError(w, errors.WrapValidation(errors.ErrInvalidConfig, "Server", "handleSubscribe",
			"min_severity must be LOW, MEDIUM, HIGH or CRITICAL"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = auth.WithPrincipal(ctx, principalFromRequest(r))

	var (
		sub *fanout.Subscription[event.Event]
		err error
	)
	switch channel {
	case event.ChannelAlerts:
		sub, err = s.resolver.AlertEvents(ctx, minSeverity)
	case event.ChannelCases:
		sub, err = s.resolver.CaseEvents(ctx)
	default:
		err = errors.WrapValidation(errors.ErrInvalidConfig, "Server", "handleSubscribe",
			"channel must be alerts or cases")
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer sub.Close()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("subscription opened", "channel", channel, "min_severity", minSeverity)

	// Read loop exists only to detect disconnect and answer pings.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscription closed", "channel", channel, "dropped", sub.Dropped())
			return

		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			envelope := wsEnvelope{Type: msg.Type(), Channel: channel, Event: msg}
			if err := conn.WriteJSON(envelope); err != nil {
				s.logger.Warn("subscription write failed", "channel", channel, "error", err)
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) checkWSOrigin(r *http.Request) bool {
	if !s.config.EnableCORS {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
