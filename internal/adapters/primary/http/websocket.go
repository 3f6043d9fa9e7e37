package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// createUpgrader creates a WebSocket upgrader with proper origin validation
func (s *Server) createUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.isValidOrigin(r)
		},
	}
}

// ClientMode represents the type of WebSocket client
type ClientMode string

const (
	// ClientModeDisplay clients only receive events
	ClientModeDisplay ClientMode = "display"

	// ClientModeControl clients may also navigate the rotation
	ClientModeControl ClientMode = "control"
)

// Navigation commands accepted from control clients
const (
	CommandNext = "next"
	CommandPrev = "prev"
	CommandJump = "jump"
)

// WebSocketClient represents a WebSocket client connection
type WebSocketClient struct {
	id        string
	conn      *websocket.Conn
	send      chan ports.UpdateEvent
	manager   *ConnectionManager
	navigator ports.RotationNavigator
	mode      ClientMode
	logger    *slog.Logger
}

// ClientMessage represents a message received from the client
type ClientMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.createUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	mode := ClientModeDisplay
	if r.URL.Query().Get("mode") == string(ClientModeControl) {
		mode = ClientModeControl
	}

	id := uuid.New().String()
	client := &WebSocketClient{
		id:        id,
		conn:      conn,
		send:      make(chan ports.UpdateEvent, 256),
		manager:   s.connMgr,
		navigator: s.presenter,
		mode:      mode,
		logger:    s.logger.With(slog.String("client_id", id), slog.String("mode", string(mode))),
	}

	// Queue the greeting and the current state before registering so they arrive first
	now := s.clock.Now()
	client.send <- ports.UpdateEvent{
		Type:      ports.EventTypeConnected,
		Timestamp: now,
		Data: map[string]string{
			"clientId": client.id,
			"mode":     string(mode),
		},
	}
	client.send <- ports.UpdateEvent{
		Type:      ports.EventTypeState,
		Timestamp: now,
		Data:      entities.NewRotationEvent(entities.CauseSnapshot, s.presenter.State(), now),
	}

	s.connMgr.RegisterConnection(&Connection{
		ID:   client.id,
		Mode: mode,
		Send: client.send,
	})

	if s.metrics != nil {
		s.metrics.WebSocketConnected()
	}

	go client.writePump()
	go client.readPump(func() {
		if s.metrics != nil {
			s.metrics.WebSocketDisconnected()
		}
	})
}

// readPump pumps messages from the WebSocket connection
func (c *WebSocketClient) readPump(onClose func()) {
	defer func() {
		c.manager.Unregister(c.id)
		_ = c.conn.Close()
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket connection error", slog.String("error", err.Error()))
			}
			break
		}

		if c.mode != ClientModeControl {
			c.logger.Debug("Ignoring message from display client")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Failed to parse client message", slog.String("error", err.Error()))
			continue
		}

		c.handleCommand(msg)
	}
}

// writePump pumps messages to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The channel has been closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleCommand applies a navigation command. The resulting state reaches every client
// through the scheduler relay.
func (c *WebSocketClient) handleCommand(msg ClientMessage) {
	switch msg.Type {
	case CommandNext:
		c.navigator.Advance()
	case CommandPrev:
		c.navigator.Retreat()
	case CommandJump:
		c.navigator.JumpTo(msg.Index)
	default:
		c.logger.Warn("Unknown client command", slog.String("type", msg.Type))
		return
	}

	c.logger.Debug("Handled client command", slog.String("type", msg.Type))
}

// BroadcastBannerReload tells clients the banner file was reloaded
func (s *Server) BroadcastBannerReload(slides int) {
	event := ports.UpdateEvent{
		Type:      ports.EventTypeBannerReload,
		Timestamp: s.clock.Now(),
		Data: map[string]interface{}{
			"slides": slides,
		},
	}
	_ = s.NotifyClients(event)
}

// BroadcastProviderError tells clients a provider fetch failed. The error itself is
// only logged.
func (s *Server) BroadcastProviderError(providerID string, err error) {
	s.logger.Debug("Broadcasting provider error",
		slog.String("provider", providerID),
		slog.String("error", err.Error()),
	)

	event := ports.UpdateEvent{
		Type:      ports.EventTypeProviderError,
		Timestamp: s.clock.Now(),
		Data: map[string]interface{}{
			"provider": providerID,
			"message":  "Provider fetch failed",
		},
	}
	_ = s.NotifyClients(event)
}

// isValidOrigin validates WebSocket connection origins based on environment
func (s *Server) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow empty origin (non-browser clients)
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid origin URL",
			slog.String("origin", origin),
			slog.String("error", err.Error()),
		)
		return false
	}

	// The kiosk page served by this server
	if strings.EqualFold(originURL.Host, r.Host) {
		return true
	}

	if s.config.IsDevelopment() {
		return s.isDevelopmentOrigin(originURL)
	}

	return s.isProductionOrigin(originURL)
}

// isDevelopmentOrigin validates origins for development environment
func (s *Server) isDevelopmentOrigin(originURL *url.URL) bool {
	hostname := originURL.Hostname()

	allowedHosts := []string{
		"localhost",
		"127.0.0.1",
		"0.0.0.0",
	}

	for _, allowed := range allowedHosts {
		if hostname == allowed {
			return true
		}
	}

	// Allow private network ranges (192.168.x.x, 10.x.x.x, 172.16-31.x.x)
	if strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		s.isPrivateClassB(hostname) {
		return true
	}

	return false
}

// isProductionOrigin validates origins for production environment
func (s *Server) isProductionOrigin(originURL *url.URL) bool {
	for _, allowedOrigin := range s.config.GetCORSOrigins() {
		if originURL.String() == allowedOrigin {
			return true
		}

		// Wildcard subdomains (*.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(originURL.Hostname(), domain) {
				return true
			}
		}
	}

	s.logger.Warn("WebSocket connection rejected: origin not in whitelist",
		slog.String("origin", originURL.String()),
		slog.Any("allowed_origins", s.config.GetCORSOrigins()),
	)
	return false
}

// isPrivateClassB checks for 172.16.0.0 to 172.31.255.255 range
func (s *Server) isPrivateClassB(hostname string) bool {
	if !strings.HasPrefix(hostname, "172.") {
		return false
	}

	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return false
	}

	switch parts[1] {
	case "16", "17", "18", "19", "20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30", "31":
		return true
	default:
		return false
	}
}
