package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/mpwizard/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// UpdateMessage is pushed to preview clients.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Session   string    `json:"session"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one websocket connection following a session.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	session string
}

// renderFunc produces the preview of a session.
type renderFunc func(ctx context.Context, sessionID string) (string, error)

// hub fans regenerated previews out to the clients of each session. Edits
// within delay of each other produce a single push.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
	timers  map[string]*time.Timer
	delay   time.Duration
	render  renderFunc
	logger  logging.Logger
	closed  bool
}

func newHub(delay time.Duration, render renderFunc, logger logging.Logger) *hub {
	return &hub{
		clients: make(map[string]map[*Client]struct{}),
		timers:  make(map[string]*time.Timer),
		delay:   delay,
		render:  render,
		logger:  logger,
	}
}

func (h *hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	set, ok := h.clients[c.session]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.session] = set
	}
	set[c] = struct{}{}

	return true
}

func (h *hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
}

func (h *hub) removeLocked(c *Client) {
	set, ok := h.clients[c.session]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.session)
		if t, ok := h.timers[c.session]; ok {
			t.Stop()
			delete(h.timers, c.session)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}

	return n
}

// schedule queues a push for sessionID, restarting the quiet period.
func (h *hub) schedule(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.clients[sessionID]) == 0 {
		return
	}
	if t, ok := h.timers[sessionID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(h.delay, func() {
		if h.fired(sessionID, &t) {
			h.push(context.Background(), sessionID)
		}
	})
	h.timers[sessionID] = t
}

// fired drops the timer entry for sessionID if it is still *t. A timer that
// was replaced after it started firing reports false and pushes nothing.
func (h *hub) fired(sessionID string, t **time.Timer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timers[sessionID] != *t {
		return false
	}
	delete(h.timers, sessionID)

	return true
}

func (h *hub) push(ctx context.Context, sessionID string) {
	data, err := h.message(ctx, sessionID)
	if err != nil {
		h.logger.Warn(ctx, err, "Preview push skipped", "session", sessionID)

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[sessionID] {
		select {
		case c.send <- data:
		default:
			// Slow client, drop it
			h.removeLocked(c)
		}
	}
}

// deliver queues data for one client if it is still registered.
func (h *hub) deliver(c *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.session][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.removeLocked(c)
	}
}

func (h *hub) message(ctx context.Context, sessionID string) ([]byte, error) {
	content, err := h.render(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return json.Marshal(UpdateMessage{
		Type:      "preview",
		Session:   sessionID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if _, err := s.sessions.get(id); err != nil {
		s.writeError(w, r, err)

		return
	}

	// Validate origin before accepting connection
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)

		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")

		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 16),
		session: id,
	}
	if !s.hub.register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")

		return
	}

	// The current preview goes out before any edit happens
	if data, err := s.hub.message(r.Context(), id); err == nil {
		s.hub.deliver(client, data)
	}

	go client.writePump(s.logger)
	client.readPump(s.hub, s.logger)
}

// checkOrigin requires an http(s) Origin that is either the server itself or
// listed in server.allowed_origins.
func (s *PreviewServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if strings.EqualFold(originURL.Host, r.Host) {
		return true
	}

	return s.isAllowedOrigin(origin)
}

// originPatterns converts allowed origins to the host patterns the
// websocket handshake checks.
func (s *PreviewServer) originPatterns() []string {
	var patterns []string
	for _, origin := range s.config.Server.AllowedOrigins {
		if origin == "*" {
			patterns = append(patterns, "*")

			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}

	return patterns
}

// readPump drains the connection until the peer goes away.
func (c *Client) readPump(h *hub, logger logging.Logger) {
	defer func() {
		h.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	ctx := context.Background()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logger.Debug(ctx, "WebSocket closed", "session", c.session, "error", err.Error())
			}

			return
		}
	}
}

// writePump sends queued messages and keeps the connection alive.
func (c *Client) writePump(logger logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.Debug(ctx, "WebSocket write failed", "session", c.session, "error", err.Error())

				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
