package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
	"github.com/JvstinNgvyen/space-scrap/internal/observability"
)

// Handler upgrades HTTP requests to websocket connections and runs one
// Client per connection. It tracks live clients so the server can close
// them all on shutdown.
type Handler struct {
	coord    *session.Coordinator
	logger   *zap.Logger
	upgrader websocket.Upgrader

	msgRate  rate.Limit
	msgBurst int

	mu      sync.Mutex
	clients map[string]*Client
}

// NewHandler creates a websocket Handler.
//
// Precondition: coord and logger must be non-nil; msgRate and msgBurst
// must be positive.
// allowedOrigins lists origins permitted to upgrade; "*" allows any, and
// an empty list falls back to the same-origin default.
func NewHandler(coord *session.Coordinator, logger *zap.Logger, allowedOrigins []string, msgRate float64, msgBurst int) *Handler {
	h := &Handler{
		coord:    coord,
		logger:   logger,
		msgRate:  rate.Limit(msgRate),
		msgBurst: msgBurst,
		clients:  make(map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		wildcard := false
		for _, o := range allowedOrigins {
			if o == "*" {
				wildcard = true
			}
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return wildcard || origin == "" || allowed[origin]
		}
	}
	return h
}

// ServeHTTP upgrades the request and runs the connection's read pump until
// the transport drops. The write pump runs on its own goroutine.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	id := uuid.NewString()
	limiter := rate.NewLimiter(h.msgRate, h.msgBurst)
	client := newClient(id, conn, h.coord, limiter, h.logger, h.remove)

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()

	h.logger.Info("connection opened",
		observability.ConnID(id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	go client.writePump()
	client.readPump()

	h.logger.Info("connection closed", observability.ConnID(id))
}

func (h *Handler) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
}

// CloseAll tears down every live connection. Called on server shutdown;
// rooms are volatile and die with the process.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

// ClientCount returns the number of live connections.
func (h *Handler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
