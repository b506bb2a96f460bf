package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	checkoutsvc "github.com/cardwise/commerce_layer/internal/app/services/checkout"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 16
)

// PhaseEvent is the message pushed to checkout event subscribers.
type PhaseEvent struct {
	SessionID string            `json:"session_id"`
	Phase     string            `json:"phase"`
	OrderID   string            `json:"order_id,omitempty"`
	Error     string            `json:"error,omitempty"`
	Session   *checkout.Session `json:"session,omitempty"`
}

// Hub pushes checkout phase changes to websocket subscribers, keyed by
// session. The client app keeps one socket open per checkout to drive its
// screen transitions.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

var _ checkoutsvc.EventSink = (*Hub)(nil)

type subscriber struct {
	conn *websocket.Conn
	send chan PhaseEvent
}

// NewHub creates a checkout event hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("checkout-ws")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin checks happen in the CORS middleware; the
			// webview origin is not stable across SDK versions.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:  log,
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// PhaseChanged implements the checkout EventSink. Slow subscribers are
// dropped rather than blocking the sequencer.
func (h *Hub) PhaseChanged(sessionID string, phase checkout.Phase, sess *checkout.Session) {
	event := PhaseEvent{
		SessionID: sessionID,
		Phase:     phase.String(),
		Session:   sess,
	}
	if sess != nil {
		event.OrderID = sess.OrderID
		event.Error = sess.LastError
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.send <- event:
		default:
			h.log.WithField("session_id", sessionID).Warn("dropping slow checkout subscriber")
			go sub.conn.Close()
		}
	}
}

// ServeWS upgrades the request and streams phase events for the session
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan PhaseEvent, wsSendBuffer),
	}
	h.add(sessionID, sub)
	defer h.remove(sessionID, sub)

	go h.writeLoop(sub)

	// Discard client messages; the socket is push-only. Reading also
	// surfaces disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer sub.conn.Close()

	for {
		select {
		case event, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
	close(sub.send)
	sub.conn.Close()
}
