package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pricequant/pricing"
)

// Message is the envelope sent to event subscribers.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans prediction events out to websocket subscribers. It
// satisfies pricing.Publisher.
type EventHub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	once sync.Once
	done chan struct{}
}

func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run processes subscriptions and broadcasts until Stop is called.
func (h *EventHub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer, drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Stop shuts the hub down and disconnects all subscribers.
func (h *EventHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// PublishPrediction broadcasts a prediction event to all subscribers.
func (h *EventHub) PublishPrediction(event pricing.PredictionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to encode prediction event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Message{
		Type:      "prediction",
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		h.logger.Warn("failed to encode event envelope", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("event buffer full, dropping prediction event")
	}
}

// HandleWS upgrades the connection and subscribes it to events.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- c

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *EventHub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readLoop drains client frames so pings are answered and closes are seen.
func (h *EventHub) readLoop(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
