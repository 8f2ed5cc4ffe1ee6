package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const maxClientMessageBytes = 1024

// SnapshotLoader returns the current snapshot of a tour. The hub uses it to prime a room
// right after join.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, tourID uuid.UUID) (Snapshot, error)
}

// HubOptions tunes connection handling.
type HubOptions struct {
	QueueSize int
	WriteWait time.Duration
	PongWait  time.Duration
	// CheckOrigin defaults to allowing every origin; CORS is enforced at the router.
	CheckOrigin func(r *http.Request) bool
}

// HubOptionsFromConfig maps the availability config section.
func HubOptionsFromConfig(cfg config.AvailabilityConfig) HubOptions {
	return HubOptions{QueueSize: cfg.ClientQueueSize, WriteWait: cfg.WriteWait, PongWait: cfg.PongWait}
}

// Hub upgrades HTTP requests to websocket connections attached to the broker.
type Hub struct {
	broker   *Broker
	loader   SnapshotLoader
	opts     HubOptions
	upgrader websocket.Upgrader
	logg     *logger.Logger
}

// NewHub builds a hub. loader may be nil, in which case joins are not primed.
func NewHub(broker *Broker, loader SnapshotLoader, opts HubOptions, logg *logger.Logger) *Hub {
	if opts.QueueSize < 1 {
		opts.QueueSize = 16
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{
		broker: broker,
		loader: loader,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logg: logg,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logg.Warn(h.logg.WithField(r.Context(), "error", err.Error()), "availability.upgrade_failed")
		return
	}
	c := &connection{
		hub:     h,
		conn:    conn,
		sub:     NewSubscriber(uuid.NewString(), h.opts.QueueSize),
		replies: make(chan ServerMessage, 4),
		done:    make(chan struct{}),
	}
	ctx := h.logg.WithField(context.WithoutCancel(r.Context()), "subscriber_id", c.sub.ID())
	h.logg.Debug(ctx, "availability.connected")

	go c.writePump(ctx)
	c.readPump(ctx)
}

type connection struct {
	hub     *Hub
	conn    *websocket.Conn
	sub     *Subscriber
	replies chan ServerMessage
	done    chan struct{}
}

func (c *connection) readPump(ctx context.Context) {
	defer func() {
		c.hub.broker.UnsubscribeAll(c.sub)
		close(c.done)
		_ = c.conn.Close()
		c.hub.logg.Debug(ctx, "availability.disconnected")
	}()

	c.conn.SetReadLimit(maxClientMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logg.Warn(c.hub.logg.WithField(ctx, "error", err.Error()), "availability.read_failed")
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *connection) handle(ctx context.Context, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(ServerMessage{Type: MessageError, Message: "malformed message"})
		return
	}
	if msg.TourID == uuid.Nil {
		c.reply(ServerMessage{Type: MessageError, Message: "tour_id is required"})
		return
	}
	switch msg.Type {
	case MessageJoin:
		c.hub.broker.Subscribe(msg.TourID, c.sub)
		c.prime(ctx, msg.TourID)
	case MessageLeave:
		c.hub.broker.Unsubscribe(msg.TourID, c.sub)
	default:
		c.reply(ServerMessage{Type: MessageError, Message: "unknown message type " + msg.Type})
	}
}

// prime sends the current snapshot to a connection that just joined.
func (c *connection) prime(ctx context.Context, tourID uuid.UUID) {
	if c.hub.loader == nil {
		return
	}
	snap, err := c.hub.loader.Snapshot(ctx, tourID)
	if err != nil {
		c.hub.logg.Warn(c.hub.logg.WithFields(ctx, map[string]any{
			"tour_id": tourID.String(),
			"error":   err.Error(),
		}), "availability.prime_failed")
		return
	}
	c.sub.offer(snap)
}

func (c *connection) reply(msg ServerMessage) {
	select {
	case c.replies <- msg:
	default:
	}
}

func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.hub.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case snap := <-c.sub.Updates():
			if err := c.write(ServerMessage{Type: MessageAvailability, Snapshot: &snap}); err != nil {
				c.hub.logg.Debug(c.hub.logg.WithField(ctx, "error", err.Error()), "availability.write_failed")
				return
			}
		case msg := <-c.replies:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(msg ServerMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
	return c.conn.WriteJSON(msg)
}
