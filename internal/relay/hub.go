package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/session"
	"github.com/mossy-p/whiteboard-signaling/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Options tunes a Hub. Zero fields take defaults.
type Options struct {
	MaxMessageBytes int64
	SendBuffer      int
	// ChatQueue bounds chat records waiting to be persisted.
	ChatQueue int
	// PersistTimeout bounds a single store write.
	PersistTimeout time.Duration
	Registerer     prometheus.Registerer
	Now            func() time.Time
}

func (o *Options) defaults() {
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 16 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.ChatQueue <= 0 {
		o.ChatQueue = 1024
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Hub is the event router. It owns the room registry and routes every
// inbound event to its handler; handlers mutate the registry and fan out.
type Hub struct {
	registry *session.Registry[*Client]
	store    store.Store
	log      zerolog.Logger
	opts     Options
	metrics  *metrics

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	// chatMu makes live broadcast order and persistence order the same.
	chatMu        sync.Mutex
	persist       chan persistJob
	persistClosed bool
	wg            sync.WaitGroup
}

type persistJob struct {
	roomID string
	record models.ChatRecord
}

// NewHub creates a hub over a fresh registry. st may be nil, in which case
// chat is relayed but not stored and title updates are never host-checked.
func NewHub(st store.Store, log zerolog.Logger, opts Options) *Hub {
	opts.defaults()
	h := &Hub{
		registry: session.NewRegistry[*Client](),
		store:    st,
		log:      log.With().Str("mod", "relay").Logger(),
		opts:     opts,
		metrics:  newMetrics(opts.Registerer),
		clients:  make(map[string]*Client),
		persist:  make(chan persistJob, opts.ChatQueue),
	}

	h.wg.Add(1)
	go h.persistLoop()
	return h
}

// Registry exposes the room sessions for read-only inspection.
func (h *Hub) Registry() *session.Registry[*Client] { return h.registry }

var ErrHubClosed = errors.New("hub closed")

// Serve attaches an upgraded connection and starts its pumps. identity is the
// verified caller, or nil for anonymous connections.
func (h *Hub) Serve(conn *websocket.Conn, identity *models.Identity) (*Client, error) {
	c := &Client{
		id:       uuid.New().String(),
		identity: identity,
		conn:     conn,
		hub:      h,
		send:     make(chan []byte, h.opts.SendBuffer),
		done:     make(chan struct{}),
	}
	c.log = h.log.With().Str("conn", c.id).Logger()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil, ErrHubClosed
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.metrics.connections.Inc()
	c.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection opened")

	if hello, err := models.Encode(models.EventConnected, models.Connected{SocketID: c.id}); err == nil {
		c.send <- hello
	}

	go c.writePump()
	go c.readPump()
	return c, nil
}

func (h *Hub) handleFrame(c *Client, frame []byte) {
	in, err := models.Decode(frame)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, models.ErrUnknownEvent) {
			reason = "unknown"
		}
		h.metrics.rejected.WithLabelValues(reason).Inc()
		c.log.Debug().Err(err).Msg("rejected frame")
		h.sendError(c, err.Error())
		return
	}
	h.dispatch(c, in)
}

// dispatch runs the handler for one decoded event. Every event except
// join-room is scoped to the room the connection joined.
func (h *Hub) dispatch(c *Client, in models.Inbound) {
	if j, ok := in.(*models.JoinRoom); ok {
		h.joinRoom(c, j)
		return
	}

	roomID, ok := h.registry.RoomOf(c.id)
	if !ok {
		h.metrics.rejected.WithLabelValues("no_room").Inc()
		h.sendError(c, "join a room first")
		return
	}
	if r := in.Room(); r != "" && r != roomID {
		h.metrics.rejected.WithLabelValues("room_mismatch").Inc()
		c.log.Debug().Str("room", roomID).Str("claimed", r).Str("event", string(in.Name())).Msg("room mismatch")
		h.sendError(c, "event targets a room this connection has not joined")
		return
	}

	switch e := in.(type) {
	case *models.UpdateProfile:
		h.updateProfile(c, e)
	case *models.UpdateTitle:
		h.updateTitle(c, roomID, e)
	case *models.Draw:
		h.draw(c, roomID, e)
	case *models.Clear:
		h.clear(c, roomID)
	case *models.Undo:
		h.undo(c, roomID, e)
	case *models.SwitchPage:
		h.switchPage(c, roomID, e)
	case *models.ChatMessage:
		h.chat(c, roomID, e)
	case *models.Typing:
		h.typing(c, roomID, e)
	case *models.StopTyping:
		h.stopTyping(c, roomID)
	case *models.JoinCall:
		h.joinCall(c, roomID, e)
	case *models.LeaveCall:
		h.leaveCall(c, roomID)
	case *models.MediaStatus:
		h.mediaStatus(c, roomID, e)
	case *models.Signal:
		h.signal(c, roomID, e)
	default:
		c.log.Warn().Str("event", string(in.Name())).Msg("no handler")
	}
}

// broadcast sends to every member of roomID except excludeID ("" for none).
func (h *Hub) broadcast(roomID, excludeID string, event models.EventName, payload any) {
	frame, err := models.Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	h.registry.Each(roomID, excludeID, func(m *Client) { m.enqueue(frame) })

	fanout := fanoutRoom
	if excludeID != "" {
		fanout = fanoutOthers
	}
	h.metrics.relayed.WithLabelValues(string(event), fanout).Inc()
}

// unicast delivers to one connection in roomID. A target that is gone is
// dropped without telling the sender.
func (h *Hub) unicast(roomID, targetID string, event models.EventName, payload any) bool {
	target, ok := h.registry.Member(roomID, targetID)
	if !ok {
		h.metrics.droppedUni.Inc()
		h.metrics.relayed.WithLabelValues(string(event), fanoutNone).Inc()
		h.log.Debug().Str("room", roomID).Str("to", targetID).Str("event", string(event)).Msg("target not connected")
		return false
	}
	frame, err := models.Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("encode unicast")
		return false
	}
	h.metrics.relayed.WithLabelValues(string(event), fanoutDirect).Inc()
	return target.enqueue(frame)
}

func (h *Hub) sendError(c *Client, msg string) {
	frame, err := models.Encode(models.EventError, models.ErrorOut{Message: msg})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// disconnect runs once per connection when its read pump exits.
func (h *Hub) disconnect(c *Client) {
	h.registry.Leave(c.id, h.rosterChanged)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	h.metrics.connections.Dec()
	c.log.Debug().Msg("connection closed")
}

// Close disconnects every client and waits for queued chat records to be
// written.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	h.chatMu.Lock()
	h.persistClosed = true
	close(h.persist)
	h.chatMu.Unlock()
	h.wg.Wait()
}

func (h *Hub) persistLoop() {
	defer h.wg.Done()
	for job := range h.persist {
		if h.store == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.PersistTimeout)
		err := h.store.AppendChat(ctx, job.roomID, job.record)
		cancel()
		if err != nil {
			h.metrics.chatFailures.Inc()
			h.log.Error().Err(err).Str("room", job.roomID).Msg("failed to save chat message")
		}
	}
}
