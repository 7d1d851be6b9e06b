// Package server coordinates client registration, room membership,
// matchmaking and connection cleanup through the Hub type.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Tyrowin/chessrelay/internal/game"
)

// ErrHubStopped is returned by hub requests made after shutdown.
var ErrHubStopped = errors.New("hub stopped")

// session is the per-connection record: the room the connection sits in and
// its waiting matchmaking ticket. Both are optional.
type session struct {
	client *Client
	room   string
	ticket *game.Ticket
}

type inboundEvent struct {
	client  *Client
	env     Envelope
	limited bool
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Online int `json:"online"`
	Rooms  int `json:"rooms"`
	Queued int `json:"queued"`
}

// Hub owns every piece of shared state: sessions, rooms, the matchmaking
// queue and the online counter. Only the Run goroutine touches them; other
// goroutines talk to it over channels.
type Hub struct {
	cfg      Config
	logger   *zap.Logger
	validate *validator.Validate

	sessions  map[*Client]*session
	byID      map[string]*session
	rooms     *game.RoomStore
	queue     *game.Matchmaker
	online    int
	evictions []*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	stats      chan chan Stats

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub ready to Run. cfg is sanitized first.
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	rooms := game.NewRoomStore()
	return &Hub{
		cfg:        cfg.Sanitize(),
		logger:     logger,
		validate:   validator.New(),
		sessions:   make(map[*Client]*session),
		byID:       make(map[string]*session),
		rooms:      rooms,
		queue:      game.NewMatchmaker(game.UniqueRoomKey(rooms)),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		stats:      make(chan chan Stats),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("nil_client_registration")
				continue
			}
			h.addClient(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.removeClient(client, "disconnect")

		case ev := <-h.inbound:
			h.handleInbound(ev)

		case reply := <-h.stats:
			reply <- h.snapshot()
		}

		h.flushEvictions()
	}
}

// Register hands a new client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) deliver(c *Client, env Envelope) bool {
	select {
	case h.inbound <- inboundEvent{client: c, env: env}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// deliverLimited reports a frame that was dropped by the client's rate
// limiter so the hub can answer its ack.
func (h *Hub) deliverLimited(c *Client, env Envelope) bool {
	select {
	case h.inbound <- inboundEvent{client: c, env: env, limited: true}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) handleInbound(ev inboundEvent) {
	if ev.limited {
		if _, ok := h.sessions[ev.client]; ok {
			h.ack(ev.client, ev.env.ID, Ack{Success: false, Message: msgRateLimited})
		}
		return
	}
	h.dispatch(ev.client, ev.env)
}

// Stats asks the Run loop for a snapshot.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.ctx.Done():
		return Stats{}, ErrHubStopped
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) snapshot() Stats {
	return Stats{
		Online: h.online,
		Rooms:  h.rooms.Len(),
		Queued: h.queue.Len(),
	}
}

func (h *Hub) startPumps(c *Client) {
	if c.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// addClient records the connection, bumps the online counter and tells
// everyone the new count.
func (h *Hub) addClient(c *Client) {
	s := &session{client: c}
	h.sessions[c] = s
	h.byID[c.id] = s
	h.online++

	h.logger.Info("client_registered",
		zap.String("conn", c.id),
		zap.String("addr", c.addr),
		zap.Int("online", h.online))

	h.sendTo(c, EventHello, 0, Hello{ID: c.id})
	h.broadcastAll(EventUpdateOnlinePlayers, h.online)
}

// removeClient runs the disconnect cleanup: leave the room, drop the waiting
// ticket, close the send queue and broadcast the new count. It is a no-op for
// clients that are already gone.
func (h *Hub) removeClient(c *Client, reason string) {
	s, ok := h.sessions[c]
	if !ok {
		return
	}
	delete(h.sessions, c)
	delete(h.byID, c.id)
	h.online--

	h.leaveRoom(s)
	if s.ticket != nil {
		_ = h.queue.Cancel(c.id)
		s.ticket = nil
	}

	c.closed = true
	close(c.send)

	h.logger.Info("client_unregistered",
		zap.String("conn", c.id),
		zap.String("reason", reason),
		zap.Int("online", h.online))

	h.broadcastAll(EventUpdateOnlinePlayers, h.online)
}

// leaveRoom removes the session from its room and tells the remaining
// participant who left.
func (h *Hub) leaveRoom(s *session) {
	if s.room == "" {
		return
	}
	key := s.room
	s.room = ""

	dep, ok := h.rooms.Leave(key, s.client.id)
	if !ok {
		return
	}

	h.logger.Info("room_leave",
		zap.String("room", key),
		zap.String("conn", s.client.id),
		zap.String("side", string(dep.Participant.Side)),
		zap.Bool("room_deleted", dep.RoomDeleted))

	h.broadcastRoom(key, EventSendResign, ResignNotice{
		Side: string(dep.Participant.Side),
		Type: ResignTypeLeft,
	}, nil)
}

func (h *Hub) safeSend(c *Client, message []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) deliverBytes(c *Client, message []byte) {
	if !h.safeSend(c, message) {
		h.evict(c)
	}
}

func (h *Hub) sendTo(c *Client, event string, id int64, data interface{}) {
	message, err := encodeEnvelope(event, id, data)
	if err != nil {
		h.logger.Error("encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliverBytes(c, message)
}

func (h *Hub) broadcastAll(event string, data interface{}) {
	message, err := encodeEnvelope(event, 0, data)
	if err != nil {
		h.logger.Error("encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	for c := range h.sessions {
		h.deliverBytes(c, message)
	}
}

// broadcastRoom sends to every participant of the room except skip.
func (h *Hub) broadcastRoom(key, event string, data interface{}, skip *Client) {
	room, ok := h.rooms.Get(key)
	if !ok {
		return
	}
	message, err := encodeEnvelope(event, 0, data)
	if err != nil {
		h.logger.Error("encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	for _, id := range room.MemberIDs() {
		s, ok := h.byID[id]
		if !ok || s.client == skip {
			continue
		}
		h.deliverBytes(s.client, message)
	}
}

func (h *Hub) evict(c *Client) {
	for _, pending := range h.evictions {
		if pending == c {
			return
		}
	}
	h.evictions = append(h.evictions, c)
}

// flushEvictions disconnects clients whose send queue overflowed. Removing a
// client broadcasts, which may queue further evictions.
func (h *Hub) flushEvictions() {
	for len(h.evictions) > 0 {
		c := h.evictions[0]
		h.evictions = h.evictions[1:]
		if _, ok := h.sessions[c]; !ok {
			continue
		}
		h.logger.Warn("slow_consumer_evicted", zap.String("conn", c.id))
		h.removeClient(c, "send buffer full")
	}
}

// shutdownClients closes all active client connections and their send
// queues so both pumps return.
func (h *Hub) shutdownClients() {
	h.logger.Info("closing_client_connections", zap.Int("count", len(h.sessions)))

	for c := range h.sessions {
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		if c.conn == nil {
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("close_failed", zap.String("conn", c.id), zap.Error(err))
		}
	}
}

// Shutdown stops the hub and waits for client goroutines to finish or for
// the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("hub_shutdown_started")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub_shutdown_completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub_shutdown_timeout")
		return context.DeadlineExceeded
	}
}
