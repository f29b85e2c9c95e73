/*
Package voice contains the signaling relay for the shared voice room.

This file defines the Room struct, the coordinator of the relay. A single goroutine (Run)
owns the set of live connections, is the only writer of the participant registry and the
only goroutine that enqueues to or closes a client's send channel. Every connection event
is funneled through one inbox, so events are handled strictly one at a time.
*/
package voice

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"voicerelay/internal/app/user"
	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
)

const defaultInboxSize = 1024

var (
	// ErrRoomClosed is returned when a connection is offered to a room that has stopped.
	ErrRoomClosed = errors.New("voice: room is closed")

	// ErrDuplicateConnection is returned when a connection id is already registered.
	ErrDuplicateConnection = errors.New("voice: duplicate connection id")
)

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	// StateConnected is an open connection without a participant record.
	StateConnected ConnState = iota

	// StateActive is an open connection that has joined the room.
	StateActive

	// StateClosed is terminal.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	eventInbound eventKind = iota
	eventReject
	eventDisconnect
	eventQuery
)

type event struct {
	kind   eventKind
	client *Client
	msg    Inbound
	err    *errs.CustomError
	query  func()
}

// RoomOptions tunes the coordinator.
type RoomOptions struct {
	// UniqueUserIDs rejects a join whose userId is held by another connection.
	UniqueUserIDs bool

	// InboxSize is the capacity of the event queue.
	InboxSize int
}

// Room is the single shared voice room.
type Room struct {
	// Name is used for logging only.
	Name string

	registry *Registry
	opts     RoomOptions

	// clients is owned by the Run goroutine.
	clients map[string]*Client

	// evictions collects slow clients found while handling the current event.
	evictions []*Client

	inbox    chan event
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewRoom creates a room backed by registry. Call Run to start it.
func NewRoom(name string, registry *Registry, opts RoomOptions) *Room {
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}

	return &Room{
		Name:     name,
		registry: registry,
		opts:     opts,
		clients:  make(map[string]*Client),
		inbox:    make(chan event, opts.InboxSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logx.Component("room").With().Str("room", name).Logger(),
	}
}

// Done is closed once the room has been stopped.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Stop terminates the Run loop. Safe to call more than once.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info().Msg("Received stop signal. Stopping room.")
		close(r.done)
	})
}

// Run is the coordinator loop. It returns after Stop.
func (r *Room) Run() {
	defer close(r.stopped)
	defer r.teardown()

	for {
		select {
		case ev := <-r.inbox:
			r.handle(ev)
			r.drainEvictions()

		case <-r.done:
			return
		}
	}
}

func (r *Room) handle(ev event) {
	switch ev.kind {
	case eventInbound:
		r.handleInbound(ev.client, ev.msg)

	case eventReject:
		if ev.err != nil && r.isLive(ev.client) {
			r.sendError(ev.client, ev.err, "")
		}

	case eventDisconnect:
		r.handleDisconnect(ev.client)

	case eventQuery:
		ev.query()
	}
}

// teardown closes every remaining connection without announcing anything.
func (r *Room) teardown() {
	for id, c := range r.clients {
		c.state = StateClosed
		close(c.send)
		r.registry.Remove(id)
		delete(r.clients, id)
	}
	r.evictions = nil

	r.logger.Info().Msg("Room Run loop finished.")
}

// submit queues ev for the coordinator. It blocks until the event is accepted or the room stops.
func (r *Room) submit(ev event) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.inbox <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Connect registers c with the coordinator and waits until it is part of the room. It must be
// called before the client's pumps start; on error the pumps must not be started.
func (r *Room) Connect(c *Client) error {
	var added bool
	if !r.do(func() {
		added = r.handleConnect(c)
	}) {
		return ErrRoomClosed
	}

	if !added {
		return ErrDuplicateConnection
	}
	return nil
}

// Dispatch queues a validated inbound message from c.
func (r *Room) Dispatch(c *Client, msg Inbound) {
	r.submit(event{kind: eventInbound, client: c, msg: msg})
}

// Reject asks the coordinator to report err to c alone.
func (r *Room) Reject(c *Client, err *errs.CustomError) {
	r.submit(event{kind: eventReject, client: c, err: err})
}

// Disconnect queues the teardown of c. It is never dropped while the room runs, and repeated
// calls are harmless.
func (r *Room) Disconnect(c *Client) {
	r.submit(event{kind: eventDisconnect, client: c})
}

// do runs fn on the coordinator and waits for it. It returns false if the room stopped first.
func (r *Room) do(fn func()) bool {
	finished := make(chan struct{})

	if !r.submit(event{kind: eventQuery, query: func() {
		fn()
		close(finished)
	}}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-r.stopped:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Stats reports connection and participant counts along with the roster. Both counts are
// taken on the coordinator, so they agree with each other and with every event submitted
// before the call. A stopped room reports itself empty.
func (r *Room) Stats() Stats {
	stats := Stats{Users: []user.User{}}

	r.do(func() {
		snapshot := r.registry.Snapshot()

		stats.Connections = len(r.clients)
		stats.Participants = len(snapshot)
		stats.Users = Roster(snapshot)
	})

	return stats
}

func (r *Room) isLive(c *Client) bool {
	current, ok := r.clients[c.id]
	return ok && current == c
}

func (r *Room) handleConnect(c *Client) bool {
	if _, exists := r.clients[c.id]; exists {
		r.logger.Warn().Str("conn_id", c.id).Msg("Duplicate connection id rejected.")
		return false
	}

	c.state = StateConnected
	r.clients[c.id] = c

	r.logger.Debug().
		Str("conn_id", c.id).
		Int("total_connections", len(r.clients)).
		Msg("Connection opened.")

	return true
}

func (r *Room) handleInbound(c *Client, msg Inbound) {
	if !r.isLive(c) {
		return
	}

	switch {
	case msg.Type == TypeJoinVoice:
		r.handleJoin(c, msg.Join)

	case msg.Type == TypeLeaveVoice:
		r.handleLeave(c)

	case msg.Type == TypeMuteStatus:
		if r.registry.SetMuted(c.id, msg.Muted) {
			r.publishRoster()
		}

	case msg.Type.IsRoomWide():
		r.relayRoomWide(c, msg)

	case msg.Type.IsDirected():
		r.routeDirected(c, msg)

	default:
		r.sendError(c, errs.NewError(errs.ErrUnsupportedEvent, string(msg.Type)), "")
	}
}

func (r *Room) handleJoin(c *Client, p JoinPayload) {
	if r.opts.UniqueUserIDs {
		if holder, ok := r.registry.FindByUserID(p.UserID); ok && holder.ConnectionID != c.id {
			r.logger.Info().
				Str("conn_id", c.id).
				Str("user_id", p.UserID).
				Msg("Join rejected: userId already in use.")
			r.sendError(c, errs.NewError(errs.ErrDuplicateUserID, p.UserID), "")
			return
		}
	}

	participant := r.registry.Upsert(c.id, p.UserID, p.Username, p.Avatar)
	c.state = StateActive

	r.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", participant.UserID).
		Str("username", participant.DisplayName).
		Int("participants", r.registry.Len()).
		Msg("User joined voice.")

	r.announceJoin(participant)
	r.publishRoster()
}

func (r *Room) handleLeave(c *Client) {
	participant, ok := r.registry.Remove(c.id)
	if !ok {
		return
	}
	c.state = StateConnected

	r.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", participant.UserID).
		Int("participants", r.registry.Len()).
		Msg("User left voice.")

	r.announceLeave(participant)
	r.publishRoster()
}

func (r *Room) handleDisconnect(c *Client) {
	if !r.isLive(c) {
		return
	}

	delete(r.clients, c.id)
	c.state = StateClosed
	close(c.send)

	participant, ok := r.registry.Remove(c.id)

	r.logger.Debug().
		Str("conn_id", c.id).
		Bool("was_participant", ok).
		Int("total_connections", len(r.clients)).
		Msg("Connection closed.")

	if !ok {
		return
	}

	r.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", participant.UserID).
		Int("participants", r.registry.Len()).
		Msg("User disconnected from voice.")

	r.announceLeave(participant)
	r.publishRoster()
}

// drainEvictions disconnects clients whose send queue overflowed. A disconnect may overflow
// further queues, so the loop runs until nothing is pending.
func (r *Room) drainEvictions() {
	for len(r.evictions) > 0 {
		c := r.evictions[0]
		r.evictions = r.evictions[1:]

		r.logger.Warn().Str("conn_id", c.id).Msg("Evicting slow connection.")
		r.handleDisconnect(c)
	}
}
