package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/room"
)

type HubMsg interface{ isHubMsg() }

// Acquire returns the room for SessionID, creating it if needed, and takes
// one reference on it.
type Acquire struct {
	SessionID string
	Reply     chan *room.Room
}

// Release drops one reference. The last release shuts the room down and
// forgets it.
type Release struct {
	SessionID string
}

type GetRoom struct {
	SessionID string
	Reply     chan *room.Room
}

// Deliver hands a frame from another relay instance to the local room, if
// there is one.
type Deliver struct {
	SessionID string
	Payload   []byte
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

type Stats struct {
	Rooms map[string]int // session id -> live references
}

func (Acquire) isHubMsg()     {}
func (Release) isHubMsg()     {}
func (GetRoom) isHubMsg()     {}
func (Deliver) isHubMsg()     {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type entry struct {
	room *room.Room
	refs int
}

// Hub is the registry of rooms. Only its loop touches the map.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*entry
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log = logging.OrNop(log)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*entry),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Acquire is the blocking form of the Acquire message. It returns nil if ctx
// ends or the hub is gone first.
func (h *Hub) Acquire(ctx context.Context, sessionID string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, Acquire{SessionID: sessionID, Reply: reply}) {
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		// the reference is already taken; give it back
		h.send(context.Background(), Release{SessionID: sessionID})
		return nil
	}
}

func (h *Hub) Release(sessionID string) {
	h.send(context.Background(), Release{SessionID: sessionID})
}

// Deliver is the backplane's entry point.
func (h *Hub) Deliver(sessionID string, payload []byte) {
	h.send(context.Background(), Deliver{SessionID: sessionID, Payload: payload})
}

func (h *Hub) Shutdown() {
	h.send(context.Background(), ShutdownHub{})
	<-h.ctx.Done()
}

func (h *Hub) send(ctx context.Context, m HubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Acquire:
				e := h.rooms[msg.SessionID]
				if e == nil {
					e = &entry{room: room.New(h.ctx, msg.SessionID, h.log)}
					h.rooms[msg.SessionID] = e
					h.log.Debug("room opened", zap.String("session_id", msg.SessionID))
				}
				e.refs++
				msg.Reply <- e.room

			case Release:
				e := h.rooms[msg.SessionID]
				if e == nil {
					break
				}
				e.refs--
				if e.refs <= 0 {
					e.room.Send(room.Shutdown{})
					delete(h.rooms, msg.SessionID)
					h.log.Debug("room closed", zap.String("session_id", msg.SessionID))
				}

			case GetRoom:
				if e := h.rooms[msg.SessionID]; e != nil {
					msg.Reply <- e.room
				} else {
					msg.Reply <- nil
				}

			case Deliver:
				if e := h.rooms[msg.SessionID]; e != nil {
					e.room.Send(room.Remote{Payload: msg.Payload})
				}

			case GetStats:
				s := Stats{Rooms: make(map[string]int, len(h.rooms))}
				for id, e := range h.rooms {
					s.Rooms[id] = e.refs
				}
				msg.Reply <- s

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, e := range h.rooms {
		e.room.Send(room.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
