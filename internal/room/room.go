package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// Join registers a peer. The room owns Outbox from here on and closes it
// when the peer leaves, is dropped, or the room shuts down.
type Join struct {
	ClientID string
	Outbox   chan []byte
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// Forward delivers a frame from a local peer to every other local peer.
type Forward struct {
	From    string
	Payload []byte
}

func (Forward) isRoomMsg() {}

// Remote delivers a frame that arrived from another relay instance. It has
// no local sender, so every local peer receives it.
type Remote struct{ Payload []byte }

func (Remote) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	SessionID  string
	NumClients int
	Delivered  int
	Dropped    int
}

// Room is the actor owning one session's membership. Payloads are opaque
// bytes; the room never decodes them.
type Room struct {
	id        string
	inbox     chan Msg
	clients   map[string]chan []byte
	delivered int
	dropped   int
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, sessionID string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	log = logging.OrNop(log)

	r := &Room{
		id:      sessionID,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan []byte),
		log:     log.With(zap.String("session_id", sessionID)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Send queues m for the room. It reports false once the room is gone.
func (r *Room) Send(m Msg) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Done is closed when the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = msg.Outbox
				r.deliver(msg.ClientID, msg.Outbox, protocol.MustEncode(protocol.Connected{SessionID: r.id}))
				r.log.Info("peer joined", zap.String("client_id", msg.ClientID), zap.Int("peers", len(r.clients)))

			case Leave:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
					r.log.Info("peer left", zap.String("client_id", msg.ClientID), zap.Int("peers", len(r.clients)))
				}

			case Forward:
				for id, ch := range r.clients {
					if id != msg.From {
						r.deliver(id, ch, msg.Payload)
					}
				}

			case Remote:
				for id, ch := range r.clients {
					r.deliver(id, ch, msg.Payload)
				}

			case GetState:
				msg.Reply <- View{
					SessionID:  r.id,
					NumClients: len(r.clients),
					Delivered:  r.delivered,
					Dropped:    r.dropped,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// deliver never blocks the room. A peer whose outbox is full is dropped;
// closing its outbox tells the connection handler to hang up.
func (r *Room) deliver(id string, ch chan []byte, payload []byte) {
	select {
	case ch <- payload:
		r.delivered++
	default:
		close(ch)
		delete(r.clients, id)
		r.dropped++
		r.log.Warn("dropping slow peer", zap.String("client_id", id))
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}
