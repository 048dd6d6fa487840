// Package table is one device's view of a session. A single goroutine owns
// the session so local actions, remote syncs, poll reloads and timers never
// interleave.
package table

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/merge"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
)

var ErrClosed = errors.New("table closed")

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// DefaultSuppress is how long outbound syncs are held back after a remote
// merge.
const DefaultSuppress = 100 * time.Millisecond

type Syncer interface {
	SendSync(protocol.SyncData) bool
	SendPlayedCard(game.PlayedCard) bool
}

type Saver interface {
	Changed(game.Session)
}

type Options struct {
	Role     Role
	Sync     Syncer
	Saver    Saver
	Suppress time.Duration
	// OnChange sees every new session value, from the table goroutine.
	OnChange func(game.Session)
	Log      *zap.Logger
}

type Msg interface{ isTableMsg() }

type Do struct {
	Action game.Action
	Reply  chan Result
}

type Result struct {
	Outcome game.Outcome
	Err     error
}

type RemoteSync struct {
	From string
	Data protocol.SyncData
}

type RemotePlayed struct{ Card game.PlayedCard }

// Reload folds a session read from the store into local state. Players
// merge by version; the shared discard and resource decks are overwritten.
type Reload struct{ Session game.Session }

// Select opens a detail view on a player. An empty id closes it.
type Select struct{ PlayerID string }

type GetState struct{ Reply chan View }

type flushSync struct{}

type Shutdown struct{}

func (Do) isTableMsg()           {}
func (RemoteSync) isTableMsg()   {}
func (RemotePlayed) isTableMsg() {}
func (Reload) isTableMsg()       {}
func (Select) isTableMsg()       {}
func (GetState) isTableMsg()     {}
func (flushSync) isTableMsg()    {}
func (Shutdown) isTableMsg()     {}

type View struct {
	Session game.Session
	Detail  *game.Player
	// SyncHeld is true while an outbound sync waits for the suppression
	// window to end.
	SyncHeld bool
}

type Table struct {
	inbox   chan Msg
	session game.Session
	detail  *game.Player
	opts    Options
	log     *zap.Logger

	suppressUntil time.Time
	held          bool
	heldTimer     *time.Timer

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, s game.Session, opts Options) *Table {
	ctx, cancel := context.WithCancel(parent)
	if opts.Suppress <= 0 {
		opts.Suppress = DefaultSuppress
	}
	if opts.Role == "" {
		opts.Role = RoleHost
	}
	log := logging.OrNop(opts.Log)

	t := &Table{
		inbox:   make(chan Msg, 64),
		session: s.Clone(),
		opts:    opts,
		log:     log.With(zap.String("session_id", s.ID), zap.String("role", string(opts.Role))),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	go t.loop()
	return t
}

func (t *Table) send(m Msg) bool {
	if t.ctx.Err() != nil {
		return false
	}
	select {
	case t.inbox <- m:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// Do applies a local action and waits for the result.
func (t *Table) Do(ctx context.Context, a game.Action) (game.Outcome, error) {
	reply := make(chan Result, 1)
	if !t.send(Do{Action: a, Reply: reply}) {
		return game.Outcome{}, ErrClosed
	}
	select {
	case r := <-reply:
		return r.Outcome, r.Err
	case <-ctx.Done():
		return game.Outcome{}, ctx.Err()
	case <-t.ctx.Done():
		return game.Outcome{}, ErrClosed
	}
}

// Remote and Played have the sync client's callback shapes.
func (t *Table) Remote(from string, data protocol.SyncData) { t.send(RemoteSync{From: from, Data: data}) }

func (t *Table) Played(pc game.PlayedCard) { t.send(RemotePlayed{Card: pc}) }

func (t *Table) Reload(s game.Session) { t.send(Reload{Session: s}) }

func (t *Table) Select(playerID string) { t.send(Select{PlayerID: playerID}) }

func (t *Table) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !t.send(GetState{Reply: reply}) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-t.ctx.Done():
		return View{}, ErrClosed
	}
}

func (t *Table) Close() {
	t.send(Shutdown{})
	t.cancel()
}

func (t *Table) loop() {
	defer t.stopHeld()
	for {
		select {
		case <-t.ctx.Done():
			return

		case m := <-t.inbox:
			switch msg := m.(type) {
			case Do:
				out, err := t.apply(msg.Action)
				msg.Reply <- Result{Outcome: out, Err: err}

			case RemoteSync:
				t.mergeRemote(msg.From, msg.Data)

			case RemotePlayed:
				pc := msg.Card
				t.session.State.PlayedCard = &pc
				t.changed()

			case Reload:
				t.reload(msg.Session)

			case Select:
				t.selectPlayer(msg.PlayerID)

			case GetState:
				v := View{Session: t.session.Clone(), SyncHeld: t.held}
				if t.detail != nil {
					d := t.detail.Clone()
					v.Detail = &d
				}
				msg.Reply <- v

			case flushSync:
				t.heldTimer = nil
				if t.held {
					t.broadcast()
				}

			case Shutdown:
				t.cancel()
				return
			}
		}
	}
}

func (t *Table) apply(a game.Action) (game.Outcome, error) {
	out, next, err := game.Apply(t.session, a)
	if err != nil {
		t.log.Debug("action rejected", zap.String("action", string(a.Type)), zap.Error(err))
		return out, err
	}
	t.session = next
	t.refreshDetail(out.Touched)

	t.broadcast()
	if out.Played != nil && t.opts.Sync != nil {
		t.opts.Sync.SendPlayedCard(*out.Played)
	}
	if t.opts.Saver != nil {
		t.opts.Saver.Changed(t.session)
	}
	t.changed()
	return out, nil
}

// payload is what this device is allowed to broadcast. The host's full
// fragment includes the played card slot, so a cleared slot reaches peers as
// null.
func (t *Table) payload() protocol.SyncData {
	s := t.session.Clone()
	if t.opts.Role == RolePlayer {
		return protocol.SyncData{Players: s.Players, GameState: game.PlayerFragment(s.State)}
	}
	return protocol.SyncData{
		Players:       s.Players,
		GameState:     game.FullFragment(s.State),
		ActiveEnemies: game.Some(s.ActiveEnemies),
	}
}

// broadcast sends the current payload unless a remote merge just happened,
// in which case it is held and sent once the window closes.
func (t *Table) broadcast() {
	if t.opts.Sync == nil {
		return
	}
	if wait := t.suppressUntil.Sub(t.now()); wait > 0 {
		t.held = true
		if t.heldTimer == nil {
			t.heldTimer = time.AfterFunc(wait, func() { t.send(flushSync{}) })
		}
		t.log.Debug("sync held", zap.Duration("for", wait))
		return
	}
	t.held = false
	if !t.opts.Sync.SendSync(t.payload()) {
		t.log.Debug("sync dropped while disconnected")
	}
}

func (t *Table) stopHeld() {
	if t.heldTimer != nil {
		t.heldTimer.Stop()
		t.heldTimer = nil
	}
}

func (t *Table) mergeRemote(from string, data protocol.SyncData) {
	merged, res := merge.Apply(t.session, data)
	t.session = merged
	if t.detail != nil {
		if d, ok := merge.Detail(*t.detail, data.Players); ok {
			t.detail = &d
		}
	}
	t.suppressUntil = t.now().Add(t.opts.Suppress)
	t.log.Debug("merged remote sync",
		zap.String("from", from),
		zap.Strings("updated", res.Updated),
		zap.Strings("kept", res.Kept),
		zap.Strings("ignored", res.Ignored))
	t.changed()
}

func (t *Table) reload(s game.Session) {
	data := protocol.SyncData{Players: s.Players, GameState: game.PlayerFragment(s.State)}
	merged, res := merge.Apply(t.session, data)
	t.session = merged
	if t.detail != nil {
		if d, ok := merge.Detail(*t.detail, s.Players); ok {
			t.detail = &d
		}
	}
	t.log.Debug("reloaded from store", zap.Strings("updated", res.Updated))
	t.changed()
}

func (t *Table) selectPlayer(id string) {
	if id == "" {
		t.detail = nil
		return
	}
	p, _ := t.session.Player(id)
	if p == nil {
		t.detail = nil
		return
	}
	d := p.Clone()
	t.detail = &d
}

func (t *Table) refreshDetail(touched []string) {
	if t.detail == nil {
		return
	}
	for _, id := range touched {
		if id == t.detail.ID {
			t.selectPlayer(id)
			return
		}
	}
}

func (t *Table) changed() {
	if t.opts.OnChange != nil {
		t.opts.OnChange(t.session.Clone())
	}
}
