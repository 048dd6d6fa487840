// Package persist writes debounced session snapshots to the session store.
package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
)

const DefaultDebounce = 5 * time.Second

type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

type Options struct {
	Store     store.SessionStore
	SessionID string
	Debounce  time.Duration
	// Lite writes only players, the shared discard and the resource decks,
	// which is all a player device is allowed to persist.
	Lite     bool
	OnStatus func(Status)
	Log      *zap.Logger
}

// Bridge coalesces state changes into one write per quiet period. A failed
// write is not retried on its own; the next change re-arms the timer.
type Bridge struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *game.Session
	status  Status
	closed  bool

	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(opts Options) *Bridge {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := logging.OrNop(opts.Log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		opts:   opts,
		log:    log.With(zap.String("session_id", opts.SessionID)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Changed records the latest state and restarts the debounce timer. It is
// a no-op until the game has started.
func (b *Bridge) Changed(s game.Session) {
	if !s.State.GameStarted {
		return
	}
	snap := s.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending = &snap
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.opts.Debounce, b.fire)
}

func (b *Bridge) fire() {
	b.mu.Lock()
	snap := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if snap != nil {
		_ = b.write(b.ctx, *snap)
	}
}

// Flush cancels any pending debounce and writes s now.
func (b *Bridge) Flush(ctx context.Context, s game.Session) error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
	b.mu.Unlock()
	return b.write(ctx, s.Clone())
}

func (b *Bridge) write(ctx context.Context, s game.Session) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	patch := game.FullPatch(s)
	if b.opts.Lite {
		patch = game.LitePatch(s)
	}

	b.setStatus(StatusSaving)
	start := time.Now()
	if _, err := b.opts.Store.Update(ctx, b.opts.SessionID, patch); err != nil {
		b.setStatus(StatusError)
		b.log.Warn("snapshot write failed", zap.Error(err))
		return err
	}
	b.setStatus(StatusSaved)
	b.log.Debug("snapshot written", zap.Duration("took", time.Since(start)), zap.Bool("lite", b.opts.Lite))
	return nil
}

func (b *Bridge) setStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
	if b.opts.OnStatus != nil {
		b.opts.OnStatus(s)
	}
}

// Close drops any pending write and cancels one in flight.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
	b.mu.Unlock()
	b.cancel()
}
