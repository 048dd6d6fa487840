package syncclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
)

const DefaultPollInterval = 10 * time.Second

// Poller is the degraded path for a device without a live connection: it
// re-reads the stored session on a fixed interval while Status reports
// anything other than connected.
type Poller struct {
	Store     store.SessionStore
	SessionID string
	Mode      store.Mode
	Interval  time.Duration
	// Status is consulted before each poll. Nil means always poll.
	Status    func() Status
	OnSession func(game.Session)
	Log       *zap.Logger
}

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := logging.OrNop(p.Log)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if p.Status != nil && p.Status() == StatusConnected {
				continue
			}
			s, err := p.Store.Get(ctx, p.SessionID, p.Mode)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("poll failed", zap.String("session_id", p.SessionID), zap.Error(err))
				continue
			}
			p.OnSession(s)
		}
	}
}
