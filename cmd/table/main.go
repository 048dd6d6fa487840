// Command table is a headless table device. It loads a session, joins its
// relay room and applies actions read as JSON lines from stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tabletop-sync/internal/config"
	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/persist"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
	"github.com/DoyleJ11/tabletop-sync/internal/syncclient"
	"github.com/DoyleJ11/tabletop-sync/internal/table"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Device
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if cfg.SessionID == "" {
		return errors.New("TABLETOP_SESSION_ID is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	role := table.Role(cfg.Role)
	if role != table.RoleHost && role != table.RolePlayer {
		return fmt.Errorf("unknown role %q", cfg.Role)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("session_id", cfg.SessionID), zap.String("client_id", cfg.ClientID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := store.NewRemote(cfg.ServerURL, &http.Client{Timeout: cfg.RequestTimeout})
	mode := store.ModeFull
	if role == table.RolePlayer {
		mode = store.ModeLite
	}
	initial, err := sessions.Get(ctx, cfg.SessionID, mode)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	bridge := persist.New(persist.Options{
		Store:     sessions,
		SessionID: cfg.SessionID,
		Debounce:  cfg.SaveDebounce,
		Lite:      role == table.RolePlayer,
		Log:       log,
	})
	defer bridge.Close()

	endpoint, err := wsURL(cfg.ServerURL)
	if err != nil {
		return err
	}

	// The client's handlers only run inside Run, after tb is set.
	var tb *table.Table
	client := syncclient.New(syncclient.Options{
		URL:         endpoint,
		SessionID:   cfg.SessionID,
		ClientID:    cfg.ClientID,
		Heartbeat:   cfg.Heartbeat,
		MaxAttempts: cfg.MaxReconnects,
		Log:         log,
	}, syncclient.Handlers{
		OnSync:       func(from string, d protocol.SyncData) { tb.Remote(from, d) },
		OnPlayedCard: func(pc game.PlayedCard) { tb.Played(pc) },
	})

	tb = table.New(context.Background(), initial, table.Options{
		Role:  role,
		Sync:  client,
		Saver: bridge,
		Log:   log,
		OnChange: func(s game.Session) {
			log.Debug("session changed", zap.Int("players", len(s.Players)))
		},
	})
	defer tb.Close()

	poller := &syncclient.Poller{
		Store:     sessions,
		SessionID: cfg.SessionID,
		Mode:      mode,
		Interval:  cfg.PollInterval,
		Status:    client.Status,
		OnSession: tb.Reload,
		Log:       log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Run(gctx)
		if errors.Is(err, syncclient.ErrMaxAttempts) {
			log.Error("relay unreachable, falling back to polling", zap.Error(err))
			return nil
		}
		return err
	})
	g.Go(func() error { return poller.Run(gctx) })
	go readActions(gctx, os.Stdin, tb, log)

	<-ctx.Done()
	client.Close()
	err = g.Wait()

	flush(tb, bridge, cfg.RequestTimeout, log)
	return err
}

// flush writes the final state once more so the debounce window is not
// lost on exit.
func flush(tb *table.Table, bridge *persist.Bridge, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := tb.View(ctx)
	if err != nil || !v.Session.State.GameStarted {
		return
	}
	if err := bridge.Flush(ctx, v.Session); err != nil {
		log.Warn("final save failed", zap.Error(err))
	}
}

// wsURL maps the API base URL to its relay endpoint.
func wsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// readActions applies one JSON action per line until r is exhausted.
func readActions(ctx context.Context, r io.Reader, tb *table.Table, log *zap.Logger) {
	dec := json.NewDecoder(r)
	for {
		var a game.Action
		if err := dec.Decode(&a); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("stopped reading actions", zap.Error(err))
			}
			return
		}
		a.At = time.Now()
		out, err := tb.Do(ctx, a)
		if err != nil {
			log.Warn("action rejected", zap.String("action", string(a.Type)), zap.Error(err))
			continue
		}
		log.Info("action applied", zap.String("action", string(a.Type)), zap.Strings("touched", out.Touched))
	}
}
