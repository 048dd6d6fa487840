// Package syncclient keeps one device connected to its session room:
// connect, heartbeat, reconnect with exponential backoff, and dispatch of
// incoming frames with self-echo suppression.
package syncclient

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
)

var ErrMaxAttempts = errors.New("reconnect attempts exhausted")

type Status int32

const (
	StatusDisconnected Status = iota
	StatusReconnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const (
	DefaultHeartbeat   = 30 * time.Second
	DefaultMaxAttempts = 10
	writeTimeout       = 5 * time.Second
	readLimit          = 16 << 20
	outboxSize         = 64
)

// Handlers are called from the client's read goroutine, one at a time.
type Handlers struct {
	OnSync       func(from string, data protocol.SyncData)
	OnPlayedCard func(game.PlayedCard)
	OnStatus     func(Status)
}

type Options struct {
	// URL of the relay endpoint, e.g. ws://host:8080/ws. The session id is
	// added as a query parameter.
	URL         string
	SessionID   string
	ClientID    string
	Heartbeat   time.Duration
	MaxAttempts int
	Log         *zap.Logger
}

// Overridable in tests.
var sleep = func(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewBackOff is the reconnect schedule: 1s doubling to a 30s cap, no
// jitter.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

type Client struct {
	opts Options
	h    Handlers
	log  *zap.Logger

	status atomic.Int32

	mu   sync.Mutex
	conn *websocket.Conn
	out  chan []byte // queue of the live connection's writer, nil while disconnected

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options, h Handlers) *Client {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	log := logging.OrNop(opts.Log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		h:      h,
		log:    log.With(zap.String("session_id", opts.SessionID), zap.String("client_id", opts.ClientID)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *Client) Status() Status { return Status(c.status.Load()) }

func (c *Client) setStatus(s Status) {
	if Status(c.status.Swap(int32(s))) == s {
		return
	}
	c.log.Info("sync status", zap.Stringer("status", s))
	if c.h.OnStatus != nil {
		c.h.OnStatus(s)
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sessionId", c.opts.SessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run owns the connection until Close is called, ctx ends, or the reconnect
// budget is spent, in which case it returns ErrMaxAttempts and the status
// stays disconnected.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	bo := NewBackOff()
	attempts := 0
	for {
		conn, _, err := websocket.Dial(ctx, endpoint, nil)
		if err == nil {
			attempts = 0
			bo.Reset()
			code := c.serve(ctx, conn)
			if ctx.Err() != nil || code == websocket.StatusNormalClosure {
				c.setStatus(StatusDisconnected)
				return nil
			}
			c.log.Warn("connection closed", zap.Int("code", int(code)))
		} else {
			if ctx.Err() != nil {
				c.setStatus(StatusDisconnected)
				return nil
			}
			c.log.Warn("dial failed", zap.Error(err))
		}

		if attempts >= c.opts.MaxAttempts {
			c.setStatus(StatusDisconnected)
			c.log.Error("giving up", zap.Int("attempts", attempts))
			return ErrMaxAttempts
		}
		delay := bo.NextBackOff()
		attempts++
		c.setStatus(StatusReconnecting)
		c.log.Info("reconnecting", zap.Int("attempt", attempts), zap.Duration("delay", delay))
		if !sleep(ctx, delay) {
			c.setStatus(StatusDisconnected)
			return nil
		}
	}
}

// serve runs one connection to completion and returns its close code, or
// -1 if it ended without a close frame. When ctx ends the connection is
// closed with a normal closure so the relay does not see a drop.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) websocket.StatusCode {
	conn.SetReadLimit(readLimit)
	out := make(chan []byte, outboxSize)
	c.mu.Lock()
	c.conn = conn
	c.out = out
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	// Cancelling a read or write ctx drops the socket without a close
	// frame, so the connection's own goroutines do not inherit ctx.
	connCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.out = nil
		c.mu.Unlock()
		conn.CloseNow()
	}()
	go c.heartbeat(connCtx, conn)
	go c.writer(connCtx, conn, out)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closing")
		case <-connCtx.Done():
		}
	}()

	for {
		_, data, err := conn.Read(connCtx)
		if err != nil {
			return websocket.CloseStatus(err)
		}
		c.dispatch(data)
	}
}

// writer drains the send queue so callers never wait on the network.
func (c *Client) writer(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				c.log.Debug("send dropped", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(c.opts.Heartbeat)
	defer t.Stop()
	ping := protocol.MustEncode(protocol.Ping{})
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, ping)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	m, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		c.log.Debug("ignoring frame", zap.Error(err))
		return
	case err != nil:
		c.log.Warn("discarding malformed frame", zap.Error(err))
		return
	}

	switch msg := m.(type) {
	case protocol.Connected:
		c.log.Debug("joined room")
	case protocol.Sync:
		if msg.From == c.opts.ClientID {
			return
		}
		if c.h.OnSync != nil {
			c.h.OnSync(msg.From, msg.Data)
		}
	case protocol.PlayedCard:
		if c.h.OnPlayedCard != nil {
			c.h.OnPlayedCard(msg.Card)
		}
	case protocol.Pong, protocol.Ping:
	}
}

// SendSync queues data for the live connection and reports whether it was
// queued. Frames are dropped while disconnected or when the queue is full.
func (c *Client) SendSync(data protocol.SyncData) bool {
	return c.send(protocol.Sync{From: c.opts.ClientID, Data: data})
}

func (c *Client) SendPlayedCard(pc game.PlayedCard) bool {
	return c.send(protocol.PlayedCard{Card: pc})
}

func (c *Client) send(m protocol.Message) bool {
	b, err := protocol.Encode(m)
	if err != nil {
		c.log.Warn("encode failed", zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return false
	}
	select {
	case c.out <- b:
		return true
	default:
		c.log.Warn("send queue full, frame dropped")
		return false
	}
}

// Close tears the client down with a normal closure. Pending reconnect
// waits and the heartbeat stop with it; Done reports when Run has returned.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
	}
	c.cancel()
}

// Done is closed when Run has returned.
func (c *Client) Done() <-chan struct{} { return c.done }
