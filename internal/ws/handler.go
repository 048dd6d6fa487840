package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/fanout"
	"github.com/DoyleJ11/tabletop-sync/internal/hub"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
	"github.com/DoyleJ11/tabletop-sync/internal/room"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	// full session snapshots are well past the library's 32KiB default
	readLimit = 16 << 20
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
	// Backplane, when set, receives every forwarded frame for other instances.
	Backplane fanout.Publisher
	Log       *zap.Logger
}

// Handler serves /ws?sessionId=. Frames are forwarded to the other peers of
// the session's room without interpretation, except that ping is answered
// with pong and sync frames without a sender are stamped "unknown".
// Connections are never timed out for silence; only a transport close ends
// them.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := logging.OrNop(opts.Log)

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			http.Error(w, "missing sessionId", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}

		conn.SetReadLimit(readLimit)

		ctx := r.Context()
		rm := h.Acquire(ctx, sessionID)
		if rm == nil {
			conn.Close(websocket.StatusGoingAway, "relay shutting down")
			return
		}
		defer h.Release(sessionID)

		clientID := uuid.NewString()
		clog := log.With(zap.String("session_id", sessionID), zap.String("conn_id", clientID))

		out := make(chan []byte, outboxSize)
		rm.Send(room.Join{ClientID: clientID, Outbox: out})
		defer rm.Send(room.Leave{ClientID: clientID})
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Writer goroutine. The room closes out when it drops this peer or shuts
		// down; hanging up with a non-normal code makes the client reconnect.
		go func() {
			for payload := range out {
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					clog.Debug("write failed", zap.Error(err))
					conn.CloseNow()
					return
				}
			}
			conn.Close(websocket.StatusPolicyViolation, "dropped by relay")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Info("peer closed")
				default:
					clog.Info("connection lost", zap.Error(err))
				}
				return
			}

			env, err := protocol.Peek(data)
			if err != nil {
				clog.Warn("discarding malformed frame", zap.Error(err))
				continue
			}

			if env.Type == protocol.TypePing {
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, protocol.MustEncode(protocol.Pong{}))
				cancel()
				if err != nil && !errors.Is(err, context.Canceled) {
					clog.Debug("pong failed", zap.Error(err))
				}
				continue
			}

			if env.Type == protocol.TypeSync && env.From == "" {
				env.From = protocol.UnknownSender
			}
			payload, err := json.Marshal(env)
			if err != nil {
				clog.Warn("re-encode failed", zap.Error(err))
				continue
			}

			if !rm.Send(room.Forward{From: clientID, Payload: payload}) {
				return
			}
			if opts.Backplane != nil {
				if err := opts.Backplane.Publish(ctx, sessionID, payload); err != nil {
					clog.Warn("backplane publish failed", zap.Error(err))
				}
			}
		}
	}
}
