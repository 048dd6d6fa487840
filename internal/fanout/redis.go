package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/logging"
)

const DefaultPrefix = "tabletop:session:"

type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Redis publishes each frame on a per-session channel and pattern-subscribes
// to all of them. Frames are tagged with the publishing instance so an
// instance skips its own.
type Redis struct {
	client   *redis.Client
	instance string
	prefix   string
	log      *zap.Logger
}

func NewRedis(client *redis.Client, instanceID string, log *zap.Logger) *Redis {
	log = logging.OrNop(log)
	return &Redis{
		client:   client,
		instance: instanceID,
		prefix:   DefaultPrefix,
		log:      log.With(zap.String("instance_id", instanceID)),
	}
}

func (r *Redis) Channel(sessionID string) string { return r.prefix + sessionID }

func (r *Redis) Publish(ctx context.Context, sessionID string, payload []byte) error {
	b, err := json.Marshal(envelope{Origin: r.instance, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode backplane frame: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(sessionID), b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Run(ctx context.Context, deliver Deliver) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.log.Info("backplane subscribed", zap.String("pattern", r.prefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			sessionID, payload, ok := r.decode(m)
			if ok {
				deliver(sessionID, payload)
			}
		}
	}
}

func (r *Redis) decode(m *redis.Message) (string, []byte, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
		r.log.Warn("discarding malformed backplane frame", zap.String("channel", m.Channel), zap.Error(err))
		return "", nil, false
	}
	if env.Origin == r.instance {
		return "", nil, false
	}
	return strings.TrimPrefix(m.Channel, r.prefix), env.Payload, true
}

func (r *Redis) Close() error { return r.client.Close() }
