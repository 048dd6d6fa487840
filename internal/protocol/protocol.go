package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

var ErrMalformed = errors.New("malformed message")
var ErrUnknownType = errors.New("unknown message type")

type Type string

const (
	TypeConnected  Type = "connected"
	TypeSync       Type = "sync"
	TypePlayedCard Type = "played_card"
	TypePing       Type = "ping"
	TypePong       Type = "pong"
)

// UnknownSender is stamped on sync frames that arrive without a sender id.
const UnknownSender = "unknown"

// Envelope is the raw frame. Data stays undecoded so the relay can forward
// it without interpreting it.
type Envelope struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	From      string          `json:"from,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// SyncData is a partial or full snapshot. Every part is optional.
type SyncData struct {
	Players       []game.Player               `json:"players,omitempty"`
	GameState     game.GameStateFragment      `json:"gameState,omitzero"`
	ActiveEnemies game.Opt[[]game.Combatant] `json:"activeEnemies,omitzero"`
}

type Message interface{ isMessage() }

type Connected struct{ SessionID string }

type Sync struct {
	From string
	Data SyncData
}

type PlayedCard struct{ Card game.PlayedCard }

type Ping struct{}

type Pong struct{}

func (Connected) isMessage()  {}
func (Sync) isMessage()       {}
func (PlayedCard) isMessage() {}
func (Ping) isMessage()       {}
func (Pong) isMessage()       {}

// Peek decodes only the envelope.
func Peek(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Decode parses a frame into one of the known messages. Unknown types come
// back as ErrUnknownType so the caller can skip them.
func Decode(b []byte) (Message, error) {
	env, err := Peek(b)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeConnected:
		return Connected{SessionID: env.SessionID}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	case TypeSync:
		var data SyncData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return nil, fmt.Errorf("%w: sync data: %v", ErrMalformed, err)
			}
		}
		return Sync{From: env.From, Data: data}, nil
	case TypePlayedCard:
		var pc game.PlayedCard
		if err := json.Unmarshal(env.Data, &pc); err != nil {
			return nil, fmt.Errorf("%w: played card: %v", ErrMalformed, err)
		}
		return PlayedCard{Card: pc}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func Encode(m Message) ([]byte, error) {
	env := Envelope{}
	switch msg := m.(type) {
	case Connected:
		env.Type, env.SessionID = TypeConnected, msg.SessionID
	case Ping:
		env.Type = TypePing
	case Pong:
		env.Type = TypePong
	case Sync:
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return nil, err
		}
		env.Type, env.From, env.Data = TypeSync, msg.From, data
	case PlayedCard:
		data, err := json.Marshal(msg.Card)
		if err != nil {
			return nil, err
		}
		env.Type, env.Data = TypePlayedCard, data
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
	return json.Marshal(env)
}

// MustEncode is for fixed control frames that cannot fail to encode.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}
