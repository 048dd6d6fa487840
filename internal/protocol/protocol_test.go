package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

func TestDecodeKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Message
	}{
		{"connected", `{"type":"connected","sessionId":"abc"}`, Connected{SessionID: "abc"}},
		{"ping", `{"type":"ping"}`, Ping{}},
		{"pong", `{"type":"pong"}`, Pong{}},
		{"empty sync", `{"type":"sync","from":"main"}`, Sync{From: "main"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeSyncPayload(t *testing.T) {
	raw := `{"type":"sync","from":"player-1","data":{"players":[{"id":"q","_version":4}],"gameState":{"publicDiscard":[]}}}`

	m, err := Decode([]byte(raw))
	require.NoError(t, err)
	s, ok := m.(Sync)
	require.True(t, ok)
	assert.Equal(t, "player-1", s.From)
	require.Len(t, s.Data.Players, 1)
	assert.Equal(t, 4, s.Data.Players[0].Version)
	assert.True(t, s.Data.GameState.PublicDiscard.Set)
	assert.False(t, s.Data.GameState.RedDeck.Set)
	assert.False(t, s.Data.ActiveEnemies.Set)
}

func TestDecodeRejectsGracefully(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"sync","data":{"players":"nope"}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeSyncRoundTrip(t *testing.T) {
	in := Sync{From: "main", Data: SyncData{
		Players:       []game.Player{{ID: "q", Name: "Q", Version: 2}},
		GameState:     game.GameStateFragment{GameStarted: game.Some(true)},
		ActiveEnemies: game.Some([]game.Combatant{}),
	}}
	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)
	s := out.(Sync)
	assert.Equal(t, "main", s.From)
	assert.Equal(t, 2, s.Data.Players[0].Version)
	assert.True(t, s.Data.GameState.GameStarted.Value)
	assert.True(t, s.Data.ActiveEnemies.Set)
}

func TestEncodePlayedCard(t *testing.T) {
	pc := game.PlayedCard{Card: game.Card{ID: "c", Name: "Fireball", Type: game.CardSkill}, PlayerID: "r", PlayerName: "R", Timestamp: 42}
	b, err := Encode(PlayedCard{Card: pc})
	require.NoError(t, err)

	env, err := Peek(b)
	require.NoError(t, err)
	assert.Equal(t, TypePlayedCard, env.Type)

	m, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, PlayedCard{Card: pc}, m)
}
