package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentOverwritesOnlyPresentFields(t *testing.T) {
	g := GameState{
		RedDeck:     []Card{card("r1", CardResource)},
		BlueDeck:    []Card{card("b1", CardResource)},
		GameStarted: true,
		PlayedCard:  &PlayedCard{PlayerID: "q"},
	}

	var frag GameStateFragment
	require.NoError(t, json.Unmarshal([]byte(`{"redDeck":[],"playedCard":null}`), &frag))
	frag.ApplyTo(&g)

	assert.Empty(t, g.RedDeck)
	assert.Nil(t, g.PlayedCard, "explicit null clears the slot")
	assert.Equal(t, []Card{card("b1", CardResource)}, g.BlueDeck)
	assert.True(t, g.GameStarted)
}

func TestFragmentOmitsAbsentFieldsWhenEncoded(t *testing.T) {
	frag := GameStateFragment{PublicDiscard: Some([]Card{})}

	b, err := json.Marshal(frag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"publicDiscard":[]}`, string(b))
}

func TestPlayerFragmentIsRestricted(t *testing.T) {
	g := GameState{
		RedDeck:     []Card{card("r1", CardResource)},
		MapMarkers:  []MapMarker{{ID: "m"}},
		GameStarted: true,
	}
	b, err := json.Marshal(PlayerFragment(g))
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &keys))
	assert.Len(t, keys, 5)
	for _, k := range []string{"publicDiscard", "redDeck", "blueDeck", "greenDeck", "shopDeck"} {
		assert.Contains(t, keys, k)
	}
}

func TestPatchIsFlatJSON(t *testing.T) {
	var p Patch
	body := `{"players":[{"id":"q","name":"Q"}],"redDeck":[{"_id":"r1","name":"r1","type":"RESOURCE"}],"activeEnemies":[]}`
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	s := Session{
		Players:       []Player{{ID: "old"}},
		ActiveBosses:  []Combatant{{ID: "boss"}},
		ActiveEnemies: []Combatant{{ID: "e"}},
	}
	p.ApplyTo(&s)

	require.Len(t, s.Players, 1)
	assert.Equal(t, "q", s.Players[0].ID)
	assert.Equal(t, 0, s.Players[0].Version, "missing _version decodes as 0")
	assert.Equal(t, "r1", s.State.RedDeck[0].ID)
	assert.Empty(t, s.ActiveEnemies)
	assert.Len(t, s.ActiveBosses, 1)
}

func TestFullPatchRoundTripsSession(t *testing.T) {
	src := newTestSession()
	src.Name = "campaign night"
	src.ActiveEnemies = []Combatant{{ID: "e1", Card: card("e", CardEnemy), CurrentHP: 2, MaxHP: 3}}
	src.State.PlayedCard = &PlayedCard{PlayerID: "q"}

	b, err := json.Marshal(FullPatch(src))
	require.NoError(t, err)
	var p Patch
	require.NoError(t, json.Unmarshal(b, &p))

	var dst Session
	p.ApplyTo(&dst)
	assert.Equal(t, src.Name, dst.Name)
	assert.Equal(t, src.Players, dst.Players)
	assert.Equal(t, src.ActiveEnemies, dst.ActiveEnemies)
	assert.Equal(t, src.State.RedDeck, dst.State.RedDeck)
	assert.Nil(t, dst.State.PlayedCard)
}

func TestLiteDropsMapAndBattlefield(t *testing.T) {
	s := newTestSession()
	s.State.PlacedMap = []*PlacedMapTile{{Card: card("m", CardMap)}}
	s.State.MapMarkers = []MapMarker{{ID: "x"}}
	s.ActiveEnemies = []Combatant{{ID: "e"}}

	lite := s.Lite()
	assert.Nil(t, lite.State.PlacedMap)
	assert.Nil(t, lite.State.MapMarkers)
	assert.Nil(t, lite.ActiveEnemies)
	assert.Equal(t, s.Players, lite.Players)
	assert.Equal(t, s.State.RedDeck, lite.State.RedDeck)
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestSession()
	s.Players[0].Equipment = []Equipment{{Card: card("e", CardResource), Labels: []string{"a"}}}

	c := s.Clone()
	c.Players[0].Equipment[0].Labels[0] = "b"
	c.State.RedDeck[0].ID = "changed"

	assert.Equal(t, "a", s.Players[0].Equipment[0].Labels[0])
	assert.Equal(t, "r1", s.State.RedDeck[0].ID)
}
