package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
)

func player(id string, version, hp int) game.Player {
	return game.Player{ID: id, Name: id, HP: hp, MaxHP: 10, Version: version}
}

func TestStaleRemoteIsIgnored(t *testing.T) {
	local := []game.Player{player("p", 3, 7)}

	got, res := Players(local, []game.Player{player("p", 2, 1)})

	assert.Equal(t, local, got)
	assert.Equal(t, []string{"p"}, res.Kept)
	assert.Empty(t, res.Updated)
}

func TestEqualVersionIsIgnored(t *testing.T) {
	local := []game.Player{player("p", 3, 7)}

	got, _ := Players(local, []game.Player{player("p", 3, 1)})
	assert.Equal(t, 7, got[0].HP)
}

func TestNewerRemoteReplacesWholesale(t *testing.T) {
	l := player("p", 3, 7)
	l.Tags = []string{"poisoned"}
	l.Gold = 12

	r := player("p", 5, 4)
	r.HandSkill = []game.Card{{ID: "s", Name: "Slash", Type: game.CardSkill}}

	got, res := Players([]game.Player{l}, []game.Player{r})

	assert.Equal(t, r, got[0])
	assert.Nil(t, got[0].Tags, "fields the remote never touched are replaced too")
	assert.Equal(t, 0, got[0].Gold)
	assert.Equal(t, []string{"p"}, res.Updated)
}

func TestUnknownRemotePlayerIsIgnored(t *testing.T) {
	local := []game.Player{player("p", 1, 5)}

	got, res := Players(local, []game.Player{player("ghost", 9, 5)})

	require.Len(t, got, 1)
	assert.Equal(t, "p", got[0].ID)
	assert.Equal(t, []string{"ghost"}, res.Ignored)
}

func TestMissingVersionCountsAsZero(t *testing.T) {
	local := []game.Player{{ID: "p", HP: 3}}

	got, _ := Players(local, []game.Player{{ID: "p", HP: 9}})
	assert.Equal(t, 3, got[0].HP)

	got, _ = Players(local, []game.Player{{ID: "p", HP: 9, Version: 1}})
	assert.Equal(t, 9, got[0].HP)
}

func TestMergeIsOrderInsensitive(t *testing.T) {
	base := []game.Player{player("p", 1, 5), player("q", 1, 5)}
	s1 := []game.Player{player("p", 2, 4), player("q", 4, 2)}
	s2 := []game.Player{player("p", 6, 1), player("q", 3, 3)}

	a, _ := Players(base, s1)
	a, _ = Players(a, s2)
	b, _ := Players(base, s2)
	b, _ = Players(b, s1)

	assert.Equal(t, a, b)
	assert.Equal(t, 6, a[0].Version)
	assert.Equal(t, 4, a[1].Version)
}

func TestMergeIsIdempotent(t *testing.T) {
	base := []game.Player{player("p", 1, 5)}
	remote := []game.Player{player("p", 2, 4)}

	once, _ := Players(base, remote)
	twice, _ := Players(once, remote)
	assert.Equal(t, once, twice)
}

func TestMergeDoesNotAliasRemote(t *testing.T) {
	r := player("p", 2, 4)
	r.Tags = []string{"a"}
	remote := []game.Player{r}

	got, _ := Players([]game.Player{player("p", 1, 5)}, remote)
	remote[0].Tags[0] = "b"
	assert.Equal(t, "a", got[0].Tags[0])
}

func TestDetailFollowsNewerRemote(t *testing.T) {
	view := player("p", 3, 7)

	got, changed := Detail(view, []game.Player{player("p", 2, 1)})
	assert.False(t, changed)
	assert.Equal(t, view, got)

	got, changed = Detail(view, []game.Player{player("x", 9, 1), player("p", 4, 2)})
	assert.True(t, changed)
	assert.Equal(t, 2, got.HP)
}

func TestApplyOverwritesPresentSessionFields(t *testing.T) {
	s := game.Session{
		Players: []game.Player{player("p", 1, 5)},
		State: game.GameState{
			RedDeck:    []game.Card{{ID: "r1"}},
			MapMarkers: []game.MapMarker{{ID: "m"}},
		},
		ActiveEnemies: []game.Combatant{{ID: "e1"}},
	}
	data := protocol.SyncData{
		Players:   []game.Player{player("p", 2, 9)},
		GameState: game.GameStateFragment{RedDeck: game.Some([]game.Card{})},
	}

	got, res := Apply(s, data)

	assert.Empty(t, got.State.RedDeck)
	assert.Len(t, got.State.MapMarkers, 1, "absent keys are left alone")
	assert.Len(t, got.ActiveEnemies, 1)
	assert.Equal(t, 9, got.Players[0].HP)
	assert.Equal(t, []string{"p"}, res.Updated)
	assert.Len(t, s.State.RedDeck, 1, "input is not mutated")
}

func TestApplyReplacesEnemiesWhenPresent(t *testing.T) {
	s := game.Session{ActiveEnemies: []game.Combatant{{ID: "e1"}, {ID: "e2"}}}

	got, _ := Apply(s, protocol.SyncData{ActiveEnemies: game.Some([]game.Combatant{{ID: "e3"}})})
	require.Len(t, got.ActiveEnemies, 1)
	assert.Equal(t, "e3", got.ActiveEnemies[0].ID)
}
