package game

import "encoding/json"

// Opt is a field that may be absent from a partial document. Presence, not
// zero-ness, decides whether it overwrites: a present JSON null sets Set.
type Opt[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Set: true} }

// IsZero lets `omitzero` drop absent fields when encoding.
func (o Opt[T]) IsZero() bool { return !o.Set }

func (o Opt[T]) MarshalJSON() ([]byte, error) { return json.Marshal(o.Value) }

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

func (o Opt[T]) apply(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}

// GameStateFragment is a partial GameState. ApplyTo overwrites exactly the
// fields that are present.
type GameStateFragment struct {
	CampaignName            Opt[string]           `json:"campaignName,omitzero"`
	RedDeck                 Opt[[]Card]           `json:"redDeck,omitzero"`
	BlueDeck                Opt[[]Card]           `json:"blueDeck,omitzero"`
	GreenDeck               Opt[[]Card]           `json:"greenDeck,omitzero"`
	ShopDeck                Opt[[]Card]           `json:"shopDeck,omitzero"`
	PublicDiscard           Opt[[]Card]           `json:"publicDiscard,omitzero"`
	EnemyDeck               Opt[[]Card]           `json:"enemyDeck,omitzero"`
	EnemyDiscard            Opt[[]Card]           `json:"enemyDiscard,omitzero"`
	SupportDeck             Opt[[]Card]           `json:"supportDeck,omitzero"`
	SupportDiscard          Opt[[]Card]           `json:"supportDiscard,omitzero"`
	BossDeck                Opt[[]Card]           `json:"bossDeck,omitzero"`
	BossDiscard             Opt[[]Card]           `json:"bossDiscard,omitzero"`
	DaynightDeck            Opt[[]Card]           `json:"daynightDeck,omitzero"`
	DaynightDiscard         Opt[[]Card]           `json:"daynightDiscard,omitzero"`
	SpecialCharacterDeck    Opt[[]Card]           `json:"specialCharacterDeck,omitzero"`
	SpecialCharacterDiscard Opt[[]Card]           `json:"specialCharacterDiscard,omitzero"`
	MapCards                Opt[[]Card]           `json:"mapCards,omitzero"`
	PlacedMap               Opt[[]*PlacedMapTile] `json:"placedMap,omitzero"`
	TerrainGrid             Opt[[]bool]           `json:"terrainGrid,omitzero"`
	GameStarted             Opt[bool]             `json:"gameStarted,omitzero"`
	MapDiscard              Opt[[]Card]           `json:"mapDiscard,omitzero"`
	MapMarkers              Opt[[]MapMarker]      `json:"mapMarkers,omitzero"`
	PlayedCard              Opt[*PlayedCard]      `json:"playedCard,omitzero"`
}

func (f GameStateFragment) ApplyTo(g *GameState) {
	f.CampaignName.apply(&g.CampaignName)
	f.RedDeck.apply(&g.RedDeck)
	f.BlueDeck.apply(&g.BlueDeck)
	f.GreenDeck.apply(&g.GreenDeck)
	f.ShopDeck.apply(&g.ShopDeck)
	f.PublicDiscard.apply(&g.PublicDiscard)
	f.EnemyDeck.apply(&g.EnemyDeck)
	f.EnemyDiscard.apply(&g.EnemyDiscard)
	f.SupportDeck.apply(&g.SupportDeck)
	f.SupportDiscard.apply(&g.SupportDiscard)
	f.BossDeck.apply(&g.BossDeck)
	f.BossDiscard.apply(&g.BossDiscard)
	f.DaynightDeck.apply(&g.DaynightDeck)
	f.DaynightDiscard.apply(&g.DaynightDiscard)
	f.SpecialCharacterDeck.apply(&g.SpecialCharacterDeck)
	f.SpecialCharacterDiscard.apply(&g.SpecialCharacterDiscard)
	f.MapCards.apply(&g.MapCards)
	f.PlacedMap.apply(&g.PlacedMap)
	f.TerrainGrid.apply(&g.TerrainGrid)
	f.GameStarted.apply(&g.GameStarted)
	f.MapDiscard.apply(&g.MapDiscard)
	f.MapMarkers.apply(&g.MapMarkers)
	f.PlayedCard.apply(&g.PlayedCard)
}

// FullFragment marks every field of g present.
func FullFragment(g GameState) GameStateFragment {
	g = g.Clone()
	return GameStateFragment{
		CampaignName:            Some(g.CampaignName),
		RedDeck:                 Some(g.RedDeck),
		BlueDeck:                Some(g.BlueDeck),
		GreenDeck:               Some(g.GreenDeck),
		ShopDeck:                Some(g.ShopDeck),
		PublicDiscard:           Some(g.PublicDiscard),
		EnemyDeck:               Some(g.EnemyDeck),
		EnemyDiscard:            Some(g.EnemyDiscard),
		SupportDeck:             Some(g.SupportDeck),
		SupportDiscard:          Some(g.SupportDiscard),
		BossDeck:                Some(g.BossDeck),
		BossDiscard:             Some(g.BossDiscard),
		DaynightDeck:            Some(g.DaynightDeck),
		DaynightDiscard:         Some(g.DaynightDiscard),
		SpecialCharacterDeck:    Some(g.SpecialCharacterDeck),
		SpecialCharacterDiscard: Some(g.SpecialCharacterDiscard),
		MapCards:                Some(g.MapCards),
		PlacedMap:               Some(g.PlacedMap),
		TerrainGrid:             Some(g.TerrainGrid),
		GameStarted:             Some(g.GameStarted),
		MapDiscard:              Some(g.MapDiscard),
		MapMarkers:              Some(g.MapMarkers),
		PlayedCard:              Some(g.PlayedCard),
	}
}

// PlayerFragment is the subset a player device may send: the shared discard
// and the resource decks. Map, battlefield and host-only decks stay out so a
// phone cannot clobber them.
func PlayerFragment(g GameState) GameStateFragment {
	g = g.Clone()
	return GameStateFragment{
		PublicDiscard: Some(g.PublicDiscard),
		RedDeck:       Some(g.RedDeck),
		BlueDeck:      Some(g.BlueDeck),
		GreenDeck:     Some(g.GreenDeck),
		ShopDeck:      Some(g.ShopDeck),
	}
}

// Patch is a partial Session document: the store's update payload. The
// fragment is embedded so the JSON stays flat (`players`, `redDeck`, ...).
type Patch struct {
	Name                    Opt[string]      `json:"name,omitzero"`
	Players                 Opt[[]Player]    `json:"players,omitzero"`
	ActiveEnemies           Opt[[]Combatant] `json:"activeEnemies,omitzero"`
	ActiveBosses            Opt[[]Combatant] `json:"activeBosses,omitzero"`
	ActiveSupports          Opt[[]Combatant] `json:"activeSupports,omitzero"`
	ActiveSpecialCharacters Opt[[]Combatant] `json:"activeSpecialCharacters,omitzero"`
	GameStateFragment
}

func (p Patch) ApplyTo(s *Session) {
	p.Name.apply(&s.Name)
	p.Players.apply(&s.Players)
	p.ActiveEnemies.apply(&s.ActiveEnemies)
	p.ActiveBosses.apply(&s.ActiveBosses)
	p.ActiveSupports.apply(&s.ActiveSupports)
	p.ActiveSpecialCharacters.apply(&s.ActiveSpecialCharacters)
	p.GameStateFragment.ApplyTo(&s.State)
}

// FullPatch is the host's snapshot write: everything except identity. The
// played card slot is display-only and is not persisted.
func FullPatch(s Session) Patch {
	s = s.Clone()
	frag := FullFragment(s.State)
	frag.PlayedCard = Opt[*PlayedCard]{}
	return Patch{
		Name:                    Some(s.Name),
		Players:                 Some(s.Players),
		ActiveEnemies:           Some(s.ActiveEnemies),
		ActiveBosses:            Some(s.ActiveBosses),
		ActiveSupports:          Some(s.ActiveSupports),
		ActiveSpecialCharacters: Some(s.ActiveSpecialCharacters),
		GameStateFragment:       frag,
	}
}

// LitePatch is what a player device persists.
func LitePatch(s Session) Patch {
	s = s.Clone()
	return Patch{
		Players:           Some(s.Players),
		GameStateFragment: PlayerFragment(s.State),
	}
}
