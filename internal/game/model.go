package game

import "time"

type CardType string

const (
	CardSkill            CardType = "SKILL"
	CardPlayer           CardType = "PLAYER"
	CardEnemy            CardType = "ENEMY"
	CardResource         CardType = "RESOURCE"
	CardMap              CardType = "MAP"
	CardSupport          CardType = "SUPPORT"
	CardBoss             CardType = "BOSS"
	CardDaynight         CardType = "DAYNIGHT"
	CardSpecialCharacter CardType = "SPECIAL_CHARACTER"
)

// Card is one physical copy of a catalog card. Copies of the same catalog
// card share ID; a card is located by its zone and index only.
type Card struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	ImgURL      string   `json:"imgUrl,omitempty"`
	ThumbURL    string   `json:"thumbUrl,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        CardType `json:"type"`
	HP          int      `json:"hp,omitempty"`
	Attack      int      `json:"attack,omitempty"`
	Stealth     int      `json:"stealth,omitempty"`
	Cost        int      `json:"cost,omitempty"`
	Role        string   `json:"role,omitempty"` // owner tag for skill cards
	Profession  string   `json:"profession,omitempty"`
	Level       int      `json:"level,omitempty"`
	Color       string   `json:"color,omitempty"`
	MapNumber   int      `json:"mapNumber,omitempty"`
	Count       int      `json:"count,omitempty"`
}

func (c Card) IsResource() bool { return c.Type == CardResource }

type Equipment struct {
	Card   Card     `json:"card"`
	Labels []string `json:"labels"`
	Ammo   int      `json:"ammo"`
}

type Player struct {
	ID             string      `json:"id"`
	RoleCard       Card        `json:"roleCard"`
	Profession     string      `json:"profession,omitempty"`
	AvailableRoles []Card      `json:"availableRoles,omitempty"`
	Name           string      `json:"name"`
	ImgURL         string      `json:"imgUrl"`
	Color          string      `json:"color"`
	HP             int         `json:"hp"`
	MaxHP          int         `json:"maxHp"`
	Stealth        int         `json:"stealth"`
	Hunger         int         `json:"hunger"`
	Gold           int         `json:"gold"`
	Tags           []string    `json:"tags"`
	HandResource   []Card      `json:"handResource"`
	HandSkill      []Card      `json:"handSkill"`
	SkillDeck      []Card      `json:"skillDeck"`
	SkillDiscard   []Card      `json:"skillDiscard"`
	Discard        []Card      `json:"discard"`
	Equipment      []Equipment `json:"equipment"`
	X              float64     `json:"x"`
	Y              float64     `json:"y"`
	// Version is bumped on every local mutation and only used to pick the
	// newer copy of a player during merge. Absent means 0.
	Version int `json:"_version"`
}

// Combatant is an enemy, boss, support or special character on the field.
type Combatant struct {
	ID              string `json:"id"`
	Card            Card   `json:"card"`
	CurrentHP       int    `json:"currentHp"`
	MaxHP           int    `json:"maxHp"`
	BoundToPlayerID string `json:"boundToPlayerId,omitempty"`
}

type PlacedMapTile struct {
	Card     Card `json:"card"`
	Revealed bool `json:"revealed"`
}

type MapMarker struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// PlayedCard is the single "last played card" display slot.
type PlayedCard struct {
	Card        Card   `json:"card"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	PlayerColor string `json:"playerColor"`
	Timestamp   int64  `json:"timestamp"` // unix millis
}

// GameState holds the session-level fields. None of them carry a version;
// they merge by plain overwrite.
type GameState struct {
	CampaignName            string           `json:"campaignName"`
	RedDeck                 []Card           `json:"redDeck"`
	BlueDeck                []Card           `json:"blueDeck"`
	GreenDeck               []Card           `json:"greenDeck"`
	ShopDeck                []Card           `json:"shopDeck"`
	PublicDiscard           []Card           `json:"publicDiscard"`
	EnemyDeck               []Card           `json:"enemyDeck"`
	EnemyDiscard            []Card           `json:"enemyDiscard"`
	SupportDeck             []Card           `json:"supportDeck"`
	SupportDiscard          []Card           `json:"supportDiscard"`
	BossDeck                []Card           `json:"bossDeck"`
	BossDiscard             []Card           `json:"bossDiscard"`
	DaynightDeck            []Card           `json:"daynightDeck"`
	DaynightDiscard         []Card           `json:"daynightDiscard"`
	SpecialCharacterDeck    []Card           `json:"specialCharacterDeck"`
	SpecialCharacterDiscard []Card           `json:"specialCharacterDiscard"`
	MapCards                []Card           `json:"mapCards"`
	PlacedMap               []*PlacedMapTile `json:"placedMap"`
	TerrainGrid             []bool           `json:"terrainGrid"`
	GameStarted             bool             `json:"gameStarted"`
	MapDiscard              []Card           `json:"mapDiscard"`
	MapMarkers              []MapMarker      `json:"mapMarkers"`
	PlayedCard              *PlayedCard      `json:"playedCard"`
}

type Session struct {
	ID                      string      `json:"id"`
	Name                    string      `json:"name"`
	CampaignID              string      `json:"campaignId"`
	Players                 []Player    `json:"players"`
	State                   GameState   `json:"gameState"`
	ActiveEnemies           []Combatant `json:"activeEnemies"`
	ActiveBosses            []Combatant `json:"activeBosses"`
	ActiveSupports          []Combatant `json:"activeSupports"`
	ActiveSpecialCharacters []Combatant `json:"activeSpecialCharacters"`
	CreatedAt               time.Time   `json:"createdAt"`
	UpdatedAt               time.Time   `json:"updatedAt"`
}

// GridSize is the side of the square map grid.
const GridSize = 9

var PlayerColors = []string{"#f59e0b", "#3b82f6", "#10b981", "#ef4444", "#8b5cf6", "#ec4899", "#14b8a6", "#f97316"}

func (s *Session) Player(id string) (*Player, int) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], i
		}
	}
	return nil, -1
}

// Clone returns a deep copy so rules can work on it without aliasing the
// caller's slices.
func (s Session) Clone() Session {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.Clone()
	}
	out.State = s.State.Clone()
	out.ActiveEnemies = cloneCombatants(s.ActiveEnemies)
	out.ActiveBosses = cloneCombatants(s.ActiveBosses)
	out.ActiveSupports = cloneCombatants(s.ActiveSupports)
	out.ActiveSpecialCharacters = cloneCombatants(s.ActiveSpecialCharacters)
	return out
}

func (p Player) Clone() Player {
	out := p
	out.AvailableRoles = cloneCards(p.AvailableRoles)
	out.Tags = cloneSlice(p.Tags)
	out.HandResource = cloneCards(p.HandResource)
	out.HandSkill = cloneCards(p.HandSkill)
	out.SkillDeck = cloneCards(p.SkillDeck)
	out.SkillDiscard = cloneCards(p.SkillDiscard)
	out.Discard = cloneCards(p.Discard)
	if p.Equipment != nil {
		out.Equipment = make([]Equipment, len(p.Equipment))
		for i, e := range p.Equipment {
			e.Labels = cloneSlice(e.Labels)
			out.Equipment[i] = e
		}
	}
	return out
}

func (g GameState) Clone() GameState {
	out := g
	out.RedDeck = cloneCards(g.RedDeck)
	out.BlueDeck = cloneCards(g.BlueDeck)
	out.GreenDeck = cloneCards(g.GreenDeck)
	out.ShopDeck = cloneCards(g.ShopDeck)
	out.PublicDiscard = cloneCards(g.PublicDiscard)
	out.EnemyDeck = cloneCards(g.EnemyDeck)
	out.EnemyDiscard = cloneCards(g.EnemyDiscard)
	out.SupportDeck = cloneCards(g.SupportDeck)
	out.SupportDiscard = cloneCards(g.SupportDiscard)
	out.BossDeck = cloneCards(g.BossDeck)
	out.BossDiscard = cloneCards(g.BossDiscard)
	out.DaynightDeck = cloneCards(g.DaynightDeck)
	out.DaynightDiscard = cloneCards(g.DaynightDiscard)
	out.SpecialCharacterDeck = cloneCards(g.SpecialCharacterDeck)
	out.SpecialCharacterDiscard = cloneCards(g.SpecialCharacterDiscard)
	out.MapCards = cloneCards(g.MapCards)
	out.MapDiscard = cloneCards(g.MapDiscard)
	out.TerrainGrid = cloneSlice(g.TerrainGrid)
	out.MapMarkers = cloneSlice(g.MapMarkers)
	if g.PlacedMap != nil {
		out.PlacedMap = make([]*PlacedMapTile, len(g.PlacedMap))
		for i, t := range g.PlacedMap {
			if t != nil {
				tile := *t
				out.PlacedMap[i] = &tile
			}
		}
	}
	if g.PlayedCard != nil {
		pc := *g.PlayedCard
		out.PlayedCard = &pc
	}
	return out
}

// Lite strips the map and battlefield payloads, keeping players, decks and
// discards.
func (s Session) Lite() Session {
	out := s
	out.State.MapCards = nil
	out.State.PlacedMap = nil
	out.State.TerrainGrid = nil
	out.State.MapDiscard = nil
	out.State.MapMarkers = nil
	out.ActiveEnemies = nil
	out.ActiveBosses = nil
	out.ActiveSupports = nil
	out.ActiveSpecialCharacters = nil
	return out
}

func cloneCards(c []Card) []Card { return cloneSlice(c) }

func cloneCombatants(c []Combatant) []Combatant { return cloneSlice(c) }

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
