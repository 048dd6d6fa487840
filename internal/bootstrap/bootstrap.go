// Package bootstrap builds a fresh session from a campaign and a list of
// professions. Deck expansion by count happens only here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
)

var (
	ErrNoProfessions = errors.New("at least one profession is required")
	ErrNoRoles       = errors.New("profession has no role cards")
)

const defaultHP = 10

type Request struct {
	CampaignID  string   `json:"campaignId"`
	Professions []string `json:"professions"`
	Name        string   `json:"name,omitempty"`
}

// Overridable in tests.
var newPlayerID = defaultPlayerID

func defaultPlayerID() string { return uuid.NewString() }

func NewSession(ctx context.Context, cat store.Catalog, req Request) (game.Session, error) {
	if len(req.Professions) == 0 {
		return game.Session{}, ErrNoProfessions
	}

	roles, err := cat.CardsByType(ctx, game.CardPlayer)
	if err != nil {
		return game.Session{}, fmt.Errorf("load role cards: %w", err)
	}
	skills, err := cat.CardsByType(ctx, game.CardSkill)
	if err != nil {
		return game.Session{}, fmt.Errorf("load skill cards: %w", err)
	}
	camp, err := cat.Campaign(ctx, req.CampaignID)
	if err != nil {
		return game.Session{}, fmt.Errorf("load campaign: %w", err)
	}

	players := make([]game.Player, len(req.Professions))
	for i, prof := range req.Professions {
		p, err := newPlayer(prof, i, len(req.Professions), roles, skills)
		if err != nil {
			return game.Session{}, err
		}
		players[i] = p
	}

	s := game.Session{
		Name:       req.Name,
		CampaignID: camp.ID,
		Players:    players,
		State:      deal(camp),
	}
	if s.Name == "" {
		s.Name = camp.Name
	}
	return s, nil
}

func newPlayer(profession string, index, total int, roles, skills []game.Card) (game.Player, error) {
	var available []game.Card
	for _, c := range roles {
		if c.Profession == profession {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return game.Player{}, fmt.Errorf("%w: %q", ErrNoRoles, profession)
	}
	role := available[0]

	var deck []game.Card
	for _, c := range skills {
		if c.Role == profession {
			deck = append(deck, expand(c, c.Count)...)
		}
	}

	hp := role.HP
	if hp == 0 {
		hp = defaultHP
	}
	return game.Player{
		ID:             newPlayerID(),
		RoleCard:       role,
		Profession:     profession,
		AvailableRoles: available,
		Name:           role.Name,
		ImgURL:         role.ImgURL,
		Color:          game.PlayerColors[index%len(game.PlayerColors)],
		HP:             hp,
		MaxHP:          hp,
		Stealth:        role.Stealth,
		Tags:           []string{},
		HandResource:   []game.Card{},
		HandSkill:      []game.Card{},
		SkillDeck:      game.Shuffle(deck),
		SkillDiscard:   []game.Card{},
		Discard:        []game.Card{},
		Equipment:      []game.Equipment{},
		X:              50 + (float64(index)-float64(total)/2)*5,
		Y:              50,
	}, nil
}

// deal distributes campaign cards into the shared decks. Resources and
// enemies are multiplied by their configured count; other types appear once.
func deal(camp store.Campaign) game.GameState {
	var red, blue, green, shop, enemy, support, boss, daynight, special, maps []game.Card

	for _, cc := range camp.Cards {
		c := cc.Card
		c.Color = cc.Color
		switch c.Type {
		case game.CardResource:
			copies := expand(c, cc.Count)
			switch cc.Color {
			case "BLUE":
				blue = append(blue, copies...)
			case "GREEN":
				green = append(green, copies...)
			case "SHOP":
				shop = append(shop, copies...)
			default:
				red = append(red, copies...)
			}
		case game.CardEnemy:
			enemy = append(enemy, expand(c, cc.Count)...)
		case game.CardMap:
			maps = append(maps, c)
		case game.CardSupport:
			support = append(support, c)
		case game.CardBoss:
			boss = append(boss, c)
		case game.CardDaynight:
			daynight = append(daynight, c)
		case game.CardSpecialCharacter:
			special = append(special, c)
		}
	}

	cells := game.GridSize * game.GridSize
	return game.GameState{
		CampaignName:            camp.Name,
		RedDeck:                 game.Shuffle(red),
		BlueDeck:                game.Shuffle(blue),
		GreenDeck:               game.Shuffle(green),
		ShopDeck:                game.Shuffle(shop),
		PublicDiscard:           []game.Card{},
		EnemyDeck:               game.Shuffle(enemy),
		EnemyDiscard:            []game.Card{},
		SupportDeck:             game.Shuffle(support),
		SupportDiscard:          []game.Card{},
		BossDeck:                game.Shuffle(boss),
		BossDiscard:             []game.Card{},
		DaynightDeck:            game.Shuffle(daynight),
		DaynightDiscard:         []game.Card{},
		SpecialCharacterDeck:    game.Shuffle(special),
		SpecialCharacterDiscard: []game.Card{},
		MapCards:                append([]game.Card{}, maps...),
		PlacedMap:               make([]*game.PlacedMapTile, cells),
		TerrainGrid:             make([]bool, cells),
		MapDiscard:              []game.Card{},
		MapMarkers:              []game.MapMarker{},
	}
}

func expand(c game.Card, count int) []game.Card {
	if count < 1 {
		count = 1
	}
	out := make([]game.Card, count)
	for i := range out {
		out[i] = c
	}
	return out
}
