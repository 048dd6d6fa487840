package game

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var ErrPlayerNotFound = errors.New("player not found")
var ErrCardNotFound = errors.New("card not found")
var ErrEmptyDeck = errors.New("deck is empty")
var ErrUnknownZone = errors.New("unknown zone")
var ErrCombatantNotFound = errors.New("combatant not found")
var ErrUnsupportedAction = errors.New("unsupported action")
var ErrSamePlayer = errors.New("gift to self")
var ErrInvalidValue = errors.New("invalid value")

type ActionType string

const (
	ActDraw             ActionType = "draw"
	ActDiscard          ActionType = "discard"
	ActPlay             ActionType = "play"
	ActEquip            ActionType = "equip"
	ActUnequip          ActionType = "unequip"
	ActGift             ActionType = "gift"
	ActRecover          ActionType = "recover"
	ActDrawCombatant    ActionType = "draw_combatant"
	ActFieldFromDeck    ActionType = "field_from_deck"
	ActPromote          ActionType = "promote"
	ActReturnToDeck     ActionType = "return_to_deck"
	ActDiscardCombatant ActionType = "discard_combatant"
	ActCombatantHP      ActionType = "combatant_hp"
	ActBindCombatant    ActionType = "bind_combatant"
	ActDrawDaynight     ActionType = "draw_daynight"
	ActAdjustStat       ActionType = "adjust_stat"
	ActAddTag           ActionType = "add_tag"
	ActRemoveTag        ActionType = "remove_tag"
	ActAddLabel         ActionType = "add_label"
	ActRemoveLabel      ActionType = "remove_label"
	ActAmmo             ActionType = "ammo"
	ActMove             ActionType = "move"
	ActClearPlayed      ActionType = "clear_played"
	ActSwitchRole       ActionType = "switch_role"
	ActGiveBoss         ActionType = "give_boss"
	ActDeckToDiscard    ActionType = "deck_to_discard"
	ActRestoreDaynight  ActionType = "restore_daynight"

	// host map setup and play
	ActPlaceTile        ActionType = "place_tile"
	ActPlaceFromDiscard ActionType = "place_from_discard"
	ActToggleTerrain    ActionType = "toggle_terrain"
	ActRandomFill       ActionType = "random_fill"
	ActRevealTile       ActionType = "reveal_tile"
	ActDiscardTile      ActionType = "discard_tile"
	ActClearMap         ActionType = "clear_map"
	ActStartGame        ActionType = "start_game"
	ActAddMarker        ActionType = "add_marker"
	ActMoveMarker       ActionType = "move_marker"
	ActRemoveMarker     ActionType = "remove_marker"
)

type Deck string

const (
	DeckRed   Deck = "red"
	DeckBlue  Deck = "blue"
	DeckGreen Deck = "green"
	DeckShop  Deck = "shop"
	DeckSkill Deck = "skill" // the acting player's own skill deck
)

type Hand string

const (
	HandResource Hand = "resource"
	HandSkill    Hand = "skill"
)

// Pile names a discard zone cards can be recovered from.
type Pile string

const (
	PilePersonal Pile = "personal"
	PileSkill    Pile = "skill"
	PilePublic   Pile = "public"
)

// Field names a battlefield collection together with its deck and discard.
type Field string

const (
	FieldEnemy            Field = "enemy"
	FieldBoss             Field = "boss"
	FieldSupport          Field = "support"
	FieldSpecialCharacter Field = "special_character"
)

type Stat string

const (
	StatHP      Stat = "hp"
	StatMaxHP   Stat = "maxHp"
	StatStealth Stat = "stealth"
	StatHunger  Stat = "hunger"
	StatGold    Stat = "gold"
)

// Action is one user intent against the local session. Which fields matter
// depends on Type.
type Action struct {
	Type        ActionType `json:"type"`
	PlayerID    string     `json:"playerId,omitempty"`
	TargetID    string     `json:"targetId,omitempty"`
	Deck        Deck       `json:"deck,omitempty"`
	Hand        Hand       `json:"hand,omitempty"`
	Pile        Pile       `json:"pile,omitempty"`
	Field       Field      `json:"field,omitempty"`
	Index       int        `json:"index"`
	SubIndex    int        `json:"subIndex"`
	CombatantID string     `json:"combatantId,omitempty"`
	MarkerID    string     `json:"markerId,omitempty"`
	Cell        int        `json:"cell"`
	Stat        Stat       `json:"stat,omitempty"`
	Delta       int        `json:"delta,omitempty"`
	Text        string     `json:"text,omitempty"`
	Color       string     `json:"color,omitempty"`
	X           float64    `json:"x,omitempty"`
	Y           float64    `json:"y,omitempty"`
	At          time.Time  `json:"-"`
}

// Outcome reports what Apply changed beyond the returned session.
type Outcome struct {
	Touched []string    // players whose version was bumped, once each
	Played  *PlayedCard // set when the action fills the played card slot
}

// Apply runs one action against s and returns the new session. s itself is
// never modified; on error the input session is returned unchanged.
func Apply(s Session, a Action) (Outcome, Session, error) {
	next := s.Clone()
	t := &txn{s: &next, at: a.At}
	if t.at.IsZero() {
		t.at = now()
	}

	if err := t.run(a); err != nil {
		return Outcome{}, s, err
	}
	for _, id := range t.touched {
		p, _ := next.Player(id)
		p.Version++
	}
	return Outcome{Touched: t.touched, Played: t.played}, next, nil
}

type txn struct {
	s       *Session
	at      time.Time
	touched []string
	played  *PlayedCard
}

func (t *txn) touch(id string) {
	if !slices.Contains(t.touched, id) {
		t.touched = append(t.touched, id)
	}
}

func (t *txn) player(id string) (*Player, error) {
	p, _ := t.s.Player(id)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

func (t *txn) run(a Action) error {
	switch a.Type {
	case ActDraw:
		return t.draw(a)
	case ActDiscard:
		return t.discardFromHand(a)
	case ActPlay:
		return t.play(a)
	case ActEquip:
		return t.equip(a)
	case ActUnequip:
		return t.unequip(a)
	case ActGift:
		return t.gift(a)
	case ActRecover:
		return t.recover(a)
	case ActDrawCombatant, ActFieldFromDeck, ActPromote, ActReturnToDeck,
		ActDiscardCombatant, ActCombatantHP, ActBindCombatant:
		return t.combatant(a)
	case ActDrawDaynight:
		return t.drawDaynight()
	case ActAdjustStat, ActAddTag, ActRemoveTag, ActAddLabel, ActRemoveLabel, ActAmmo, ActMove:
		return t.sheet(a)
	case ActClearPlayed:
		t.s.State.PlayedCard = nil
		return nil
	case ActSwitchRole:
		return t.switchRole(a)
	case ActGiveBoss:
		return t.giveBoss(a)
	case ActDeckToDiscard:
		return t.deckToDiscard(a)
	case ActRestoreDaynight:
		g := &t.s.State
		card, rest, ok := removeAt(g.DaynightDiscard, a.Index)
		if !ok {
			return ErrCardNotFound
		}
		g.DaynightDiscard = rest
		g.DaynightDeck = append(g.DaynightDeck, card)
		return nil
	case ActPlaceTile, ActPlaceFromDiscard, ActToggleTerrain, ActRandomFill,
		ActRevealTile, ActDiscardTile, ActClearMap, ActStartGame:
		return t.board(a)
	case ActAddMarker, ActMoveMarker, ActRemoveMarker:
		return t.marker(a)
	default:
		return ErrUnsupportedAction
	}
}

func (t *txn) draw(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}

	if a.Deck == DeckSkill {
		if len(p.SkillDeck) == 0 {
			if len(p.SkillDiscard) == 0 {
				return ErrEmptyDeck
			}
			p.SkillDeck = p.SkillDiscard
			shuffleCards(p.SkillDeck)
			p.SkillDiscard = []Card{}
		}
		card, rest := p.SkillDeck[0], p.SkillDeck[1:]
		p.SkillDeck = rest
		p.HandSkill = append(p.HandSkill, card)
		t.touch(p.ID)
		return nil
	}

	deck, err := t.resourceDeck(a.Deck)
	if err != nil {
		return err
	}
	if len(*deck) == 0 {
		return ErrEmptyDeck
	}
	card := (*deck)[0]
	*deck = (*deck)[1:]
	p.HandResource = append(p.HandResource, card)
	t.touch(p.ID)
	return nil
}

func (t *txn) discardFromHand(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	card, err := takeFromHand(p, a.Hand, a.Index)
	if err != nil {
		return err
	}
	t.touch(p.ID)
	return t.route(card, p.ID)
}

func (t *txn) play(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	card, err := takeFromHand(p, a.Hand, a.Index)
	if err != nil {
		return err
	}
	t.touch(p.ID)
	pc := &PlayedCard{
		Card:        card,
		PlayerID:    p.ID,
		PlayerName:  p.Name,
		PlayerColor: p.Color,
		Timestamp:   t.at.UnixMilli(),
	}
	if err := t.route(card, p.ID); err != nil {
		return err
	}
	t.s.State.PlayedCard = pc
	played := *pc
	t.played = &played
	return nil
}

func (t *txn) equip(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	card, err := takeFromHand(p, a.Hand, a.Index)
	if err != nil {
		return err
	}
	p.Equipment = append(p.Equipment, Equipment{Card: card, Labels: []string{}, Ammo: 0})
	t.touch(p.ID)
	return nil
}

func (t *txn) unequip(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	if a.Index < 0 || a.Index >= len(p.Equipment) {
		return ErrCardNotFound
	}
	card := p.Equipment[a.Index].Card
	p.Equipment = slices.Delete(p.Equipment, a.Index, a.Index+1)
	t.touch(p.ID)
	return t.route(card, p.ID)
}

func (t *txn) gift(a Action) error {
	if a.PlayerID == a.TargetID {
		return ErrSamePlayer
	}
	from, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	to, err := t.player(a.TargetID)
	if err != nil {
		return err
	}
	card, err := takeFromHand(from, a.Hand, a.Index)
	if err != nil {
		return err
	}
	dst, err := handOf(to, a.Hand)
	if err != nil {
		return err
	}
	*dst = append(*dst, card)
	t.touch(from.ID)
	t.touch(to.ID)
	return nil
}

func (t *txn) recover(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}

	var pile *[]Card
	switch a.Pile {
	case PilePersonal, "":
		pile = &p.Discard
	case PileSkill:
		pile = &p.SkillDiscard
	case PilePublic:
		pile = &t.s.State.PublicDiscard
	default:
		return ErrUnknownZone
	}
	card, rest, ok := removeAt(*pile, a.Index)
	if !ok {
		return ErrCardNotFound
	}
	*pile = rest

	if card.Type == CardSkill {
		p.HandSkill = append(p.HandSkill, card)
	} else {
		p.HandResource = append(p.HandResource, card)
	}
	t.touch(p.ID)
	return nil
}

// switchRole swaps the player's role card for one of its available roles.
// Stats are kept.
func (t *txn) switchRole(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	if a.Index < 0 || a.Index >= len(p.AvailableRoles) {
		return ErrCardNotFound
	}
	role := p.AvailableRoles[a.Index]
	p.RoleCard = role
	p.Name = role.Name
	p.ImgURL = role.ImgURL
	t.touch(p.ID)
	return nil
}

// giveBoss hands a boss card straight from the boss deck to a player's
// resource hand.
func (t *txn) giveBoss(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}
	g := &t.s.State
	card, rest, ok := removeAt(g.BossDeck, a.Index)
	if !ok {
		return ErrCardNotFound
	}
	g.BossDeck = rest
	p.HandResource = append(p.HandResource, card)
	t.touch(p.ID)
	return nil
}

func (t *txn) deckToDiscard(a Action) error {
	deck, discard, _, err := t.fieldZones(a.Field)
	if err != nil {
		return err
	}
	card, rest, ok := removeAt(*deck, a.Index)
	if !ok {
		return ErrCardNotFound
	}
	*deck = rest
	*discard = prepend(*discard, card)
	return nil
}

// route sends a card that left a player's hand or equipment to its discard:
// resource cards to the shared discard, everything else to the personal
// discard of the player named by the card's owner tag, or the actor's own.
func (t *txn) route(card Card, actorID string) error {
	if card.IsResource() {
		t.s.State.PublicDiscard = prepend(t.s.State.PublicDiscard, card)
		return nil
	}

	owner := t.ownerOf(card)
	if owner == nil {
		p, err := t.player(actorID)
		if err != nil {
			return err
		}
		owner = p
	}
	owner.Discard = prepend(owner.Discard, card)
	t.touch(owner.ID)
	return nil
}

func (t *txn) ownerOf(card Card) *Player {
	if card.Role == "" {
		return nil
	}
	for i := range t.s.Players {
		if t.s.Players[i].Name == card.Role {
			return &t.s.Players[i]
		}
	}
	return nil
}

func (t *txn) resourceDeck(d Deck) (*[]Card, error) {
	switch d {
	case DeckRed, "":
		return &t.s.State.RedDeck, nil
	case DeckBlue:
		return &t.s.State.BlueDeck, nil
	case DeckGreen:
		return &t.s.State.GreenDeck, nil
	case DeckShop:
		return &t.s.State.ShopDeck, nil
	default:
		return nil, ErrUnknownZone
	}
}

func (t *txn) drawDaynight() error {
	g := &t.s.State
	if len(g.DaynightDeck) == 0 {
		return ErrEmptyDeck
	}
	card := g.DaynightDeck[0]
	g.DaynightDeck = g.DaynightDeck[1:]
	g.DaynightDiscard = prepend(g.DaynightDiscard, card)

	pc := PlayedCard{
		Card:        card,
		PlayerID:    SystemActorID,
		PlayerName:  "Day/Night",
		PlayerColor: "#6366f1",
		Timestamp:   t.at.UnixMilli(),
	}
	g.PlayedCard = &pc
	played := pc
	t.played = &played
	return nil
}

// SystemActorID marks played cards not played by any player.
const SystemActorID = "system"

func (t *txn) sheet(a Action) error {
	p, err := t.player(a.PlayerID)
	if err != nil {
		return err
	}

	switch a.Type {
	case ActAdjustStat:
		switch a.Stat {
		case StatHP:
			p.HP = min(max(0, p.HP+a.Delta), p.MaxHP)
		case StatMaxHP:
			p.MaxHP = max(0, p.MaxHP+a.Delta)
			p.HP = min(p.HP, p.MaxHP)
		case StatStealth:
			p.Stealth = max(0, p.Stealth+a.Delta)
		case StatHunger:
			p.Hunger = max(0, p.Hunger+a.Delta)
		case StatGold:
			p.Gold = max(0, p.Gold+a.Delta)
		default:
			return ErrInvalidValue
		}
	case ActAddTag:
		tag := strings.TrimSpace(a.Text)
		if tag == "" {
			return ErrInvalidValue
		}
		p.Tags = append(p.Tags, tag)
	case ActRemoveTag:
		if a.Index < 0 || a.Index >= len(p.Tags) {
			return ErrInvalidValue
		}
		p.Tags = slices.Delete(p.Tags, a.Index, a.Index+1)
	case ActAddLabel, ActRemoveLabel, ActAmmo:
		if a.Index < 0 || a.Index >= len(p.Equipment) {
			return ErrCardNotFound
		}
		eq := &p.Equipment[a.Index]
		switch a.Type {
		case ActAddLabel:
			label := strings.TrimSpace(a.Text)
			if label == "" {
				return ErrInvalidValue
			}
			eq.Labels = append(eq.Labels, label)
		case ActRemoveLabel:
			if a.SubIndex < 0 || a.SubIndex >= len(eq.Labels) {
				return ErrInvalidValue
			}
			eq.Labels = slices.Delete(eq.Labels, a.SubIndex, a.SubIndex+1)
		case ActAmmo:
			eq.Ammo = max(0, eq.Ammo+a.Delta)
		}
	case ActMove:
		p.X, p.Y = a.X, a.Y
	}

	t.touch(p.ID)
	return nil
}
