package game

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Overridable in tests.
var shuffleCards = func(cards []Card) {
	rand.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

var shuffleCells = func(cells []int) {
	rand.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
}

var newCombatantID = uuid.NewString

var newMarkerID = func() string { return "marker-" + uuid.NewString() }

var now = time.Now

// Shuffle returns a shuffled copy of cards.
func Shuffle(cards []Card) []Card {
	out := cloneCards(cards)
	if out == nil {
		out = []Card{}
	}
	shuffleCards(out)
	return out
}

func handOf(p *Player, h Hand) (*[]Card, error) {
	switch h {
	case HandResource, "":
		return &p.HandResource, nil
	case HandSkill:
		return &p.HandSkill, nil
	default:
		return nil, ErrUnknownZone
	}
}

func takeFromHand(p *Player, h Hand, i int) (Card, error) {
	hand, err := handOf(p, h)
	if err != nil {
		return Card{}, err
	}
	card, rest, ok := removeAt(*hand, i)
	if !ok {
		return Card{}, ErrCardNotFound
	}
	*hand = rest
	return card, nil
}

func removeAt(cards []Card, i int) (Card, []Card, bool) {
	if i < 0 || i >= len(cards) {
		return Card{}, cards, false
	}
	card := cards[i]
	rest := make([]Card, 0, len(cards)-1)
	rest = append(rest, cards[:i]...)
	rest = append(rest, cards[i+1:]...)
	return card, rest, true
}

// prepend puts card on top of a discard pile.
func prepend(pile []Card, card Card) []Card {
	out := make([]Card, 0, len(pile)+1)
	out = append(out, card)
	return append(out, pile...)
}
