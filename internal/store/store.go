// Package store holds the durable session document and the read-only card
// catalog used to bootstrap new sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

var ErrNotFound = errors.New("not found")

type Mode int

const (
	ModeFull Mode = iota
	// ModeLite returns players, decks and discards only.
	ModeLite
)

type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CampaignID   string    `json:"campaignId"`
	CampaignName string    `json:"campaignName"`
	PlayerCount  int       `json:"playerCount"`
	GameStarted  bool      `json:"gameStarted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionStore persists whole session documents. Updates overwrite the
// fields present in the patch; the last successful write wins.
type SessionStore interface {
	Create(ctx context.Context, s game.Session) (game.Session, error)
	Get(ctx context.Context, id string, mode Mode) (game.Session, error)
	Update(ctx context.Context, id string, p game.Patch) (game.Session, error)
	Delete(ctx context.Context, id string) error
	// List returns summaries, most recently updated first. An empty
	// campaignID lists everything.
	List(ctx context.Context, campaignID string) ([]Summary, error)
}

// CampaignCard is one catalog card as configured in a campaign.
type CampaignCard struct {
	Card  game.Card `json:"card"`
	Color string    `json:"color,omitempty"` // RED, BLUE, GREEN, SHOP for resources
	Count int       `json:"count,omitempty"`
}

type Campaign struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Cards []CampaignCard `json:"cards"`
}

type Catalog interface {
	CardsByType(ctx context.Context, t game.CardType) ([]game.Card, error)
	Campaign(ctx context.Context, id string) (Campaign, error)
}

func summarize(s game.Session) Summary {
	return Summary{
		ID:           s.ID,
		Name:         s.Name,
		CampaignID:   s.CampaignID,
		CampaignName: s.State.CampaignName,
		PlayerCount:  len(s.Players),
		GameStarted:  s.State.GameStarted,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func view(s game.Session, mode Mode) game.Session {
	if mode == ModeLite {
		return s.Lite()
	}
	return s
}
