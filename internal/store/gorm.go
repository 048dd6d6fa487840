package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

// SessionRow is one session: a few indexed columns for listing plus the
// whole document as jsonb.
type SessionRow struct {
	ID           string         `gorm:"primaryKey"`
	Name         string         `gorm:"not null"`
	CampaignID   string         `gorm:"index"`
	CampaignName string
	PlayerCount  int
	GameStarted  bool
	Document     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

func (SessionRow) TableName() string { return "game_sessions" }

type CardRow struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Type        string `gorm:"index;not null"`
	ImgURL      string
	ThumbURL    string
	Description string
	HP          int
	Attack      int
	Stealth     int
	Cost        int
	Role        string `gorm:"index"`
	Profession  string `gorm:"index"`
	Level       int
	MapNumber   int
	Count       int
}

func (CardRow) TableName() string { return "cards" }

func (r CardRow) card() game.Card {
	return game.Card{
		ID:          r.ID,
		Name:        r.Name,
		Type:        game.CardType(r.Type),
		ImgURL:      r.ImgURL,
		ThumbURL:    r.ThumbURL,
		Description: r.Description,
		HP:          r.HP,
		Attack:      r.Attack,
		Stealth:     r.Stealth,
		Cost:        r.Cost,
		Role:        r.Role,
		Profession:  r.Profession,
		Level:       r.Level,
		MapNumber:   r.MapNumber,
		Count:       r.Count,
	}
}

type CampaignRow struct {
	ID    string            `gorm:"primaryKey"`
	Name  string            `gorm:"uniqueIndex;not null"`
	Cards []CampaignCardRow `gorm:"foreignKey:CampaignID"`
}

func (CampaignRow) TableName() string { return "campaigns" }

type CampaignCardRow struct {
	CampaignID string  `gorm:"primaryKey"`
	Position   int     `gorm:"primaryKey"`
	CardID     string  `gorm:"not null"`
	Card       CardRow `gorm:"foreignKey:CardID"`
	Color      string
	Count      int `gorm:"default:1"`
}

func (CampaignCardRow) TableName() string { return "campaign_cards" }

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&SessionRow{}, &CardRow{}, &CampaignRow{}, &CampaignCardRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type GormSessions struct {
	db *gorm.DB
}

func NewGormSessions(db *gorm.DB) *GormSessions { return &GormSessions{db: db} }

func encodeRow(s game.Session) (SessionRow, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return SessionRow{}, fmt.Errorf("encode session: %w", err)
	}
	return SessionRow{
		ID:           s.ID,
		Name:         s.Name,
		CampaignID:   s.CampaignID,
		CampaignName: s.State.CampaignName,
		PlayerCount:  len(s.Players),
		GameStarted:  s.State.GameStarted,
		Document:     datatypes.JSON(doc),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

func decodeRow(row SessionRow) (game.Session, error) {
	var s game.Session
	if err := json.Unmarshal(row.Document, &s); err != nil {
		return game.Session{}, fmt.Errorf("decode session %s: %w", row.ID, err)
	}
	s.ID = row.ID
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt
	return s, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return err
}

func (g *GormSessions) Create(ctx context.Context, s game.Session) (game.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt

	row, err := encodeRow(s)
	if err != nil {
		return game.Session{}, err
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return game.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (g *GormSessions) Get(ctx context.Context, id string, mode Mode) (game.Session, error) {
	var row SessionRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return game.Session{}, notFound(id, err)
	}
	s, err := decodeRow(row)
	if err != nil {
		return game.Session{}, err
	}
	return view(s, mode), nil
}

// Update reads, patches and rewrites the document under a row lock so two
// concurrent patches touching different keys both land.
func (g *GormSessions) Update(ctx context.Context, id string, p game.Patch) (game.Session, error) {
	var out game.Session
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row SessionRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error; err != nil {
			return notFound(id, err)
		}
		s, err := decodeRow(row)
		if err != nil {
			return err
		}
		p.ApplyTo(&s)
		s.UpdatedAt = time.Now().UTC()

		next, err := encodeRow(s)
		if err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		out = s
		return nil
	})
	return out, err
}

func (g *GormSessions) Delete(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Delete(&SessionRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (g *GormSessions) List(ctx context.Context, campaignID string) ([]Summary, error) {
	q := g.db.WithContext(ctx).Model(&SessionRow{}).
		Select("id", "name", "campaign_id", "campaign_name", "player_count", "game_started", "created_at", "updated_at").
		Order("updated_at DESC")
	if campaignID != "" {
		q = q.Where("campaign_id = ?", campaignID)
	}
	var rows []SessionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]Summary, len(rows))
	for i, r := range rows {
		out[i] = Summary{
			ID:           r.ID,
			Name:         r.Name,
			CampaignID:   r.CampaignID,
			CampaignName: r.CampaignName,
			PlayerCount:  r.PlayerCount,
			GameStarted:  r.GameStarted,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return out, nil
}

type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog { return &GormCatalog{db: db} }

func (c *GormCatalog) CardsByType(ctx context.Context, t game.CardType) ([]game.Card, error) {
	var rows []CardRow
	if err := c.db.WithContext(ctx).Where("type = ?", string(t)).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cards by type %s: %w", t, err)
	}
	out := make([]game.Card, len(rows))
	for i, r := range rows {
		out[i] = r.card()
	}
	return out, nil
}

func (c *GormCatalog) Campaign(ctx context.Context, id string) (Campaign, error) {
	var row CampaignRow
	err := c.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Cards.Card").
		First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Campaign{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
		}
		return Campaign{}, fmt.Errorf("load campaign: %w", err)
	}

	camp := Campaign{ID: row.ID, Name: row.Name, Cards: make([]CampaignCard, len(row.Cards))}
	for i, cc := range row.Cards {
		camp.Cards[i] = CampaignCard{Card: cc.Card.card(), Color: cc.Color, Count: cc.Count}
	}
	return camp, nil
}
