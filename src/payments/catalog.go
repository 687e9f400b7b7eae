package payments

import (
	"context"
	"errors"

	"sosseats/src/models"

	"gorm.io/gorm"
)

// Catalog reads events and ticket types.
type Catalog interface {
	Event(ctx context.Context, id string) (*models.Event, error)
	TicketTypes(ctx context.Context, eventID string, ids []string) ([]models.TicketType, error)
}

type GormCatalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) Event(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := c.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&event).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *GormCatalog) TicketTypes(ctx context.Context, eventID string, ids []string) ([]models.TicketType, error) {
	var tts []models.TicketType
	err := c.db.WithContext(ctx).
		Where("event_id = ? AND id IN ?", eventID, ids).
		Find(&tts).
		Error
	return tts, err
}
