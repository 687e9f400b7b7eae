package models

import (
	"sosseats/src/types"

	"github.com/shopspring/decimal"
)

type TicketType struct {
	ID           string          `gorm:"primarykey;type:uuid" json:"id"`
	EventID      string          `gorm:"type:uuid" json:"event_id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Quantity     *int            `json:"quantity"`
	SoldQuantity int             `gorm:"default:0" json:"sold_quantity"`

	types.Timestamps
}

// Remaining is nil for unlimited ticket types.
func (t *TicketType) Remaining() *int {
	if t.Quantity == nil {
		return nil
	}
	r := *t.Quantity - t.SoldQuantity
	if r < 0 {
		r = 0
	}
	return &r
}

func (t *TicketType) Free() bool {
	return t.Price.IsZero()
}
