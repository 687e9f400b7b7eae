package models

import "sosseats/src/types"

type Event struct {
	ID                     string  `gorm:"primarykey;type:uuid" json:"id"`
	UserID                 *string `gorm:"type:uuid" json:"user_id,omitempty"`
	Name                   string  `json:"name"`
	Organizer              string  `json:"organizer,omitempty"`
	OrganizerWalletAddress *string `json:"organizer_wallet_address,omitempty"`

	TicketTypes []TicketType `gorm:"foreignKey:event_id" json:"ticket_types,omitempty"`

	types.Timestamps
}
