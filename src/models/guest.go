package models

import (
	"sosseats/src/types"
	"time"
)

type Guest struct {
	ID            string            `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	OrderItemID   string            `gorm:"type:uuid" json:"order_item_id"`
	EventID       string            `gorm:"type:uuid" json:"event_id"`
	Status        types.GuestStatus `gorm:"default:'pending'" json:"status"`
	WalletAddress *string           `json:"wallet_address,omitempty"`
	CheckInTime   *time.Time        `json:"check_in_time,omitempty"`

	types.Timestamps
}
