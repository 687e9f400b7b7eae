package models

import (
	"sosseats/src/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 string              `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	EventID            string              `gorm:"type:uuid;uniqueIndex:idx_orders_payment" json:"event_id"`
	BuyerID            *string             `gorm:"type:uuid" json:"buyer_id,omitempty"`
	BuyerWalletAddress *string             `json:"buyer_wallet_address,omitempty"`
	BuyerName          string              `json:"buyer_name,omitempty"`
	BuyerEmail         string              `json:"buyer_email,omitempty"`
	OrderNumber        string              `gorm:"uniqueIndex" json:"order_number"`
	TotalAmount        decimal.Decimal     `gorm:"type:numeric(12,2)" json:"total_amount"`
	Currency           string              `json:"currency"`
	PaymentMethod      types.PaymentMethod `gorm:"uniqueIndex:idx_orders_payment" json:"payment_method"`
	PaymentStatus      types.PaymentStatus `gorm:"default:'pending'" json:"payment_status"`
	TransactionHash    *string             `gorm:"uniqueIndex:idx_orders_payment" json:"transaction_hash,omitempty"`
	OrderStatus        types.OrderStatus   `gorm:"default:'pending'" json:"order_status"`

	Items []OrderItem `gorm:"foreignKey:order_id" json:"items,omitempty"`

	types.Timestamps
}

type OrderItem struct {
	ID           string          `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	OrderID      string          `gorm:"type:uuid" json:"order_id"`
	TicketTypeID string          `gorm:"type:uuid" json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	TotalPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_price"`
	TicketNumber string          `json:"ticket_number,omitempty"`

	TicketType *TicketType `gorm:"foreignKey:ticket_type_id" json:"ticket_type,omitempty"`
	Guests     []Guest     `gorm:"foreignKey:order_item_id" json:"guests,omitempty"`

	types.Timestamps
}
