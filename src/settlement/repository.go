package settlement

import (
	"context"
	"encoding/json"
	"errors"

	"sosseats/src/models"
	"sosseats/src/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderParams struct {
	EventID            string
	BuyerID            *string
	BuyerWalletAddress *string
	BuyerName          string
	BuyerEmail         string
	OrderNumber        string
	TotalAmount        decimal.Decimal
	Currency           string
	PaymentMethod      types.PaymentMethod
	TransactionHash    string
	Items              []types.OrderLine
}

// ProcedureResult is the row returned by the order procedures.
type ProcedureResult struct {
	Success        bool    `gorm:"column:success"`
	OrderID        *string `gorm:"column:order_id"`
	TicketsClaimed int     `gorm:"column:tickets_claimed"`
	ErrorMessage   *string `gorm:"column:error_message"`
}

// WalletOwner is the row returned by check_wallet_exists.
type WalletOwner struct {
	Exists      bool    `gorm:"column:exists"`
	UserID      *string `gorm:"column:user_id"`
	Username    *string `gorm:"column:username"`
	DisplayName *string `gorm:"column:display_name"`
}

func (w *WalletOwner) Name() string {
	if w.DisplayName != nil && *w.DisplayName != "" {
		return *w.DisplayName
	}
	if w.Username != nil {
		return *w.Username
	}
	return ""
}

type Repository interface {
	FindOrderByPayment(ctx context.Context, txHash, eventID string, method types.PaymentMethod) (*models.Order, error)
	CheckWalletExists(ctx context.Context, wallet string) (*WalletOwner, error)
	FindUser(ctx context.Context, id string) (*models.User, error)
	CreatePaidOrder(ctx context.Context, p OrderParams) (*ProcedureResult, error)
	CreateFreeOrder(ctx context.Context, p OrderParams) (*ProcedureResult, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var errNoProcedureRow = errors.New("order procedure returned no row")

func (r *GormRepository) FindOrderByPayment(ctx context.Context, txHash, eventID string, method types.PaymentMethod) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("transaction_hash = ? AND event_id = ? AND payment_method = ?", txHash, eventID, method).
		Take(&order).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepository) CheckWalletExists(ctx context.Context, wallet string) (*WalletOwner, error) {
	var rows []WalletOwner
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM check_wallet_exists(wallet_address_param := ?)", wallet).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &WalletOwner{}, nil
	}
	return &rows[0], nil
}

func (r *GormRepository) FindUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&user).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type itemPayload struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

func itemsJSON(items []types.OrderLine) (string, error) {
	payload := make([]itemPayload, 0, len(items))
	for _, it := range items {
		payload = append(payload, itemPayload{
			TicketTypeID: it.TicketTypeID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice(),
		})
	}
	b, err := json.Marshal(payload)
	return string(b), err
}

func (r *GormRepository) CreatePaidOrder(ctx context.Context, p OrderParams) (*ProcedureResult, error) {
	items, err := itemsJSON(p.Items)
	if err != nil {
		return nil, err
	}
	return r.callProcedure(ctx, `SELECT * FROM create_paid_ticket_order_with_items(
		p_event_id := ?, p_buyer_id := ?, p_buyer_wallet_address := ?, p_buyer_name := ?, p_buyer_email := ?,
		p_order_number := ?, p_total_amount := ?, p_currency := ?, p_payment_method := ?, p_transaction_hash := ?,
		p_items := ?::jsonb)`,
		p.EventID, p.BuyerID, p.BuyerWalletAddress, p.BuyerName, p.BuyerEmail,
		p.OrderNumber, p.TotalAmount, p.Currency, string(p.PaymentMethod), p.TransactionHash,
		items,
	)
}

func (r *GormRepository) CreateFreeOrder(ctx context.Context, p OrderParams) (*ProcedureResult, error) {
	items, err := itemsJSON(p.Items)
	if err != nil {
		return nil, err
	}
	return r.callProcedure(ctx, `SELECT * FROM create_free_ticket_order_with_items(
		p_event_id := ?, p_buyer_id := ?, p_buyer_wallet_address := ?, p_buyer_name := ?, p_buyer_email := ?,
		p_order_number := ?, p_transaction_hash := ?, p_items := ?::jsonb)`,
		p.EventID, p.BuyerID, p.BuyerWalletAddress, p.BuyerName, p.BuyerEmail,
		p.OrderNumber, p.TransactionHash, items,
	)
}

func (r *GormRepository) callProcedure(ctx context.Context, query string, args ...any) (*ProcedureResult, error) {
	var rows []ProcedureResult
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoProcedureRow
	}
	return &rows[0], nil
}
