// Package settlement turns confirmed payments into orders. Inventory is
// claimed by the store's order procedures in a single call, so this package
// never reads and then writes ticket counts itself.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sosseats/src/monitoring"
	"sosseats/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const TopicOrdersSettled = "orders.settled"

// inventoryMarker is the message the order procedures return when a ticket
// type is sold out.
const inventoryMarker = "not enough tickets available"

var (
	ErrInventoryConflict   = errors.New("not enough tickets available, please adjust your selection and try again")
	ErrOrderFailed         = errors.New("order could not be created")
	ErrInvalidConfirmation = errors.New("invalid payment confirmation")
)

type Buyer struct {
	UserID        string
	WalletAddress string
	Name          string
	Email         string
}

// Confirmation is a payment the caller has already verified.
type Confirmation struct {
	EventID         string
	PaymentMethod   types.PaymentMethod
	TransactionHash string
	Amount          decimal.Decimal
	Currency        string
	Items           []types.OrderLine
	Buyer           Buyer
	Free            bool
}

type Result struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number,omitempty"`
	TicketsClaimed int    `json:"tickets_claimed"`
	Duplicate      bool   `json:"duplicate"`
}

// Publisher emits settlement events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Reconciler struct {
	repo           Repository
	publisher      Publisher
	newOrderNumber func() string
}

func NewReconciler(repo Repository, publisher Publisher) *Reconciler {
	return &Reconciler{
		repo:           repo,
		publisher:      publisher,
		newOrderNumber: NewOrderNumber,
	}
}

// NewOrderNumber returns a unique human-readable order number.
func NewOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%d-%s", time.Now().Unix(), id[:8])
}

func (c Confirmation) validate() error {
	if c.EventID == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalidConfirmation)
	}
	if !c.Free && c.TransactionHash == "" {
		return fmt.Errorf("%w: transaction hash is required", ErrInvalidConfirmation)
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: no tickets", ErrInvalidConfirmation)
	}
	for _, it := range c.Items {
		if it.TicketTypeID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: bad line %q x%d", ErrInvalidConfirmation, it.TicketTypeID, it.Quantity)
		}
	}
	return nil
}

// Settle records the order for a confirmed payment. Calling it again with the
// same transaction hash, event and payment method returns the existing order.
func (r *Reconciler) Settle(ctx context.Context, c Confirmation) (*Result, error) {
	if c.Free {
		c.PaymentMethod = types.PAYMENT_FREE
		if c.TransactionHash == "" {
			c.TransactionHash = "free_" + uuid.NewString()
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{
		"event_id":         c.EventID,
		"payment_method":   c.PaymentMethod,
		"transaction_hash": c.TransactionHash,
	})

	if res, err := r.existing(ctx, c); err != nil || res != nil {
		if res != nil {
			logger.WithField("order_id", res.OrderID).Info("payment already settled")
		}
		return res, err
	}

	params, err := r.orderParams(ctx, c)
	if err != nil {
		monitoring.RecordSettlement(string(c.PaymentMethod), "error")
		return nil, err
	}

	var out *ProcedureResult
	if c.Free {
		out, err = r.repo.CreateFreeOrder(ctx, params)
	} else {
		out, err = r.repo.CreatePaidOrder(ctx, params)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent delivery of the same payment won the insert.
			if res, lookupErr := r.existing(ctx, c); lookupErr == nil && res != nil {
				logger.WithField("order_id", res.OrderID).Info("concurrent settlement resolved to existing order")
				return res, nil
			}
		}
		monitoring.RecordSettlement(string(c.PaymentMethod), "error")
		logger.WithError(err).Error("order procedure failed")
		return nil, fmt.Errorf("settle %s: %w", c.TransactionHash, err)
	}

	if !out.Success || out.OrderID == nil {
		msg := ""
		if out.ErrorMessage != nil {
			msg = *out.ErrorMessage
		}
		if strings.Contains(strings.ToLower(msg), inventoryMarker) {
			monitoring.RecordSettlement(string(c.PaymentMethod), "sold_out")
			logger.Warn(msg)
			return nil, fmt.Errorf("%w: %s", ErrInventoryConflict, msg)
		}
		monitoring.RecordSettlement(string(c.PaymentMethod), "rejected")
		logger.WithField("reason", msg).Error("order procedure rejected the order")
		return nil, fmt.Errorf("%w: %s", ErrOrderFailed, msg)
	}

	res := &Result{OrderID: *out.OrderID, OrderNumber: params.OrderNumber, TicketsClaimed: out.TicketsClaimed}
	monitoring.RecordSettlement(string(c.PaymentMethod), "settled")
	logger.WithFields(log.Fields{"order_id": res.OrderID, "tickets": res.TicketsClaimed}).Info("order settled")
	r.publish(ctx, c, params, res)
	return res, nil
}

func (r *Reconciler) existing(ctx context.Context, c Confirmation) (*Result, error) {
	order, err := r.repo.FindOrderByPayment(ctx, c.TransactionHash, c.EventID, c.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	monitoring.RecordSettlement(string(c.PaymentMethod), "duplicate")
	claimed := 0
	for _, it := range order.Items {
		claimed += it.Quantity
	}
	return &Result{OrderID: order.ID, OrderNumber: order.OrderNumber, TicketsClaimed: claimed, Duplicate: true}, nil
}

// orderParams resolves the buyer to an account when one exists. Guests keep
// the caller's data as given.
func (r *Reconciler) orderParams(ctx context.Context, c Confirmation) (OrderParams, error) {
	p := OrderParams{
		EventID:         c.EventID,
		BuyerName:       c.Buyer.Name,
		BuyerEmail:      c.Buyer.Email,
		OrderNumber:     r.newOrderNumber(),
		TotalAmount:     c.Amount,
		Currency:        c.Currency,
		PaymentMethod:   c.PaymentMethod,
		TransactionHash: c.TransactionHash,
		Items:           c.Items,
	}
	if c.Buyer.WalletAddress != "" {
		wallet := c.Buyer.WalletAddress
		p.BuyerWalletAddress = &wallet
		owner, err := r.repo.CheckWalletExists(ctx, wallet)
		if err != nil {
			return p, fmt.Errorf("check wallet: %w", err)
		}
		if owner != nil && owner.Exists && owner.UserID != nil {
			p.BuyerID = owner.UserID
			if p.BuyerName == "" {
				p.BuyerName = owner.Name()
			}
		}
		return p, nil
	}
	if c.Buyer.UserID != "" {
		user, err := r.repo.FindUser(ctx, c.Buyer.UserID)
		if err != nil {
			return p, fmt.Errorf("find user: %w", err)
		}
		if user != nil {
			p.BuyerID = &user.ID
			if p.BuyerName == "" {
				p.BuyerName = user.Name()
			}
			if p.BuyerEmail == "" {
				p.BuyerEmail = user.Email
			}
			p.BuyerWalletAddress = user.WalletAddress
		}
	}
	return p, nil
}

func (r *Reconciler) publish(ctx context.Context, c Confirmation, p OrderParams, res *Result) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish(ctx, TopicOrdersSettled, res.OrderID, map[string]any{
		"order_id":         res.OrderID,
		"order_number":     res.OrderNumber,
		"event_id":         c.EventID,
		"payment_method":   c.PaymentMethod,
		"transaction_hash": c.TransactionHash,
		"tickets_claimed":  res.TicketsClaimed,
		"total_amount":     c.Amount.String(),
		"currency":         c.Currency,
		"buyer_name":       p.BuyerName,
		"buyer_email":      p.BuyerEmail,
		"settled_at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[settlement] could not publish %s for order %s: %s\n", TopicOrdersSettled, res.OrderID, err.Error())
	}
}
