package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sosseats/src/types"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	IntentCheckoutSession = "checkout_session"
	IntentPaymentCode     = "payment_code"
	IntentStripeSession   = "stripe_session"

	DefaultIntentTTL = 2 * time.Hour
)

// PendingIntent is the server-side copy of a cart awaiting payment, keyed by
// the gateway id. Settlement trusts this record rather than client input.
type PendingIntent struct {
	ID            string              `json:"id"`
	Kind          string              `json:"kind"`
	EventID       string              `json:"event_id"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
	Items         []types.OrderLine   `json:"items"`
	Buyer         Buyer               `json:"buyer"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	PlatformFee   decimal.Decimal     `json:"platform_fee"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	Reference     string              `json:"reference,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type IntentStore interface {
	Save(ctx context.Context, intent *PendingIntent) error
	Load(ctx context.Context, id string) (*PendingIntent, error)
	Delete(ctx context.Context, id string) error
}

type RedisIntentStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIntentStore(rdb *redis.Client, ttl time.Duration) *RedisIntentStore {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &RedisIntentStore{rdb: rdb, ttl: ttl}
}

func intentKey(id string) string {
	return "payment_intent:" + id
}

func (s *RedisIntentStore) Save(ctx context.Context, intent *PendingIntent) error {
	b, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, intentKey(intent.ID), string(b), s.ttl).Err(); err != nil {
		return fmt.Errorf("save intent %s: %w", intent.ID, err)
	}
	return nil
}

func (s *RedisIntentStore) Load(ctx context.Context, id string) (*PendingIntent, error) {
	val, err := s.rdb.Get(ctx, intentKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", id, err)
	}
	var intent PendingIntent
	if err := json.Unmarshal([]byte(val), &intent); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", id, err)
	}
	return &intent, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, intentKey(id)).Err()
}
