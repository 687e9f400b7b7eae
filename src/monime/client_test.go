package monime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recorded struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (r *recorded) add(req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, string(b))
}

func (r *recorded) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sleeps := []time.Duration{}
	opts = append([]Option{WithSleep(func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})}, opts...)
	return NewClient(srv.URL, "sk_test", "spc_test", opts...), &sleeps
}

func writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "messages": []any{}, "result": result})
}

func writeCrossSlot(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"success":false,"error":{"code":"internal","message":"CROSSSLOT Keys in request don't hash to the same slot"}}`))
}

func TestCreatePaymentCode(t *testing.T) {
	rec := &recorded{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeResult(w, http.StatusOK, map[string]any{
			"id":         "pmc_123",
			"status":     "pending",
			"ussdCode":   "*715*1*0123#",
			"expireTime": "2025-09-01T10:30:00Z",
			"amount":     map[string]any{"currency": "SLE", "value": 2200},
		})
	})

	md := NewMetadata().Set("event_id", "evt_1").Set("total_tickets", 1)
	pc, err := c.CreatePaymentCode(context.Background(), PaymentCodeRequest{
		Name:                "Gala - VIP",
		Amount:              Money{Currency: "SLE", Value: 2200},
		AuthorizedProviders: []string{ProviderOrangeMoney},
		Reference:           "sos_seats_gala_1",
		Metadata:            md,
	})
	require.NoError(t, err)
	assert.Equal(t, "pmc_123", pc.ID)
	assert.Equal(t, "*715*1*0123#", pc.USSDCode)
	assert.Equal(t, int64(2200), pc.Amount.Value)

	require.Equal(t, 1, rec.count())
	req := rec.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/payment-codes", req.URL.Path)
	assert.Equal(t, "Bearer sk_test", req.Header.Get("Authorization"))
	assert.Equal(t, "spc_test", req.Header.Get("Monime-Space-Id"))
	assert.Equal(t, DefaultVersion, req.Header.Get("Monime-Version"))
	assert.NotEmpty(t, req.Header.Get("Idempotency-Key"))

	body := rec.bodies[0]
	assert.Equal(t, "one_time", gjson.Get(body, "mode").String())
	assert.Equal(t, "30m", gjson.Get(body, "duration").String())
	assert.True(t, gjson.Get(body, "enable").Bool())
	assert.Equal(t, "m17", gjson.Get(body, "authorizedProviders.0").String())
	assert.Equal(t, "sos_seats", gjson.Get(body, "metadata.source").String())
	assert.Equal(t, "1", gjson.Get(body, "metadata.total_tickets").String())
}

func TestTransientErrorIsAttemptedThreeTimes(t *testing.T) {
	rec := &recorded{}
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeCrossSlot(w)
	})

	_, err := c.CreatePaymentCode(context.Background(), PaymentCodeRequest{
		Name:   "Gala - VIP",
		Amount: Money{Currency: "SLE", Value: 2200},
	})
	require.Error(t, err)
	assert.True(t, IsInfrastructure(err))
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, infrastructureMessage, apiErr.UserMessage())

	keys := map[string]bool{}
	for _, req := range rec.requests {
		keys[req.Header.Get("Idempotency-Key")] = true
	}
	assert.Len(t, keys, 3, "each attempt needs a fresh idempotency key")
}

func TestTransientErrorThenSuccess(t *testing.T) {
	rec := &recorded{}
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if rec.count() == 1 {
			writeCrossSlot(w)
			return
		}
		writeResult(w, http.StatusCreated, map[string]any{"id": "pyt_1", "status": "pending"})
	})

	p, err := c.CreatePayout(context.Background(), PayoutRequest{
		Amount:      Money{Currency: "NLe", Value: 9500},
		Destination: PayoutDestination{ProviderID: ProviderOrangeMoney, PhoneNumber: "+23278000000"},
	}, "wd_1")
	require.NoError(t, err)
	assert.Equal(t, "pyt_1", p.ID)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, []time.Duration{time.Second}, *sleeps)
}

func TestValidationErrorIsNotRetried(t *testing.T) {
	rec := &recorded{}
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":{"code":"validation","message":"amount.value must be positive"}}`))
	})

	_, err := c.CreatePaymentCode(context.Background(), PaymentCodeRequest{
		Name:   "Gala - VIP",
		Amount: Money{Currency: "SLE", Value: 10},
	})
	require.Error(t, err)
	assert.False(t, IsInfrastructure(err))
	assert.Equal(t, 1, rec.count())
	assert.Empty(t, *sleeps)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "amount.value must be positive", apiErr.UserMessage())
}

func TestServerErrorWithoutMarkerIsNotRetried(t *testing.T) {
	rec := &recorded{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"database unavailable"}`))
	})

	_, err := c.GetPayout(context.Background(), "pyt_1")
	require.Error(t, err)
	assert.False(t, IsInfrastructure(err))
	assert.Equal(t, 1, rec.count())
}

func TestReadsDoNotSendIdempotencyKey(t *testing.T) {
	rec := &recorded{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeResult(w, http.StatusOK, map[string]any{"id": "pmc_1", "status": "completed"})
	})

	pc, err := c.GetPaymentCode(context.Background(), "pmc_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, pc.Status)
	assert.Equal(t, "/v1/payment-codes/pmc_1", rec.requests[0].URL.Path)
	assert.Empty(t, rec.requests[0].Header.Get("Idempotency-Key"))
}

func TestCreatePayout(t *testing.T) {
	rec := &recorded{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeResult(w, http.StatusOK, map[string]any{
			"id":     "pyt_9",
			"status": "pending",
			"destination": map[string]any{
				"type":                 "momo",
				"providerId":           "m17",
				"phoneNumber":          "+23278000000",
				"transactionReference": "OM-REF-1",
			},
			"fees": []any{
				map[string]any{"code": "processing", "amount": map[string]any{"currency": "SLE", "value": 95}},
			},
		})
	}, WithPayoutKey("sk_payout"))

	md := NewMetadata().Set("withdrawal_id", "wd_9").Set("original_metadata", map[string]any{"provider": "orange_money"})
	p, err := c.CreatePayout(context.Background(), PayoutRequest{
		Amount:      Money{Currency: "NLe", Value: 9500},
		Destination: PayoutDestination{ProviderID: ProviderOrangeMoney, PhoneNumber: "+23278000000"},
		Metadata:    md,
	}, "multisig_withdrawal_wd_9")
	require.NoError(t, err)
	assert.True(t, p.Settled())
	assert.Equal(t, int64(95), p.FeesMinor())

	req := rec.requests[0]
	assert.Equal(t, "Bearer sk_payout", req.Header.Get("Authorization"))
	body := rec.bodies[0]
	assert.Equal(t, "SLE", gjson.Get(body, "amount.currency").String())
	assert.Equal(t, int64(9500), gjson.Get(body, "amount.value").Int())
	assert.Equal(t, "momo", gjson.Get(body, "destination.type").String())
	assert.Equal(t, "multisig_withdrawal_wd_9", gjson.Get(body, "metadata.reference").String())
	assert.Equal(t, `{"provider":"orange_money"}`, gjson.Get(body, "metadata.original_metadata").String())
	assert.False(t, gjson.Get(body, "reference").Exists())
}

func TestCreatePayoutMetadataStaysWithinLimits(t *testing.T) {
	rec := &recorded{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeResult(w, http.StatusOK, map[string]any{"id": "pyt_10", "status": "pending"})
	})

	md := NewMetadata()
	for i := 0; i < 60; i++ {
		md.Set(fmt.Sprintf("key_%02d", i), i)
	}
	_, err := c.CreatePayout(context.Background(), PayoutRequest{
		Amount:      Money{Currency: "SLE", Value: 100},
		Destination: PayoutDestination{ProviderID: ProviderAfrimoney, PhoneNumber: "+23277000000"},
		Metadata:    md,
	}, "ref_10")
	require.NoError(t, err)

	sent := gjson.Get(rec.bodies[0], "metadata").Map()
	assert.Len(t, sent, DefaultLimits.MaxKeys)
	assert.Equal(t, "sos_seats", sent["source"].String())
	assert.Equal(t, "ref_10", sent["reference"].String())
}

func TestCreatePayoutValidation(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "sk", "spc")
	_, err := c.CreatePayout(context.Background(), PayoutRequest{Amount: Money{Currency: "SLE", Value: 100}}, "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestPayoutSettled(t *testing.T) {
	assert.True(t, (&Payout{Status: StatusCompleted}).Settled())
	assert.True(t, (&Payout{Status: StatusPending, Destination: PayoutDestination{TransactionReference: "ref"}}).Settled())
	assert.False(t, (&Payout{Status: StatusProcessing}).Settled())
	assert.False(t, (&Payout{Status: StatusFailed, Destination: PayoutDestination{TransactionReference: "ref"}}).Settled())
}

func TestMockCheckoutSession(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "sk", "spc", WithMockCheckout())
	s, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Name:       "Gala",
		SuccessURL: "https://example.com/ok",
		CancelURL:  "https://example.com/cancel",
		LineItems: []LineItem{
			{Type: "custom", Name: "VIP", Price: Money{Currency: "SLE", Value: 2000}, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, s.ID, mockPrefix)
	assert.Equal(t, Money{Currency: "SLE", Value: 4000}, s.Total())
	assert.Contains(t, s.RedirectURL, "amount=4000")

	got, err := c.GetCheckoutSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestTransportErrorIsInfrastructureAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "sk", "spc", WithPayoutKey("sk_payout"))

	_, err := c.CreatePayout(context.Background(), PayoutRequest{
		Amount:      Money{Currency: "SLE", Value: 100},
		Destination: PayoutDestination{ProviderID: ProviderOrangeMoney, PhoneNumber: "+23278000000"},
	}, "")
	require.Error(t, err)
	assert.True(t, IsInfrastructure(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCrossSlot(w)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "sk", "spc")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CreatePaymentCode(ctx, PaymentCodeRequest{Name: "x", Amount: Money{Currency: "SLE", Value: 1}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProviderCode(t *testing.T) {
	code, ok := ProviderCode("orange_money")
	assert.True(t, ok)
	assert.Equal(t, "m17", code)
	code, ok = ProviderCode("afrimoney")
	assert.True(t, ok)
	assert.Equal(t, "m18", code)
	_, ok = ProviderCode("solana")
	assert.False(t, ok)
}
