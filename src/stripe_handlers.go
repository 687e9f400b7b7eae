package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"sosseats/src/common"
	"sosseats/src/monime"
	"sosseats/src/payments"
	"sosseats/src/settlement"
	"sosseats/src/types"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func (s *server) stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		event, err := webhook.ConstructEventWithOptions(payload, ctx.GetHeader("Stripe-Signature"), s.cfg.Stripe.WebhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		logger := log.WithFields(log.Fields{"event_id": event.ID, "type": event.Type})

		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				logger.WithError(err).Error("could not decode checkout session")
				ctx.Status(http.StatusBadRequest)
				return
			}
			res, err := s.settleStripeSession(ctx.Request.Context(), &cs)
			if err != nil {
				if status, _, _ := common.ErrorStatus(err); status >= http.StatusInternalServerError {
					common.RespondError(ctx, err)
					return
				}
				logger.WithError(err).Warn("checkout session not settled")
				ctx.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			if res == nil {
				ctx.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"received": true, "order_id": res.OrderID, "duplicate": res.Duplicate})
		default:
			logger.Debug("unhandled stripe event")
			ctx.JSON(http.StatusOK, gin.H{"received": true})
		}
	})
	return apiv1
}

// settleStripeSession records the order for a paid card checkout. A nil result
// with no error means the session is not paid yet.
func (s *server) settleStripeSession(ctx context.Context, cs *stripe.CheckoutSession) (*settlement.Result, error) {
	status := payments.StatusFromStripe(cs)
	if status.Status != monime.StatusCompleted {
		log.WithFields(log.Fields{"session_id": cs.ID, "status": status.Status}).Info("checkout session awaiting payment")
		return nil, nil
	}
	intent, err := s.intents.Load(ctx, cs.ID)
	if err != nil {
		return nil, err
	}
	if status.Amount.IsPositive() && !status.Amount.Equal(intent.Total) {
		return nil, payments.ErrPaymentAmountMismatch
	}
	return s.reconciler.Settle(ctx, settlement.Confirmation{
		EventID:         intent.EventID,
		PaymentMethod:   types.PAYMENT_CARD,
		TransactionHash: cs.ID,
		Amount:          intent.Total,
		Currency:        intent.Currency,
		Items:           intent.Items,
		Buyer:           settlement.Buyer(intent.Buyer),
	})
}
