package main

import (
	"net/http"

	"sosseats/src/common"
	"sosseats/src/payments"
	"sosseats/src/settlement"
	"sosseats/src/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func settled(ctx *gin.Context, res *settlement.Result) {
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{"success": true, "data": res})
}

func (s *server) orderHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/orders/mobile-money", func(ctx *gin.Context) {
			var body types.MobileMoneyOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			intent, _, err := s.builder.ConfirmIntent(ctx.Request.Context(), body.PaymentID)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			res, err := s.reconciler.Settle(ctx.Request.Context(), settlement.Confirmation{
				EventID:         intent.EventID,
				PaymentMethod:   intent.PaymentMethod,
				TransactionHash: intent.ID,
				Amount:          intent.Total,
				Currency:        intent.Currency,
				Items:           intent.Items,
				Buyer:           settlement.Buyer(intent.Buyer),
			})
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			settled(ctx, res)
		}).
		POST("/orders/crypto", func(ctx *gin.Context) {
			var body types.CryptoOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			buyer := buyerFrom(ctx, body.BuyerName, body.BuyerEmail)
			priced, err := s.builder.Price(ctx.Request.Context(), payments.NewCart(body.EventID, types.PAYMENT_SOLANA, body.Items, buyer))
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			res, err := s.reconciler.Settle(ctx.Request.Context(), settlement.Confirmation{
				EventID:         body.EventID,
				PaymentMethod:   types.PAYMENT_SOLANA,
				TransactionHash: body.TransactionHash,
				Amount:          priced.Total,
				Currency:        payments.Currency,
				Items:           priced.OrderItems(),
				Buyer:           settlement.Buyer(buyer),
			})
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			settled(ctx, res)
		}).
		POST("/orders/free", func(ctx *gin.Context) {
			var body types.FreeOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			buyer := buyerFrom(ctx, body.BuyerName, body.BuyerEmail)
			priced, err := s.builder.Price(ctx.Request.Context(), payments.NewCart(body.EventID, types.PAYMENT_FREE, body.Items, buyer))
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			res, err := s.reconciler.Settle(ctx.Request.Context(), settlement.Confirmation{
				EventID:  body.EventID,
				Amount:   decimal.Zero,
				Currency: payments.Currency,
				Items:    priced.OrderItems(),
				Buyer:    settlement.Buyer(buyer),
				Free:     true,
			})
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			settled(ctx, res)
		})
	return g
}
