package main

import (
	"net/http"

	"sosseats/src/common"
	"sosseats/src/middlewares"
	"sosseats/src/payments"
	"sosseats/src/types"

	"github.com/gin-gonic/gin"
)

// buyerFrom fills in the buyer from the session when the request omits it.
func buyerFrom(ctx *gin.Context, name, email string) payments.Buyer {
	b := payments.Buyer{Name: name, Email: email}
	if s := middlewares.GetSession(ctx); s != nil {
		b.UserID = s.UserID
		b.WalletAddress = s.WalletAddress
		if b.Name == "" {
			b.Name = s.Name
		}
		if b.Email == "" {
			b.Email = s.Email
		}
	}
	return b
}

func paymentCart(ctx *gin.Context, body *types.CreatePaymentRequestBody) payments.Cart {
	cart := payments.NewCart(body.EventID, types.PaymentMethod(body.PaymentMethod), body.Items, buyerFrom(ctx, body.BuyerName, body.BuyerEmail))
	cart.SuccessURL = body.SuccessURL
	cart.CancelURL = body.CancelURL
	return cart
}

func (s *server) monimeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/monime/checkout-session", func(ctx *gin.Context) {
			var body types.CreatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.builder.CreateCheckoutSession(ctx.Request.Context(), paymentCart(ctx, &body))
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": res})
		}).
		POST("/monime/payment-code", func(ctx *gin.Context) {
			var body types.CreatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.builder.CreatePaymentCode(ctx.Request.Context(), paymentCart(ctx, &body))
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": res})
		}).
		GET("/monime/payment-status", func(ctx *gin.Context) {
			var query types.PaymentStatusQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.builder.CheckoutStatus(ctx.Request.Context(), query.SessionID)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": res})
		}).
		GET("/monime/payment-code-status", func(ctx *gin.Context) {
			var query types.PaymentCodeStatusQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.builder.PaymentCodeStatus(ctx.Request.Context(), query.CodeID)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": res})
		}).
		DELETE("/monime/payment-code-cancel", func(ctx *gin.Context) {
			var query types.PaymentCodeStatusQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			if err := s.builder.CancelPaymentCode(ctx.Request.Context(), query.CodeID); err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		}).
		GET("/monime/payout-status", middlewares.RequireWallet, func(ctx *gin.Context) {
			var query types.PayoutStatusQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			payout, err := s.builder.PayoutStatus(ctx.Request.Context(), query.PayoutID)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success": true,
				"data": gin.H{
					"id":      payout.ID,
					"status":  payout.Status,
					"amount":  payout.Amount,
					"settled": payout.Settled(),
				},
			})
		})
	return g
}
