package main

import (
	"net/http"

	"sosseats/src/common"
	"sosseats/src/middlewares"
	"sosseats/src/types"
	"sosseats/src/withdrawals"

	"github.com/gin-gonic/gin"
)

func (s *server) withdrawalHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	wallet := g.Group("/wallet", middlewares.RequireWallet)
	wallet.
		POST("/withdrawals", func(ctx *gin.Context) {
			var body types.CreateWithdrawalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.approver.Create(ctx.Request.Context(), withdrawals.CreateRequest{
				WalletAddress: middlewares.GetSession(ctx).WalletAddress,
				Amount:        body.Amount,
				Currency:      body.Currency,
				Provider:      body.Provider,
				PhoneNumber:   body.PhoneNumber,
			})
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": res})
		}).
		GET("/withdrawals/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			view, err := s.approver.Get(ctx.Request.Context(), params.ID)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			if !signerOf(view, middlewares.GetSession(ctx).WalletAddress) {
				common.RespondError(ctx, withdrawals.ErrForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": view})
		}).
		GET("/pending-withdrawal/:token", func(ctx *gin.Context) {
			var params types.TokenRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			view, err := s.approver.GetByToken(ctx.Request.Context(), params.Token)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": view})
		}).
		POST("/withdrawals/:id/sign", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			var body types.SignWithdrawalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.approver.Sign(ctx.Request.Context(), params.ID, middlewares.GetSession(ctx).WalletAddress, body.Signature)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": res})
		}).
		POST("/execute-pending-withdrawal", func(ctx *gin.Context) {
			var body types.ExecuteWithdrawalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			res, err := s.approver.Execute(ctx.Request.Context(), body.WithdrawalID, middlewares.GetSession(ctx).WalletAddress)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "payout_status": res.PayoutStatus, "data": res})
		}).
		POST("/cancel-pending-withdrawal", func(ctx *gin.Context) {
			var body types.CancelWithdrawalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				common.BadRequest(ctx, err)
				return
			}
			caller := middlewares.GetSession(ctx).WalletAddress
			if body.WalletAddress != caller {
				common.RespondError(ctx, withdrawals.ErrForbidden)
				return
			}
			res, err := s.approver.Cancel(ctx.Request.Context(), body.WithdrawalID, caller)
			if err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "data": res})
		})
	return g
}

func signerOf(view *withdrawals.View, wallet string) bool {
	for _, s := range view.AuthorizedSigners {
		if s == wallet {
			return true
		}
	}
	return false
}
