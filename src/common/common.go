// Package common holds the HTTP error shape shared by every handler.
package common

import (
	"context"
	"errors"
	"net/http"

	"sosseats/src/monime"
	"sosseats/src/payments"
	"sosseats/src/settlement"
	"sosseats/src/withdrawals"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ErrorStatus maps err to an HTTP status and a message safe for clients.
// infra is set for transient payment gateway failures.
func ErrorStatus(err error) (status int, msg string, infra bool) {
	var apiErr *monime.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Infrastructure {
			return http.StatusServiceUnavailable, apiErr.UserMessage(), true
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return http.StatusBadRequest, apiErr.UserMessage(), false
		}
		return http.StatusBadGateway, apiErr.UserMessage(), false
	case payments.IsValidation(err), withdrawals.IsValidation(err),
		errors.Is(err, monime.ErrMissingFields),
		errors.Is(err, settlement.ErrInvalidConfirmation),
		errors.Is(err, payments.ErrPaymentNotCompleted),
		errors.Is(err, payments.ErrPaymentAmountMismatch):
		return http.StatusBadRequest, err.Error(), false
	case errors.Is(err, payments.ErrEventNotFound),
		errors.Is(err, payments.ErrIntentNotFound),
		errors.Is(err, withdrawals.ErrNotFound):
		return http.StatusNotFound, err.Error(), false
	case errors.Is(err, settlement.ErrInventoryConflict),
		errors.Is(err, withdrawals.ErrCompleted),
		errors.Is(err, withdrawals.ErrAlreadySigned):
		return http.StatusConflict, err.Error(), false
	case errors.Is(err, withdrawals.ErrGone):
		return http.StatusGone, err.Error(), false
	case errors.Is(err, withdrawals.ErrForbidden),
		errors.Is(err, withdrawals.ErrThresholdNotMet):
		return http.StatusForbidden, err.Error(), false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request timed out. Please try again.", false
	}
	return http.StatusInternalServerError, "Internal server error", false
}

// RespondError writes the error response for err and aborts the request.
func RespondError(ctx *gin.Context, err error) {
	status, msg, infra := ErrorStatus(err)
	entry := log.WithFields(log.Fields{
		"path":   ctx.FullPath(),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	body := gin.H{"success": false, "error": msg}
	if infra {
		body["isInfrastructureError"] = true
	}
	ctx.AbortWithStatusJSON(status, body)
}

// BadRequest reports a malformed request body or query.
func BadRequest(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
