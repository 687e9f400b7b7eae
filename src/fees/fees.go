// Package fees computes platform and gateway fees for ticket sales and
// organizer withdrawals. Every function here is pure.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// PlatformPolicy is the per-ticket service fee charged to buyers.
// A zero Max leaves the fee uncapped.
type PlatformPolicy struct {
	Enabled bool
	Pct     decimal.Decimal
	Min     decimal.Decimal
	Max     decimal.Decimal
}

// Fee returns max(Min, min(price*Pct, Max)) rounded to 2 decimals, or zero
// when the policy is disabled.
func (p PlatformPolicy) Fee(price decimal.Decimal) decimal.Decimal {
	if !p.Enabled {
		return decimal.Zero
	}
	fee := price.Mul(p.Pct)
	if p.Max.IsPositive() {
		fee = decimal.Min(fee, p.Max)
	}
	fee = decimal.Max(p.Min, fee)
	return fee.Round(2)
}

// Line is one ticket type in a cart.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// CartFee applies Fee to each unit price and multiplies by quantity.
func (p PlatformPolicy) CartFee(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(p.Fee(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (p PlatformPolicy) Validate() error {
	return validate("platform", p.Pct, p.Min, p.Max)
}

// WithdrawalPolicy describes the fees deducted from an organizer payout.
// The gateway percentage applies to the amount left after the platform fee.
type WithdrawalPolicy struct {
	PlatformPct decimal.Decimal
	PlatformMin decimal.Decimal
	PlatformMax decimal.Decimal
	GatewayPct  decimal.Decimal
}

type Breakdown struct {
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	NetAfterPlatform decimal.Decimal `json:"net_amount_after_platform_fee"`
	GatewayFee       decimal.Decimal `json:"gateway_fee"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	NetAmount        decimal.Decimal `json:"net_amount"`
}

func (p WithdrawalPolicy) Fee(amount decimal.Decimal) Breakdown {
	platformFee := decimal.Zero
	if p.PlatformPct.IsPositive() {
		platformFee = amount.Mul(p.PlatformPct)
		if p.PlatformMax.IsPositive() {
			platformFee = decimal.Min(platformFee, p.PlatformMax)
		}
		platformFee = decimal.Max(p.PlatformMin, platformFee)
	}
	netAfterPlatform := amount.Sub(platformFee)
	gatewayFee := netAfterPlatform.Mul(p.GatewayPct)
	return Breakdown{
		Amount:           amount,
		PlatformFee:      platformFee,
		NetAfterPlatform: netAfterPlatform,
		GatewayFee:       gatewayFee,
		TotalFees:        platformFee.Add(gatewayFee),
		NetAmount:        netAfterPlatform.Sub(gatewayFee),
	}
}

// Rounded is the breakdown as shown to organizers.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		Amount:           b.Amount.Round(2),
		PlatformFee:      b.PlatformFee.Round(2),
		NetAfterPlatform: b.NetAfterPlatform.Round(2),
		GatewayFee:       b.GatewayFee.Round(2),
		TotalFees:        b.TotalFees.Round(2),
		NetAmount:        b.NetAmount.Round(2),
	}
}

func (p WithdrawalPolicy) Validate() error {
	if err := validate("withdrawal platform", p.PlatformPct, p.PlatformMin, p.PlatformMax); err != nil {
		return err
	}
	return validate("withdrawal gateway", p.GatewayPct, decimal.Zero, decimal.Zero)
}

var ErrInvalidPolicy = errors.New("invalid fee policy")

func validate(name string, pct, min, max decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s percentage %s must be in [0, 1)", ErrInvalidPolicy, name, pct)
	}
	if min.IsNegative() || max.IsNegative() {
		return fmt.Errorf("%w: %s bounds must not be negative", ErrInvalidPolicy, name)
	}
	if max.IsPositive() && min.GreaterThan(max) {
		return fmt.Errorf("%w: %s minimum %s exceeds maximum %s", ErrInvalidPolicy, name, min, max)
	}
	return nil
}

// ToMinorUnits converts a major-unit amount to the integer minor units
// gateways expect, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(hundred)
}
