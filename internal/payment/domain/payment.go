package domain

import (
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type Status string

const (
	StatusCaptured Status = "captured"
	StatusDeclined Status = "declined"
	StatusRefunded Status = "refunded"
)

// Charge is a capture request in the currency's minor unit.
type Charge struct {
	TenantID       string
	AmountMinor    int64
	Currency       string
	Method         string
	IdempotencyKey string
}

// Result is what the gateway reports for a charge.
type Result struct {
	ID     string
	Status Status
	Reason string
}

// MinorUnits converts a two-decimal amount to cents. Amounts must be positive
// and carry no sub-cent precision.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperr.Validation("payment amount must be positive, got %s", amount)
	}
	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return 0, apperr.Validation("payment amount %s has sub-cent precision", amount)
	}
	return cents.IntPart(), nil
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
