package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is the owner's declared starting balance in one currency.
type Asset struct {
	Currency      Currency        `json:"currency"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Validate checks the asset's currency and amount.
func (a Asset) Validate() error {
	if !a.Currency.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidAsset, a.Currency)
	}
	if a.InitialAmount.IsNegative() {
		return fmt.Errorf("%w: initial amount must be >= 0", ErrInvalidAsset)
	}
	return nil
}
