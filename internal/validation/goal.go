package validation

import (
	"github.com/shopspring/decimal"
)

// minTarget mirrors the create-time invariant that a target must be a real
// amount of money, not zero or a rounding artifact.
var minTarget = decimal.NewFromFloat(0.01)

// ValidateTargetAmount enforces targetAmount > 0 for the lifetime of a goal.
func ValidateTargetAmount(amount decimal.Decimal) error {
	if amount.LessThan(minTarget) {
		return NewFieldError("targetAmount", "must be greater than 0")
	}
	return nil
}

// ValidateContribution enforces amount > 0 for contributions.
func ValidateContribution(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewFieldError("amount", "must be greater than 0")
	}
	return nil
}

// ValidateCurrentAmount rejects negative running totals on direct edits.
func ValidateCurrentAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return NewFieldError("currentAmount", "cannot be negative")
	}
	return nil
}

// ValidateEnum checks membership after case normalization.
func ValidateEnum(field, value string, allowed []string) error {
	for _, v := range allowed {
		if value == v {
			return nil
		}
	}
	return NewFieldError(field, "is not a recognized value")
}
