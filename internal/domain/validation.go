package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAccountName = errors.New("invalid account name")
	ErrInvalidAccountCode = errors.New("invalid account code")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrInvalidIDFormat    = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	MaxAccountCodeLength = 20
	MaxAmount            = "1000000000000" // 1 trillion
	MaxDescriptionLength = 1024

	// MoneyScale is the number of decimal places every stored amount keeps.
	MoneyScale = 2
)

var (
	accountCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]*$`)
	ulidRegex        = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

	centTolerance = decimal.New(1, -2)
	splitRate     = decimal.New(5, -3)
)

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidAccountName)
		}
	}

	return nil
}

// ValidateAccountCode validates a chart-of-accounts code such as "1000" or "5100.10".
func ValidateAccountCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrInvalidAccountCode)
	}

	if len(code) > MaxAccountCodeLength {
		return fmt.Errorf("%w: code exceeds %d characters", ErrInvalidAccountCode, MaxAccountCodeLength)
	}

	if !accountCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q must be alphanumeric", ErrInvalidAccountCode, code)
	}

	return nil
}

// ValidateAmount validates a positive posting amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return ValidateScale(amount)
}

// ValidateScale rejects amounts with fractions of a cent. Trailing zeros
// such as 12.340 are accepted.
func ValidateScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount.String(), MoneyScale)
	}
	return nil
}

// ValidateID checks that id is a ULID.
func ValidateID(id string) error {
	if !ulidRegex.MatchString(strings.ToUpper(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidIDFormat, id)
	}
	return nil
}

// SplitTolerance is the allowed gap between split allocations and the event
// total: max(0.01, |total| * 0.005).
func SplitTolerance(total decimal.Decimal) decimal.Decimal {
	return decimal.Max(centTolerance, total.Abs().Mul(splitRate))
}

// TransferTolerance is the allowed gap between the two legs of a transfer.
func TransferTolerance() decimal.Decimal {
	return centTolerance
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
