package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductsUnavailable = errors.New("some products are not available or out of stock")
	ErrPriceMismatch       = errors.New("price mismatch")
	ErrInvalidState        = errors.New("operation not allowed in current order status")
	ErrUnauthorized        = errors.New("access denied")
	ErrValidation          = errors.New("invalid request")
	// ErrStatusConflict means the order changed under a concurrent writer.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrDuplicateExternalID is returned by stores when the external id is taken.
	ErrDuplicateExternalID = errors.New("order already exists")
)

// UnavailableError lists product ids that are missing or flagged out of stock.
type UnavailableError struct {
	ProductIDs []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProductsUnavailable, strings.Join(e.ProductIDs, ", "))
}

func (e *UnavailableError) Is(target error) bool { return target == ErrProductsUnavailable }

type PriceMismatchError struct {
	ProductID string
	Name      string
	Submitted decimal.Decimal
	Current   decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch for product %s: submitted %s, current %s", e.Name, e.Submitted, e.Current)
}

func (e *PriceMismatchError) Is(target error) bool { return target == ErrPriceMismatch }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
