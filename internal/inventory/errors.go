package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

// ShortageError reports a reservation the current stock cannot cover.
type ShortageError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}

func (e *ShortageError) Is(target error) bool { return target == ErrInsufficientStock }
