package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBody = 1 << 20

// NewValidator returns a validator that understands decimal amounts and
// reports json field names.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type lineReq struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

type createOrderReq struct {
	Items       []lineReq `json:"items" validate:"required,min=1,dive"`
	PhoneNumber string    `json:"phoneNumber" validate:"required"`
	Address     string    `json:"address" validate:"required"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

func (c createOrderReq) input(externalID string) orders.CreateOrderInput {
	in := orders.CreateOrderInput{
		Items:       make([]orders.LineInput, 0, len(c.Items)),
		PhoneNumber: c.PhoneNumber,
		Address:     c.Address,
		Notes:       c.Notes,
		ExternalID:  externalID,
	}
	for _, it := range c.Items {
		in.Items = append(in.Items, orders.LineInput{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return in
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=NEW CONTACTED PAYMENT_CONFIRMED DELIVERED CANCELLED"`
}

type listQuery struct {
	Page      int    `json:"page" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0,lte=100"`
	Status    string `json:"status" validate:"omitempty,oneof=NEW CONTACTED PAYMENT_CONFIRMED DELIVERED CANCELLED"`
	Search    string `json:"search" validate:"max=200"`
	SortBy    string `json:"sortBy" validate:"omitempty,oneof=createdAt updatedAt total status"`
	SortOrder string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func (q listQuery) filter() orders.ListFilter {
	return orders.ListFilter{
		Page:      q.Page,
		Limit:     q.Limit,
		Status:    orders.Status(q.Status),
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
}

func (h *OrdersHandler) bindJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: invalid json body", orders.ErrValidation)
	}
	return h.check(out)
}

func (h *OrdersHandler) bindList(r *http.Request) (orders.ListFilter, error) {
	v := r.URL.Query()
	var q listQuery
	var err error
	if q.Page, err = queryInt(v.Get("page")); err != nil {
		return orders.ListFilter{}, fmt.Errorf("%w: page must be a number", orders.ErrValidation)
	}
	if q.Limit, err = queryInt(v.Get("limit")); err != nil {
		return orders.ListFilter{}, fmt.Errorf("%w: limit must be a number", orders.ErrValidation)
	}
	q.Status = strings.ToUpper(v.Get("status"))
	q.Search = v.Get("search")
	q.SortBy = v.Get("sortBy")
	q.SortOrder = strings.ToLower(v.Get("sortOrder"))
	if err := h.check(&q); err != nil {
		return orders.ListFilter{}, err
	}
	return q.filter(), nil
}

// check runs struct validation and folds field errors into one validation error.
func (h *OrdersHandler) check(v any) error {
	err := h.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", orders.ErrValidation, err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", orders.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validatorv10.FieldError) string {
	field := strings.SplitN(fe.Namespace(), ".", 2)
	name := field[len(field)-1]
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
