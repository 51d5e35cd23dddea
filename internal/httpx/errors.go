package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	MissingProducts []string `json:"missingProducts,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		code int
		body errorBody
	)
	switch {
	case errors.Is(err, orders.ErrUnauthorized):
		if RequesterFrom(r.Context()).Authenticated() {
			code, body = http.StatusForbidden, errorBody{Error: "forbidden", Message: orders.ErrUnauthorized.Error()}
		} else {
			code, body = http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "authentication required"}
		}
	case errors.Is(err, orders.ErrValidation):
		code, body = http.StatusBadRequest, errorBody{Error: "validation", Message: detail(err, orders.ErrValidation)}
	case errors.Is(err, orders.ErrProductsUnavailable):
		code, body = http.StatusBadRequest, errorBody{Error: "products_unavailable", Message: orders.ErrProductsUnavailable.Error()}
		var ue *orders.UnavailableError
		if errors.As(err, &ue) {
			body.MissingProducts = ue.ProductIDs
		}
	case errors.Is(err, inventory.ErrInsufficientStock):
		code, body = http.StatusBadRequest, errorBody{Error: "insufficient_stock", Message: detail(err, inventory.ErrInsufficientStock)}
	case errors.Is(err, orders.ErrPriceMismatch):
		code, body = http.StatusBadRequest, errorBody{Error: "price_mismatch", Message: detail(err, orders.ErrPriceMismatch)}
	case errors.Is(err, orders.ErrInvalidState):
		code, body = http.StatusBadRequest, errorBody{Error: "invalid_state", Message: detail(err, orders.ErrInvalidState)}
	case errors.Is(err, orders.ErrOrderNotFound):
		code, body = http.StatusNotFound, errorBody{Error: "not_found", Message: orders.ErrOrderNotFound.Error()}
	case errors.Is(err, inventory.ErrProductNotFound):
		code, body = http.StatusNotFound, errorBody{Error: "not_found", Message: inventory.ErrProductNotFound.Error()}
	case errors.Is(err, orders.ErrStatusConflict):
		code, body = http.StatusConflict, errorBody{Error: "conflict", Message: "order was modified concurrently, retry"}
	case errors.Is(err, orders.ErrDuplicateExternalID):
		code, body = http.StatusConflict, errorBody{Error: "conflict", Message: "idempotency key already used for another order"}
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		code, body = http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"}
	}
	writeJSON(w, code, body)
}

// detail peels off call-site wrapping and returns the innermost message that
// still carries kind.
func detail(err, kind error) string {
	cur := err
	for {
		next := errors.Unwrap(cur)
		if next == nil || next == kind || !errors.Is(next, kind) {
			return cur.Error()
		}
		cur = next
	}
}
