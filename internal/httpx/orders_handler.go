package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/notify"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey carries the client's external id for POST /orders.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Builder   *orders.Builder
	Lifecycle *orders.Lifecycle
	Queries   *orders.Queries
	Validate  *validatorv10.Validate
	Log       *zap.Logger
	Timeout   time.Duration
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/stats", h.stats)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)
		r.Patch("/{id}/status", h.changeStatus)
		r.Delete("/{id}", h.deleteOrder)
	})
	r.Get("/users/{id}/orders", h.userOrders)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := notify.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	if h.Timeout <= 0 {
		return context.WithTimeout(ctx, 5*time.Second)
	}
	return context.WithTimeout(ctx, h.Timeout)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	req := RequesterFrom(r.Context())
	if !req.Authenticated() {
		writeError(w, r, h.Log, orders.ErrUnauthorized)
		return
	}
	var body createOrderReq
	if err := h.bindJSON(w, r, &body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := h.Builder.Create(ctx, req, body.input(strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := h.bindList(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	page, err := h.Queries.List(ctx, RequesterFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) userOrders(w http.ResponseWriter, r *http.Request) {
	f, err := h.bindList(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	page, err := h.Queries.UserOrders(ctx, RequesterFrom(r.Context()), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	st, err := h.Queries.Stats(ctx, RequesterFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Queries.Get(ctx, RequesterFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	s, err := h.Queries.Status(ctx, RequesterFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": s})
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	req := RequesterFrom(r.Context())
	if !req.HasRole(orders.RoleAdmin) {
		writeError(w, r, h.Log, orders.ErrUnauthorized)
		return
	}
	var body statusReq
	if err := h.bindJSON(w, r, &body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Lifecycle.ChangeStatus(ctx, req, chi.URLParam(r, "id"), orders.Status(body.Status))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Lifecycle.Delete(ctx, RequesterFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Queries.Products(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
