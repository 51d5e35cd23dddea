package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	reg            *prometheus.Registry
	OrdersCreated  prometheus.Counter
	OrdersRejected *prometheus.CounterVec
	StatusChanges  *prometheus.CounterVec
	OrdersDeleted  prometheus.Counter
	StockOps       *prometheus.CounterVec
	NotifyFailed   prometheus.Counter
	HTTPDuration   *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_created_total", Help: "Orders persisted with their stock reserved."})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_orders_rejected_total", Help: "Order creations that failed, by reason."}, []string{"reason"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_order_status_changes_total", Help: "Admin status transitions."}, []string{"from", "to"})
	deleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_deleted_total", Help: "Orders removed by admins."})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_stock_operations_total", Help: "Ledger reserve and restore calls, by result."}, []string{"op", "result"})
	notifyFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_notifications_failed_total", Help: "Customer notifications that could not be dispatched."})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	r.MustRegister(created, rejected, changes, deleted, stock, notifyFailed, httpDur)
	return &Registry{
		reg:            r,
		OrdersCreated:  created,
		OrdersRejected: rejected,
		StatusChanges:  changes,
		OrdersDeleted:  deleted,
		StockOps:       stock,
		NotifyFailed:   notifyFailed,
		HTTPDuration:   httpDur,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) OrderCreated() {
	if r == nil {
		return
	}
	r.OrdersCreated.Inc()
}

func (r *Registry) OrderRejected(reason string) {
	if r == nil {
		return
	}
	r.OrdersRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) StatusChanged(from, to string) {
	if r == nil {
		return
	}
	r.StatusChanges.WithLabelValues(from, to).Inc()
}

func (r *Registry) OrderDeleted() {
	if r == nil {
		return
	}
	r.OrdersDeleted.Inc()
}

func (r *Registry) StockOp(op, result string) {
	if r == nil {
		return
	}
	r.StockOps.WithLabelValues(op, result).Inc()
}

func (r *Registry) NotificationFailed() {
	if r == nil {
		return
	}
	r.NotifyFailed.Inc()
}

func (r *Registry) ObserveHTTP(method, route, code string, seconds float64) {
	if r == nil {
		return
	}
	r.HTTPDuration.WithLabelValues(method, route, code).Observe(seconds)
}
