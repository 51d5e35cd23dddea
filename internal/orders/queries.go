package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	recentOrders     = 5
)

var sortColumns = map[string]bool{"createdAt": true, "updatedAt": true, "total": true, "status": true}

type ListFilter struct {
	Page      int
	Limit     int
	Status    Status
	Search    string
	SortBy    string
	SortOrder string
	// UserID restricts the listing to one owner when set.
	UserID string
}

// Normalize fills defaults and rejects values outside the accepted ranges.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	f.Search = strings.TrimSpace(f.Search)
	switch {
	case f.Page < 1:
		return f, invalidf("page must be at least 1")
	case f.Limit < 1 || f.Limit > MaxPageLimit:
		return f, invalidf("limit must be between 1 and %d", MaxPageLimit)
	case f.Status != "" && !f.Status.Valid():
		return f, invalidf("unknown status %q", f.Status)
	case !sortColumns[f.SortBy]:
		return f, invalidf("cannot sort by %q", f.SortBy)
	case f.SortOrder != "asc" && f.SortOrder != "desc":
		return f, invalidf("sort order must be asc or desc")
	}
	return f, nil
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

// Queries serves the read side: single orders, listings and stats.
type Queries struct {
	Store Store
	// Cache serves Status for admins; optional.
	Cache StatusLookup
	Log   *zap.Logger
}

func (q *Queries) Get(ctx context.Context, req Requester, id string) (Order, error) {
	if !req.Authenticated() {
		return Order{}, ErrUnauthorized
	}
	o, err := q.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if !req.CanSee(o.UserID) {
		return Order{}, ErrUnauthorized
	}
	return o, nil
}

// Status returns the current status of an order. Admins read through the
// cache; everyone else goes to the store so ownership can be checked.
func (q *Queries) Status(ctx context.Context, req Requester, id string) (Status, error) {
	if q.Cache == nil || !req.HasRole(RoleAdmin) {
		o, err := q.Get(ctx, req, id)
		if err != nil {
			return "", err
		}
		return o.Status, nil
	}

	log := nopIfNil(q.Log)
	s, found, err := q.Cache.Status(ctx, id)
	if err != nil {
		log.Warn("status cache read failed", zap.String("order_id", id), zap.Error(err))
	}
	if found {
		return s, nil
	}
	o, err := q.Get(ctx, req, id)
	if err != nil {
		return "", err
	}
	if err := q.Cache.SetStatus(ctx, o.ID, o.Status); err != nil {
		log.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o.Status, nil
}

// List returns a page of orders; non-admins only ever see their own.
func (q *Queries) List(ctx context.Context, req Requester, f ListFilter) (Page, error) {
	if !req.Authenticated() {
		return Page{}, ErrUnauthorized
	}
	if !req.HasRole(RoleAdmin) {
		f.UserID = req.UserID
	}
	return q.page(ctx, f)
}

func (q *Queries) UserOrders(ctx context.Context, req Requester, userID string, f ListFilter) (Page, error) {
	if !req.CanSee(userID) {
		return Page{}, ErrUnauthorized
	}
	f.UserID = userID
	return q.page(ctx, f)
}

func (q *Queries) Stats(ctx context.Context, req Requester) (Stats, error) {
	if err := requireAdmin(req); err != nil {
		return Stats{}, err
	}
	st, err := q.Store.OrderStats(ctx, recentOrders)
	if err != nil {
		return Stats{}, fmt.Errorf("order stats: %w", err)
	}
	return st, nil
}

func (q *Queries) Products(ctx context.Context) ([]inventory.Product, error) {
	ps, err := q.Store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return ps, nil
}

func (q *Queries) page(ctx context.Context, f ListFilter) (Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return Page{}, err
	}
	list, total, err := q.Store.ListOrders(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	if list == nil {
		list = []Order{}
	}
	pages := (total + f.Limit - 1) / f.Limit
	return Page{
		Orders: list,
		Pagination: Pagination{
			CurrentPage: f.Page,
			TotalPages:  pages,
			TotalCount:  total,
			HasNext:     f.Page < pages,
			HasPrev:     f.Page > 1,
			Limit:       f.Limit,
		},
	}, nil
}
