package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	productCols = `id, name, price, stock_quantity, in_stock, updated_at`
	orderCols   = `id, COALESCE(external_id, ''), COALESCE(user_id, ''), status, total,
		COALESCE(customer_name, ''), COALESCE(email, ''), phone_number, address, COALESCE(notes, ''),
		created_at, updated_at`
)

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"total":     "total",
	"status":    "status",
}

type Store struct{ DB *pgxpool.Pool }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, s.DB, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id)
}

func (s *Store) GetOrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	return getOrder(ctx, s.DB, `SELECT `+orderCols+` FROM orders WHERE external_id = $1`, externalID)
}

func (s *Store) ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf(
			"(customer_name ILIKE %[1]s OR email ILIKE %[1]s OR phone_number ILIKE %[1]s OR address ILIKE %[1]s)", p))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}
	q := `SELECT ` + orderCols + ` FROM orders` + cond +
		fmt.Sprintf(` ORDER BY %s %s, id LIMIT %s OFFSET %s`, col, dir, arg(f.Limit), arg(f.Offset()))
	list, err := listOrders(ctx, s.DB, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) OrderStats(ctx context.Context, recent int) (orders.Stats, error) {
	var st orders.Stats
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE status = 'DELIVERED'), 0)
		FROM orders`).Scan(&st.TotalOrders, &st.TotalRevenue)
	if err != nil {
		return st, err
	}

	rows, err := s.DB.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY status`)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			status string
			c      orders.StatusCount
		)
		if err := rows.Scan(&status, &c.Count); err != nil {
			rows.Close()
			return st, err
		}
		c.Status = orders.Status(status)
		st.OrdersByStatus = append(st.OrdersByStatus, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	st.RecentOrders, err = listOrders(ctx, s.DB,
		`SELECT `+orderCols+` FROM orders ORDER BY created_at DESC, id LIMIT $1`, recent)
	return st, err
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

// DecrementStock is one guarded UPDATE; under concurrent writers Postgres re-checks
// the stock predicate after acquiring the row lock, so stock never goes negative.
func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) (inventory.Product, bool, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    in_stock = (stock_quantity - $2) > 0,
		    updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING `+productCols, productID, qty)
	p, err := scanProduct(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return inventory.Product{}, false, err
	}
	// Guard failed: read the row only to report why.
	p, err = scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Product{}, false, inventory.ErrProductNotFound
	}
	if err != nil {
		return inventory.Product{}, false, err
	}
	return p, false, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID string, qty int) (inventory.Product, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    in_stock = (stock_quantity + $2) > 0,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+productCols, productID, qty)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, err
}

func (t *pgTx) FindProducts(ctx context.Context, ids []string) ([]inventory.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, total, customer_name, email,
		                   phone_number, address, notes, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''),
		        $8, $9, NULLIF($10, ''), $11, $12)`,
		o.ID, o.ExternalID, o.UserID, string(o.Status), o.Total, o.CustomerName, o.Email,
		o.PhoneNumber, o.Address, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return orders.ErrDuplicateExternalID
		}
		return err
	}

	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, it.ProductID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, t.tx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) GetOrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	return getOrder(ctx, t.tx, `SELECT `+orderCols+` FROM orders WHERE external_id = $1`, externalID)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrStatusConflict
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string, expected orders.Status) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = $2`, id, string(expected))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrStatusConflict
	}
	return nil
}

func scanProduct(row pgx.Row) (inventory.Product, error) {
	var p inventory.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.InStock, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &status, &o.Total,
		&o.CustomerName, &o.Email, &o.PhoneNumber, &o.Address, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func getOrder(ctx context.Context, q querier, sql string, arg any) (orders.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	list := []orders.Order{o}
	if err := loadItems(ctx, q, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

func listOrders(ctx context.Context, q querier, sql string, args ...any) ([]orders.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fills Items on each order with one query.
func loadItems(ctx context.Context, q querier, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
	}
	rows, err := q.Query(ctx, `
		SELECT oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      orders.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return err
		}
		i := index[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}
