package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"sort"
	"strings"
	"time"
)

// DB is the subset of *pgxpool.Pool the repo needs.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the Postgres Store. Numeric columns cross the wire as text so
// decimals round-trip exactly.
type Repo struct{ DB DB }

const orderColumns = `id, checkout_id, buyer_id, producer_id, product_id,
	quantity::text, unit_price::text, total_amount::text,
	status, payment_status, payment_method,
	delivery_method, delivery_address, delivery_phone, delivery_notes,
	tracking_no, cancel_reason, dispute_reason,
	shipped_at, auto_confirm_at, delivered_at, version, created_at, updated_at`

func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repo) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.BuyerID != "" {
		add("buyer_id", f.BuyerID)
	}
	if f.ProducerID != "" {
		add("producer_id", f.ProducerID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, len(args))

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repo) DueForAutoConfirm(ctx context.Context, now time.Time, after *DueOrder, limit int) ([]DueOrder, error) {
	var (
		afterAt *time.Time
		afterID string
	)
	if after != nil {
		afterAt, afterID = &after.AutoConfirmAt, after.ID
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, auto_confirm_at FROM orders
		WHERE status = 'shipped' AND auto_confirm_at <= $1
		  AND ($2::timestamptz IS NULL OR (auto_confirm_at, id) > ($2::timestamptz, $3::text))
		ORDER BY auto_confirm_at, id
		LIMIT $4`, now, afterAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueOrder
	for rows.Next() {
		var d DueOrder
		if err := rows.Scan(&d.ID, &d.AutoConfirmAt); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *Repo) Available(ctx context.Context, productID string) (decimal.Decimal, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT available_quantity::text FROM products WHERE id=$1`, productID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProducts(ctx context.Context, ids []string) error {
	uniq := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)

	rows, err := t.tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, uniq)
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

func (t *pgTx) ReserveStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error) {
	var s string
	err := t.tx.QueryRow(ctx, `SELECT available_quantity::text FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	avail, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if avail.LessThan(qty) {
		return avail, &InsufficientStockError{ProductID: productID, Requested: qty, Available: avail}
	}

	var left string
	err = t.tx.QueryRow(ctx, `
		UPDATE products SET available_quantity = available_quantity - $2::numeric, updated_at = now()
		WHERE id=$1
		RETURNING available_quantity::text`, productID, qty.String()).Scan(&left)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(left)
}

func (t *pgTx) ReleaseStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error) {
	var left string
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET available_quantity = available_quantity + $2::numeric, updated_at = now()
		WHERE id=$1
		RETURNING available_quantity::text`, productID, qty.String()).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(left)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, checkout_id, buyer_id, producer_id, product_id,
			quantity, unit_price, total_amount, status, payment_status, payment_method,
			delivery_method, delivery_address, delivery_phone, delivery_notes,
			version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.CheckoutID, o.BuyerID, o.ProducerID, o.ProductID,
		o.Quantity.String(), o.UnitPrice.String(), o.TotalAmount.String(),
		string(o.Status), string(o.PaymentStatus), o.PaymentMethod,
		o.Delivery.Method, o.Delivery.Address, o.Delivery.Phone, o.Delivery.Notes,
		o.Version, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (t *pgTx) GetOrder(ctx context.Context, id string, forUpdate bool) (*Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanOrder(t.tx.QueryRow(ctx, q, id))
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order, g Guard) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			status=$2, tracking_no=$3, cancel_reason=$4, dispute_reason=$5,
			shipped_at=$6, auto_confirm_at=$7, delivered_at=$8,
			version = version + 1, updated_at=$9
		WHERE id=$1 AND status=$10 AND ($11::timestamptz IS NULL OR auto_confirm_at <= $11)`,
		o.ID, string(o.Status), o.TrackingNo, o.CancelReason, o.DisputeReason,
		o.ShippedAt, o.AutoConfirmAt, o.DeliveredAt, o.UpdatedAt,
		string(g.Status), g.DueBy,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderChanged
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                 Order
		qty, price, total string
		status, payStatus string
	)
	err := row.Scan(&o.ID, &o.CheckoutID, &o.BuyerID, &o.ProducerID, &o.ProductID,
		&qty, &price, &total,
		&status, &payStatus, &o.PaymentMethod,
		&o.Delivery.Method, &o.Delivery.Address, &o.Delivery.Phone, &o.Delivery.Notes,
		&o.TrackingNo, &o.CancelReason, &o.DisputeReason,
		&o.ShippedAt, &o.AutoConfirmAt, &o.DeliveredAt, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, err
	}
	if o.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	return &o, nil
}
