package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `o.id, o.user_id, COALESCE(o.ref_code, ''), o.start_date, o.ordered_date,
		o.ordered, o.being_delivered, o.received, o.refund_requested, o.refund_granted,
		COALESCE(o.shipping_address, ''), COALESCE(o.billing_address, ''), COALESCE(o.payment_id, ''),
		c.id, c.code, c.amount`

	orderFrom = ` FROM orders o LEFT JOIN coupons c ON c.id = o.coupon_id`

	findOpenOrderSQL = `SELECT ` + orderColumns + orderFrom + ` WHERE o.user_id = $1 AND NOT o.ordered`

	lockOpenOrderSQL = findOpenOrderSQL + ` FOR UPDATE OF o`

	findOrderByRefCodeSQL = `SELECT ` + orderColumns + orderFrom + ` WHERE o.ref_code = $1`

	// The partial unique index orders_one_open_per_user makes a concurrent
	// second insert a no-op instead of a second cart.
	createOpenOrderSQL = `INSERT INTO orders (id, user_id, start_date, ordered_date)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) WHERE NOT ordered DO NOTHING`

	listLinesSQL = `SELECT ol.order_id, oi.id, oi.user_id, oi.quantity, oi.ordered, ` + itemColumns + `
		FROM order_lines ol
		JOIN order_items oi ON oi.id = ol.order_item_id
		JOIN items i ON i.id = oi.item_id
		WHERE ol.order_id = ANY($1)
		ORDER BY i.title, oi.id`

	ensureLineSQL = `INSERT INTO order_items (id, user_id, item_id, quantity)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, item_id) WHERE NOT ordered DO NOTHING`

	findOpenLineSQL = `SELECT id, user_id, quantity, ordered FROM order_items
		WHERE user_id = $1 AND item_id = $2 AND NOT ordered`

	setLineQuantitySQL = `UPDATE order_items SET quantity = $2 WHERE id = $1`

	attachLineSQL = `INSERT INTO order_lines (order_id, order_item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	detachLineSQL = `DELETE FROM order_lines WHERE order_id = $1 AND order_item_id = $2`

	markLinesOrderedSQL = `UPDATE order_items SET ordered = TRUE
		WHERE id IN (SELECT order_item_id FROM order_lines WHERE order_id = $1)`

	updateOrderSQL = `UPDATE orders SET
		ref_code = NULLIF($2, ''), ordered = $3, ordered_date = $4,
		shipping_address = NULLIF($5, ''), billing_address = NULLIF($6, ''), payment_id = NULLIF($7, ''),
		coupon_id = $8, being_delivered = $9, received = $10, refund_requested = $11, refund_granted = $12
		WHERE id = $1`

	refCodeExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE ref_code = $1)`

	createRefundSQL = `INSERT INTO refunds (id, order_id, reason, email, accepted) VALUES ($1, $2, $3, $4, $5)`

	applyStatusSQL = `UPDATE orders SET
		being_delivered = COALESCE($2, being_delivered),
		received = COALESCE($3, received),
		refund_requested = COALESCE($4, refund_requested),
		refund_granted = COALESCE($5, refund_granted)
		WHERE id = ANY($1)
		RETURNING id, user_id`

	decideRefundsSQL = `UPDATE refunds SET accepted = $2 WHERE order_id = ANY($1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// FindOpen returns the user's open order with its lines.
func (r *OrderRepository) FindOpen(ctx context.Context, userID string) (*order.Order, error) {
	return r.findOne(ctx, findOpenOrderSQL, userID, order.ErrNoActiveOrder)
}

// LockOpen is FindOpen taking a row lock on the order.
func (r *OrderRepository) LockOpen(ctx context.Context, userID string) (*order.Order, error) {
	return r.findOne(ctx, lockOpenOrderSQL, userID, order.ErrNoActiveOrder)
}

// FindByRefCode returns the order with the given reference code.
func (r *OrderRepository) FindByRefCode(ctx context.Context, code string) (*order.Order, error) {
	return r.findOne(ctx, findOrderByRefCodeSQL, code, order.ErrOrderNotFound)
}

func (r *OrderRepository) findOne(ctx context.Context, sql, arg string, notFound error) (*order.Order, error) {
	rows, err := r.q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("finding order: %w", err)
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOpen inserts o as the user's cart. When another cart was created
// concurrently, that cart is returned instead.
func (r *OrderRepository) CreateOpen(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	id := uuid.NewString()
	tag, err := r.q.Exec(ctx, createOpenOrderSQL, id, o.UserID, o.StartDate)
	if err != nil {
		return nil, false, fmt.Errorf("creating order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.FindOpen(ctx, o.UserID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	o.ID = id
	o.OrderedDate = o.StartDate
	o.Lines = nil
	return o, true, nil
}

// EnsureLine returns the user's unordered line for the item, creating it
// with quantity 1 when absent.
func (r *OrderRepository) EnsureLine(ctx context.Context, userID string, item catalog.Item) (*order.Line, error) {
	if _, err := r.q.Exec(ctx, ensureLineSQL, uuid.NewString(), userID, item.ID); err != nil {
		return nil, fmt.Errorf("creating line: %w", err)
	}
	l := &order.Line{Item: item}
	err := r.q.QueryRow(ctx, findOpenLineSQL, userID, item.ID).Scan(&l.ID, &l.UserID, &l.Quantity, &l.Ordered)
	if err != nil {
		return nil, fmt.Errorf("finding line: %w", err)
	}
	return l, nil
}

func (r *OrderRepository) SetLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if _, err := r.q.Exec(ctx, setLineQuantitySQL, lineID, quantity); err != nil {
		return fmt.Errorf("setting quantity of line %q: %w", lineID, err)
	}
	return nil
}

func (r *OrderRepository) AttachLine(ctx context.Context, orderID, lineID string) error {
	if _, err := r.q.Exec(ctx, attachLineSQL, orderID, lineID); err != nil {
		return fmt.Errorf("attaching line %q: %w", lineID, err)
	}
	return nil
}

func (r *OrderRepository) DetachLine(ctx context.Context, orderID, lineID string) error {
	if _, err := r.q.Exec(ctx, detachLineSQL, orderID, lineID); err != nil {
		return fmt.Errorf("detaching line %q: %w", lineID, err)
	}
	return nil
}

func (r *OrderRepository) MarkLinesOrdered(ctx context.Context, orderID string) error {
	if _, err := r.q.Exec(ctx, markLinesOrderedSQL, orderID); err != nil {
		return fmt.Errorf("marking lines of %q ordered: %w", orderID, err)
	}
	return nil
}

// Update persists the order's references, flags and reference code.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	var couponID *string
	if o.Coupon != nil {
		couponID = &o.Coupon.ID
	}
	tag, err := r.q.Exec(ctx, updateOrderSQL,
		o.ID, o.RefCode, o.Ordered, o.OrderedDate,
		o.ShippingAddressID, o.BillingAddressID, o.PaymentID,
		couponID, o.BeingDelivered, o.Received, o.RefundRequested, o.RefundGranted,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) RefCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, refCodeExistsSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking ref code: %w", err)
	}
	return exists, nil
}

func (r *OrderRepository) CreateRefund(ctx context.Context, ref *order.Refund) error {
	ref.ID = uuid.NewString()
	if _, err := r.q.Exec(ctx, createRefundSQL, ref.ID, ref.OrderID, ref.Reason, ref.Email, ref.Accepted); err != nil {
		return fmt.Errorf("creating refund for %q: %w", ref.OrderID, err)
	}
	return nil
}

// ApplyStatus updates the flags set in patch on every listed order and
// returns the orders that exist.
func (r *OrderRepository) ApplyStatus(ctx context.Context, ids []string, p order.StatusPatch) ([]order.StatusChange, error) {
	rows, err := r.q.Query(ctx, applyStatusSQL, ids, p.BeingDelivered, p.Received, p.RefundRequested, p.RefundGranted)
	if err != nil {
		return nil, fmt.Errorf("applying status: %w", err)
	}
	changed, err := pgx.CollectRows(rows, pgx.RowToStructByPos[order.StatusChange])
	if err != nil {
		return nil, fmt.Errorf("applying status: %w", err)
	}
	if p.RefundAccepted != nil && len(changed) > 0 {
		affected := make([]string, len(changed))
		for i, c := range changed {
			affected[i] = c.OrderID
		}
		if _, err := r.q.Exec(ctx, decideRefundsSQL, affected, *p.RefundAccepted); err != nil {
			return nil, fmt.Errorf("deciding refunds: %w", err)
		}
	}
	return changed, nil
}

// List returns orders matching f, newest first, with their lines.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("o.user_id = $%d", f.UserID)
	}
	if f.RefCode != "" {
		add("o.ref_code = $%d", f.RefCode)
	}
	for _, flag := range []struct {
		column string
		value  *bool
	}{
		{"o.ordered", f.Ordered},
		{"o.being_delivered", f.BeingDelivered},
		{"o.received", f.Received},
		{"o.refund_requested", f.RefundRequested},
		{"o.refund_granted", f.RefundGranted},
	} {
		if flag.value != nil {
			add(flag.column+" = $%d", *flag.value)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + orderColumns + orderFrom)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, f.Limit)
	fmt.Fprintf(&sb, " ORDER BY o.start_date DESC, o.id LIMIT $%d", len(args))

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	ptrs := make([]*order.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.loadLines(ctx, ptrs...); err != nil {
		return nil, err
	}
	return orders, nil
}

type orderLine struct {
	orderID string
	line    order.Line
}

func (r *OrderRepository) loadLines(ctx context.Context, orders ...*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.q.Query(ctx, listLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return fmt.Errorf("listing lines: %w", err)
	}
	for _, ol := range lines {
		o := byID[ol.orderID]
		o.Lines = append(o.Lines, ol.line)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		couponID   *string
		couponCode *string
		amount     *int64
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.RefCode, &o.StartDate, &o.OrderedDate,
		&o.Ordered, &o.BeingDelivered, &o.Received, &o.RefundRequested, &o.RefundGranted,
		&o.ShippingAddressID, &o.BillingAddressID, &o.PaymentID,
		&couponID, &couponCode, &amount,
	)
	if err != nil {
		return o, err
	}
	if couponID != nil {
		o.Coupon = &coupon.Coupon{ID: *couponID, Code: *couponCode, Amount: *amount}
	}
	return o, nil
}

func scanOrderLine(row pgx.CollectableRow) (orderLine, error) {
	var (
		ol orderLine
		it = &ol.line.Item
	)
	err := row.Scan(
		&ol.orderID, &ol.line.ID, &ol.line.UserID, &ol.line.Quantity, &ol.line.Ordered,
		&it.ID, &it.Title, &it.Price, &it.DiscountPrice, &it.Category, &it.Label, &it.Slug, &it.Description,
		&it.Images.Primary, &it.Images.Secondary[0], &it.Images.Secondary[1], &it.Images.Secondary[2],
	)
	return ol, err
}
