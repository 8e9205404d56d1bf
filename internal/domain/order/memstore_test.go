package order

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
)

// memStore is an in-memory Transactor. A failed transaction restores the
// state captured when it began.
type memStore struct {
	st memState
}

type orderRow struct {
	order   Order
	lineIDs []string
}

type lineRow struct {
	line   Line
	itemID string
}

type memState struct {
	seq       int
	items     map[string]catalog.Item
	orders    map[string]*orderRow
	lines     map[string]*lineRow
	addresses map[string]address.Address
	coupons   map[string]coupon.Coupon
	payments  map[string]payment.Payment
	customers map[string]payment.Customer
	refunds   []Refund
}

func newMemStore() *memStore {
	return &memStore{st: memState{
		items:     map[string]catalog.Item{},
		orders:    map[string]*orderRow{},
		lines:     map[string]*lineRow{},
		addresses: map[string]address.Address{},
		coupons:   map[string]coupon.Coupon{},
		payments:  map[string]payment.Payment{},
		customers: map[string]payment.Customer{},
	}}
}

func (s memState) clone() memState {
	c := s
	c.items = maps.Clone(s.items)
	c.addresses = maps.Clone(s.addresses)
	c.coupons = maps.Clone(s.coupons)
	c.payments = maps.Clone(s.payments)
	c.customers = maps.Clone(s.customers)
	c.refunds = slices.Clone(s.refunds)
	c.orders = make(map[string]*orderRow, len(s.orders))
	for id, r := range s.orders {
		c.orders[id] = &orderRow{order: r.order, lineIDs: slices.Clone(r.lineIDs)}
	}
	c.lines = make(map[string]*lineRow, len(s.lines))
	for id, r := range s.lines {
		cp := *r
		c.lines[id] = &cp
	}
	return c
}

func (m *memStore) nextID(prefix string) string {
	m.st.seq++
	return fmt.Sprintf("%s-%d", prefix, m.st.seq)
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	snapshot := m.st.clone()
	err := fn(ctx, Unit{
		Orders:    memOrders{m},
		Items:     memItems{m},
		Addresses: memAddresses{m},
		Coupons:   memCoupons{m},
		Payments:  memPayments{m},
	})
	if err != nil {
		m.st = snapshot
	}
	return err
}

// Test helpers.

func (m *memStore) addItem(it catalog.Item) catalog.Item {
	if it.ID == "" {
		it.ID = m.nextID("item")
	}
	m.st.items[it.ID] = it
	return it
}

func (m *memStore) openOrders(userID string) []Order {
	var out []Order
	for _, r := range m.st.orders {
		if r.order.UserID == userID && !r.order.Ordered {
			out = append(out, m.load(r))
		}
	}
	return out
}

func (m *memStore) load(r *orderRow) Order {
	o := r.order
	o.Lines = nil
	for _, id := range r.lineIDs {
		lr := m.st.lines[id]
		l := lr.line
		l.Item = m.st.items[lr.itemID]
		o.Lines = append(o.Lines, l)
	}
	return o
}

var (
	_ Transactor         = (*memStore)(nil)
	_ Repository         = memOrders{}
	_ catalog.Repository = memItems{}
	_ address.Repository = memAddresses{}
	_ coupon.Repository  = memCoupons{}
	_ payment.Repository = memPayments{}
)

type memOrders struct{ m *memStore }

func (r memOrders) FindOpen(_ context.Context, userID string) (*Order, error) {
	for _, row := range r.m.st.orders {
		if row.order.UserID == userID && !row.order.Ordered {
			o := r.m.load(row)
			return &o, nil
		}
	}
	return nil, ErrNoActiveOrder
}

func (r memOrders) LockOpen(ctx context.Context, userID string) (*Order, error) {
	return r.FindOpen(ctx, userID)
}

func (r memOrders) CreateOpen(ctx context.Context, o *Order) (*Order, bool, error) {
	if existing, err := r.FindOpen(ctx, o.UserID); err == nil {
		return existing, false, nil
	}
	o.ID = r.m.nextID("order")
	row := &orderRow{order: *o}
	row.order.Lines = nil
	r.m.st.orders[o.ID] = row
	loaded := r.m.load(row)
	return &loaded, true, nil
}

func (r memOrders) EnsureLine(_ context.Context, userID string, item catalog.Item) (*Line, error) {
	for _, lr := range r.m.st.lines {
		if lr.line.UserID == userID && lr.itemID == item.ID && !lr.line.Ordered {
			l := lr.line
			l.Item = item
			return &l, nil
		}
	}
	l := Line{ID: r.m.nextID("line"), UserID: userID, Quantity: 1}
	r.m.st.lines[l.ID] = &lineRow{line: l, itemID: item.ID}
	l.Item = item
	return &l, nil
}

func (r memOrders) SetLineQuantity(_ context.Context, lineID string, quantity int) error {
	lr, ok := r.m.st.lines[lineID]
	if !ok {
		return fmt.Errorf("line %s not found", lineID)
	}
	lr.line.Quantity = quantity
	return nil
}

func (r memOrders) AttachLine(_ context.Context, orderID, lineID string) error {
	row := r.m.st.orders[orderID]
	if !slices.Contains(row.lineIDs, lineID) {
		row.lineIDs = append(row.lineIDs, lineID)
	}
	return nil
}

func (r memOrders) DetachLine(_ context.Context, orderID, lineID string) error {
	row := r.m.st.orders[orderID]
	row.lineIDs = slices.DeleteFunc(row.lineIDs, func(id string) bool { return id == lineID })
	return nil
}

func (r memOrders) MarkLinesOrdered(_ context.Context, orderID string) error {
	for _, id := range r.m.st.orders[orderID].lineIDs {
		r.m.st.lines[id].line.Ordered = true
	}
	return nil
}

func (r memOrders) Update(_ context.Context, o *Order) error {
	row, ok := r.m.st.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	row.order = *o
	row.order.Lines = nil
	return nil
}

func (r memOrders) RefCodeExists(_ context.Context, code string) (bool, error) {
	for _, row := range r.m.st.orders {
		if row.order.RefCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) FindByRefCode(_ context.Context, code string) (*Order, error) {
	for _, row := range r.m.st.orders {
		if code != "" && row.order.RefCode == code {
			o := r.m.load(row)
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r memOrders) CreateRefund(_ context.Context, ref *Refund) error {
	ref.ID = r.m.nextID("refund")
	r.m.st.refunds = append(r.m.st.refunds, *ref)
	return nil
}

func (r memOrders) ApplyStatus(_ context.Context, ids []string, p StatusPatch) ([]StatusChange, error) {
	var changed []StatusChange
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	for _, id := range ids {
		row, ok := r.m.st.orders[id]
		if !ok {
			continue
		}
		set(&row.order.BeingDelivered, p.BeingDelivered)
		set(&row.order.Received, p.Received)
		set(&row.order.RefundRequested, p.RefundRequested)
		set(&row.order.RefundGranted, p.RefundGranted)
		for i := range r.m.st.refunds {
			if r.m.st.refunds[i].OrderID == id {
				set(&r.m.st.refunds[i].Accepted, p.RefundAccepted)
			}
		}
		changed = append(changed, StatusChange{OrderID: id, UserID: row.order.UserID})
	}
	return changed, nil
}

func (r memOrders) List(_ context.Context, f ListFilter) ([]Order, error) {
	match := func(v bool, want *bool) bool { return want == nil || *want == v }
	var out []Order
	for _, row := range r.m.st.orders {
		o := row.order
		if (f.UserID != "" && o.UserID != f.UserID) || (f.RefCode != "" && o.RefCode != f.RefCode) {
			continue
		}
		if !match(o.Ordered, f.Ordered) || !match(o.BeingDelivered, f.BeingDelivered) ||
			!match(o.Received, f.Received) || !match(o.RefundRequested, f.RefundRequested) ||
			!match(o.RefundGranted, f.RefundGranted) {
			continue
		}
		out = append(out, r.m.load(row))
	}
	slices.SortFunc(out, func(a, b Order) int { return b.StartDate.Compare(a.StartDate) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memItems struct{ m *memStore }

func (r memItems) List(_ context.Context, offset, limit int) ([]catalog.Item, error) {
	all := slices.SortedFunc(maps.Values(r.m.st.items), func(a, b catalog.Item) int {
		return strings.Compare(a.ID, b.ID)
	})
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memItems) Count(context.Context) (int, error) { return len(r.m.st.items), nil }

func (r memItems) GetBySlug(_ context.Context, slug string) (*catalog.Item, error) {
	for _, it := range r.m.st.items {
		if it.Slug == slug {
			return &it, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (r memItems) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := r.m.st.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r memItems) Delete(_ context.Context, id string) error {
	delete(r.m.st.items, id)
	return nil
}

func (r memItems) UpdateImages(_ context.Context, id string, images catalog.Images) error {
	it := r.m.st.items[id]
	it.Images = images
	r.m.st.items[id] = it
	return nil
}

type memAddresses struct{ m *memStore }

func (r memAddresses) Create(_ context.Context, a *address.Address) error {
	a.ID = r.m.nextID("addr")
	r.m.st.addresses[a.ID] = *a
	return nil
}

func (r memAddresses) FindDefault(_ context.Context, userID string, t address.Type) (*address.Address, error) {
	for _, a := range r.m.st.addresses {
		if a.UserID == userID && a.Type == t && a.Default {
			return &a, nil
		}
	}
	return nil, address.ErrNoDefault
}

func (r memAddresses) ClearDefault(_ context.Context, userID string, t address.Type) error {
	for id, a := range r.m.st.addresses {
		if a.UserID == userID && a.Type == t {
			a.Default = false
			r.m.st.addresses[id] = a
		}
	}
	return nil
}

func (r memAddresses) List(_ context.Context, userID string, t address.Type) ([]address.Address, error) {
	var out []address.Address
	for _, a := range r.m.st.addresses {
		if a.UserID == userID && a.Type == t {
			out = append(out, a)
		}
	}
	return out, nil
}

type memCoupons struct{ m *memStore }

func (r memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := r.m.st.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (r memCoupons) Upsert(_ context.Context, c *coupon.Coupon) error {
	if c.ID == "" {
		c.ID = r.m.nextID("coupon")
	}
	r.m.st.coupons[c.Code] = *c
	return nil
}

func (r memCoupons) Codes(_ context.Context, fn func(code string) error) error {
	for code := range r.m.st.coupons {
		if err := fn(code); err != nil {
			return err
		}
	}
	return nil
}

type memPayments struct{ m *memStore }

func (r memPayments) Create(_ context.Context, p *payment.Payment) error {
	p.ID = r.m.nextID("payment")
	r.m.st.payments[p.ID] = *p
	return nil
}

func (r memPayments) FindCustomer(_ context.Context, userID string) (*payment.Customer, error) {
	c, ok := r.m.st.customers[userID]
	if !ok {
		return nil, payment.ErrNoCustomer
	}
	return &c, nil
}

func (r memPayments) SaveCustomer(_ context.Context, c *payment.Customer) error {
	r.m.st.customers[c.UserID] = *c
	return nil
}
