package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

func parseFlag(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, invalid("%s must be a boolean", name)
	}
	return &b, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f := order.ListFilter{
		UserID:  r.URL.Query().Get("user_id"),
		RefCode: r.URL.Query().Get("ref_code"),
	}
	for _, flag := range []struct {
		name string
		dst  **bool
	}{
		{"ordered", &f.Ordered},
		{"being_delivered", &f.BeingDelivered},
		{"received", &f.Received},
		{"refund_requested", &f.RefundRequested},
		{"refund_granted", &f.RefundGranted},
	} {
		v, err := parseFlag(r, flag.name)
		if err != nil {
			fail(w, r, err)
			return
		}
		*flag.dst = v
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	f.Limit = limit

	orders, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			h.encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) adminAction(w http.ResponseWriter, r *http.Request) {
	var (
		action string
		ids    []string
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "action":
			action, err = d.Str()
		case "order_ids":
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				ids = append(ids, id)
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if len(ids) == 0 {
		fail(w, r, invalid("order_ids is required"))
		return
	}

	n, err := h.orders.ApplyAdminAction(r.Context(), order.AdminAction(action), ids)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("updated")
		e.Int64(n)
		e.ObjEnd()
	})
}
