package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/order"
)

const maxBodyBytes = 64 << 10

// decodeBody reads a JSON object from the request body field by field.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jx.Decode(body, 4096).Obj(fn); err != nil {
		return invalid("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Summary(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

type cartFunc func(o Orders, ctx context.Context, userID, slug string) (*order.Outcome, error)

func (h *Handler) cartAction(fn cartFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(h.orders, r.Context(), userID(r), chi.URLParam(r, "slug"))
		if err != nil {
			fail(w, r, err)
			return
		}
		respond(w, http.StatusOK, out, nil)
	}
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	page, err := h.orders.CheckoutContext(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		h.encodeOrder(e, page.Order)
		e.FieldStart("default_shipping")
		encodeAddress(e, page.DefaultShipping)
		e.FieldStart("default_billing")
		encodeAddress(e, page.DefaultBilling)
		e.ObjEnd()
	})
}

func decodeAddressInput(d *jx.Decoder, in *order.AddressInput) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "use_default":
			in.UseDefault, err = d.Bool()
		case "set_default":
			in.SetDefault, err = d.Bool()
		case "street_address":
			in.Fields.Street, err = d.Str()
		case "apartment_address":
			in.Fields.Apartment, err = d.Str()
		case "city":
			in.Fields.City, err = d.Str()
		case "country":
			in.Fields.Country, err = d.Str()
		case "post_code":
			in.Fields.PostCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (h *Handler) postCheckout(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "shipping":
			err = decodeAddressInput(d, &req.Shipping)
		case "billing":
			err = decodeAddressInput(d, &req.Billing)
		case "same_billing_address":
			req.SameBilling, err = d.Bool()
		case "payment_option":
			req.PaymentOption, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	out, err := h.orders.Checkout(r.Context(), userID(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, out, nil)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "code" {
			code, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	out, err := h.orders.ApplyCoupon(r.Context(), userID(r), code)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, out, nil)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	page, err := h.orders.PaymentContext(r.Context(), userID(r), chi.URLParam(r, "option"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		h.encodeOrder(e, page.Order)
		e.FieldStart("option")
		e.Str(page.Option.Route())
		money(e, "amount", page.Amount)
		e.FieldStart("cards")
		e.ArrStart()
		for _, c := range page.Cards {
			encodeCard(e, c)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	req := order.PaymentRequest{Option: chi.URLParam(r, "option")}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "token", "stripeToken":
			req.Token, err = d.Str()
		case "save_card":
			req.SaveCard, err = d.Bool()
		case "use_default":
			req.UseSaved, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	receipt, err := h.orders.CapturePayment(r.Context(), userID(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := &order.Outcome{
		Notice:   order.Notice{Level: order.LevelSuccess, Message: "Your order was successful!"},
		Redirect: order.Redirect{Route: order.RouteHome},
	}
	respond(w, http.StatusOK, out, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("ref_code")
		e.Str(receipt.Order.RefCode)
		e.FieldStart("payment_id")
		e.Str(receipt.Payment.ID)
		money(e, "amount", receipt.Payment.Amount)
		e.ObjEnd()
	})
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req order.RefundRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "ref_code":
			req.RefCode, err = d.Str()
		case "message":
			req.Reason, err = d.Str()
		case "email":
			req.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	out, err := h.orders.RequestRefund(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, out, nil)
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	t := address.Type(r.URL.Query().Get("type"))
	if !t.Valid() {
		fail(w, r, invalid("type must be %q or %q", address.Billing, address.Shipping))
		return
	}
	list, err := h.addresses.List(r.Context(), userID(r), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range list {
			encodeAddress(e, &list[i])
		}
		e.ArrEnd()
	})
}
