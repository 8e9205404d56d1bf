package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// money writes amount in minor units together with its decimal rendering
// under name+"_display".
func money(e *jx.Encoder, name string, amount int64) {
	e.FieldStart(name)
	e.Int64(amount)
	e.FieldStart(name + "_display")
	e.Str(decimal.New(amount, -2).StringFixed(2))
}

func optStr(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.FieldStart(name)
	e.Str(v)
}

func optTime(e *jx.Encoder, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeNotice(e *jx.Encoder, n order.Notice) {
	e.ObjStart()
	e.FieldStart("level")
	e.Str(string(n.Level))
	e.FieldStart("message")
	e.Str(n.Message)
	e.ObjEnd()
}

func encodeRedirect(e *jx.Encoder, r order.Redirect) {
	e.ObjStart()
	e.FieldStart("route")
	e.Str(r.Route)
	optStr(e, "param", r.Param)
	e.ObjEnd()
}

func (h *Handler) imageURL(name string) string {
	if name == "" || h.mediaURL == "" {
		return name
	}
	return h.mediaURL + "/" + name
}

func (h *Handler) encodeItem(e *jx.Encoder, it catalog.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("title")
	e.Str(it.Title)
	e.FieldStart("slug")
	e.Str(it.Slug)
	money(e, "price", it.Price)
	if it.DiscountPrice != nil {
		money(e, "discount_price", *it.DiscountPrice)
	}
	e.FieldStart("category")
	e.Str(string(it.Category))
	e.FieldStart("label")
	e.Str(string(it.Label))
	optStr(e, "description", it.Description)
	e.FieldStart("image")
	e.Str(h.imageURL(it.Images.Primary))
	e.FieldStart("images")
	e.ArrStart()
	for _, name := range it.SecondaryImages() {
		e.Str(h.imageURL(name))
	}
	e.ArrEnd()
	e.ObjEnd()
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	optStr(e, "ref_code", o.RefCode)
	e.FieldStart("stage")
	e.Str(string(o.Stage()))
	optTime(e, "start_date", o.StartDate)
	optTime(e, "ordered_date", o.OrderedDate)

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("item")
		h.encodeItem(e, l.Item)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		money(e, "total_price", l.TotalPrice())
		money(e, "final_price", l.FinalPrice())
		money(e, "amount_saved", l.AmountSaved())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("quantity")
	e.Int(o.TotalQuantity())
	money(e, "subtotal", o.Subtotal())
	if o.Coupon != nil {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(o.Coupon.Code)
		money(e, "amount", o.Coupon.Amount)
		e.ObjEnd()
	}
	money(e, "total", o.Total())

	e.FieldStart("flags")
	e.ObjStart()
	for _, f := range []struct {
		name string
		v    bool
	}{
		{"ordered", o.Ordered},
		{"being_delivered", o.BeingDelivered},
		{"received", o.Received},
		{"refund_requested", o.RefundRequested},
		{"refund_granted", o.RefundGranted},
	} {
		e.FieldStart(f.name)
		e.Bool(f.v)
	}
	e.ObjEnd()

	optStr(e, "shipping_address_id", o.ShippingAddressID)
	optStr(e, "billing_address_id", o.BillingAddressID)
	optStr(e, "payment_id", o.PaymentID)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	if a == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(a.ID)
	e.FieldStart("type")
	e.Str(a.Type.String())
	e.FieldStart("street_address")
	e.Str(a.Street)
	optStr(e, "apartment_address", a.Apartment)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("country")
	e.Str(a.Country)
	e.FieldStart("post_code")
	e.Str(a.PostCode)
	e.FieldStart("default")
	e.Bool(a.Default)
	e.ObjEnd()
}

func encodeCard(e *jx.Encoder, c payment.Card) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("brand")
	e.Str(c.Brand)
	e.FieldStart("last4")
	e.Str(c.Last4)
	e.FieldStart("exp_month")
	e.Int(c.ExpMonth)
	e.FieldStart("exp_year")
	e.Int(c.ExpYear)
	e.ObjEnd()
}
