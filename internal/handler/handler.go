// Package handler exposes the storefront over a JSON HTTP API.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Orders is the order lifecycle as used by the API.
type Orders interface {
	Summary(ctx context.Context, userID string) (*order.Order, error)
	AddItem(ctx context.Context, userID, slug string) (*order.Outcome, error)
	RemoveItem(ctx context.Context, userID, slug string) (*order.Outcome, error)
	RemoveItemFully(ctx context.Context, userID, slug string) (*order.Outcome, error)
	IncrementQuantity(ctx context.Context, userID, slug string) (*order.Outcome, error)
	DecrementQuantity(ctx context.Context, userID, slug string) (*order.Outcome, error)
	CheckoutContext(ctx context.Context, userID string) (*order.CheckoutPage, error)
	Checkout(ctx context.Context, userID string, req order.CheckoutRequest) (*order.Outcome, error)
	ApplyCoupon(ctx context.Context, userID, code string) (*order.Outcome, error)
	PaymentContext(ctx context.Context, userID, option string) (*order.PaymentPage, error)
	CapturePayment(ctx context.Context, userID string, req order.PaymentRequest) (*order.Receipt, error)
	RequestRefund(ctx context.Context, req order.RefundRequest) (*order.Outcome, error)
	ApplyAdminAction(ctx context.Context, action order.AdminAction, orderIDs []string) (int64, error)
	ListOrders(ctx context.Context, f order.ListFilter) ([]order.Order, error)
}

// Catalog is the item listing and its admin actions.
type Catalog interface {
	List(ctx context.Context, page int) (*catalog.Page, error)
	Get(ctx context.Context, slug string) (*catalog.Item, error)
	Delete(ctx context.Context, slug string) error
	ReplaceImages(ctx context.Context, slug string, images catalog.Images) (*catalog.Item, error)
}

// Addresses reads the caller's address book.
type Addresses interface {
	List(ctx context.Context, userID string, t address.Type) ([]address.Address, error)
}

// MediaStore stores uploaded image files.
type MediaStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Handler() http.Handler
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MediaURL is prepended to stored image names in item responses.
	MediaURL string
	// MaxUploadBytes caps a multipart image upload.
	MaxUploadBytes int64
}

// Handler serves the storefront API.
type Handler struct {
	orders    Orders
	catalog   Catalog
	addresses Addresses
	media     MediaStore
	auth      *Authenticator

	mediaURL       string
	maxUploadBytes int64
}

// New creates a Handler.
func New(cfg Config, orders Orders, items Catalog, addresses Addresses, media MediaStore, authn *Authenticator) *Handler {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		orders:         orders,
		catalog:        items,
		addresses:      addresses,
		media:          media,
		auth:           authn,
		mediaURL:       cfg.MediaURL,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Routes returns the API router. It is mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/items", h.listItems)
	r.Get("/items/{slug}", h.getItem)
	r.Post("/refunds", h.requestRefund)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require(auth.ScopeCustomer))

		r.Get("/cart", h.getCart)
		r.Post("/cart/items/{slug}", h.cartAction(Orders.AddItem))
		r.Delete("/cart/items/{slug}", h.cartAction(Orders.RemoveItem))
		r.Delete("/cart/items/{slug}/all", h.cartAction(Orders.RemoveItemFully))
		r.Post("/cart/items/{slug}/increment", h.cartAction(Orders.IncrementQuantity))
		r.Post("/cart/items/{slug}/decrement", h.cartAction(Orders.DecrementQuantity))

		r.Get("/checkout", h.getCheckout)
		r.Post("/checkout", h.postCheckout)
		r.Post("/coupon", h.applyCoupon)
		r.Get("/payment/{option}", h.getPayment)
		r.Post("/payment/{option}", h.postPayment)

		r.Get("/addresses", h.listAddresses)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.auth.Require(auth.ScopeAdmin))

		r.Get("/orders", h.listOrders)
		r.Post("/orders/actions", h.adminAction)
		r.Delete("/items/{slug}", h.deleteItem)
		r.Put("/items/{slug}/images", h.uploadImages)
	})

	return r
}

// Media serves stored image files.
func (h *Handler) Media() http.Handler {
	return h.media.Handler()
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// respond writes the {notice, redirect, data} envelope. Data is omitted
// when data is nil.
func respond(w http.ResponseWriter, status int, out *order.Outcome, data func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		if out != nil {
			if out.Notice.Message != "" {
				e.FieldStart("notice")
				encodeNotice(e, out.Notice)
			}
			if out.Redirect.Route != "" {
				e.FieldStart("redirect")
				encodeRedirect(e, out.Redirect)
			}
		}
		if data != nil {
			e.FieldStart("data")
			data(e)
		}
		e.ObjEnd()
	})
}

// fail writes a customer-facing error response. Errors that are not
// recoverable are logged and answered with a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if out, ok := order.Explain(err); ok {
		respond(w, statusOf(err), out, nil)
		return
	}

	var (
		verr *validationError
		aerr *authError
	)
	switch {
	case errors.As(err, &verr):
		respond(w, http.StatusBadRequest, &order.Outcome{
			Notice: order.Notice{Level: order.LevelWarning, Message: verr.Error()},
		}, nil)
		return
	case errors.As(err, &aerr):
		respond(w, aerr.status, &order.Outcome{
			Notice: order.Notice{Level: order.LevelError, Message: aerr.msg},
		}, nil)
		return
	case errors.Is(err, order.ErrUnknownAction):
		respond(w, http.StatusBadRequest, &order.Outcome{
			Notice: order.Notice{Level: order.LevelWarning, Message: "Unknown action"},
		}, nil)
		return
	}

	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respond(w, http.StatusInternalServerError, &order.Outcome{
		Notice: order.Notice{Level: order.LevelError, Message: "Something went wrong"},
	}, nil)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrNoActiveOrder),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound
	}
	var perr *payment.Error
	if errors.As(err, &perr) {
		if perr.Kind.Escalate() {
			return http.StatusBadGateway
		}
		return http.StatusPaymentRequired
	}
	return http.StatusUnprocessableEntity
}

// validationError is a malformed request.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func userID(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid("%s must be an integer", name)
	}
	return n, nil
}
