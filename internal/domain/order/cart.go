package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// AddItem puts one unit of the item into the user's cart, opening a cart
// when the user has none. A line that is not in the cart yet starts at
// quantity 1 even if an earlier unordered line for the item exists.
func (s *Service) AddItem(ctx context.Context, userID, slug string) (*Outcome, error) {
	var out *Outcome
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		item, err := u.Items.GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		line, err := u.Orders.EnsureLine(ctx, userID, *item)
		if err != nil {
			return errors.Wrap(err, "ensure line")
		}

		o, err := u.Orders.LockOpen(ctx, userID)
		switch {
		case errors.Is(err, ErrNoActiveOrder):
			existing, created, err := u.Orders.CreateOpen(ctx, &Order{
				UserID:    userID,
				StartDate: s.now(),
			})
			if err != nil {
				return errors.Wrap(err, "create order")
			}
			o = existing
			if created {
				out = info("This item was added to your cart.", productRoute(slug))
				return s.attach(ctx, u, o, line)
			}
		case err != nil:
			return errors.Wrap(err, "find order")
		}

		if current, ok := o.Line(item.ID); ok {
			if err := u.Orders.SetLineQuantity(ctx, current.ID, current.Quantity+1); err != nil {
				return errors.Wrap(err, "increment quantity")
			}
			out = info("This item quantity was updated.", productRoute(slug))
			return nil
		}
		out = info("This item was added to your cart.", productRoute(slug))
		return s.attach(ctx, u, o, line)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) attach(ctx context.Context, u Unit, o *Order, l *Line) error {
	if err := u.Orders.SetLineQuantity(ctx, l.ID, 1); err != nil {
		return errors.Wrap(err, "reset quantity")
	}
	if err := u.Orders.AttachLine(ctx, o.ID, l.ID); err != nil {
		return errors.Wrap(err, "attach line")
	}
	return nil
}

// RemoveItem detaches the item's line from the cart and returns to the
// product page.
func (s *Service) RemoveItem(ctx context.Context, userID, slug string) (*Outcome, error) {
	return s.removeLine(ctx, userID, slug, productRoute(slug))
}

// RemoveItemFully detaches the item's line from the cart and returns to the
// order summary.
func (s *Service) RemoveItemFully(ctx context.Context, userID, slug string) (*Outcome, error) {
	return s.removeLine(ctx, userID, slug, Redirect{Route: RouteOrderSummary})
}

func (s *Service) removeLine(ctx context.Context, userID, slug string, done Redirect) (*Outcome, error) {
	var out *Outcome
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		item, o, err := s.cartFor(ctx, u, userID, slug)
		if errors.Is(err, ErrNoActiveOrder) {
			out = info("You do not have an active order.", productRoute(slug))
			return nil
		}
		if err != nil {
			return err
		}
		line, ok := o.Line(item.ID)
		if !ok {
			out = info("This item was not in your cart.", productRoute(slug))
			return nil
		}
		if err := u.Orders.DetachLine(ctx, o.ID, line.ID); err != nil {
			return errors.Wrap(err, "detach line")
		}
		out = info("This item was removed from your cart.", done)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementQuantity adds one unit to an item already in the cart.
func (s *Service) IncrementQuantity(ctx context.Context, userID, slug string) (*Outcome, error) {
	return s.adjustQuantity(ctx, userID, slug, +1)
}

// DecrementQuantity removes one unit from an item in the cart. Quantity never
// drops below 1; decrementing a single unit leaves the line untouched.
func (s *Service) DecrementQuantity(ctx context.Context, userID, slug string) (*Outcome, error) {
	return s.adjustQuantity(ctx, userID, slug, -1)
}

func (s *Service) adjustQuantity(ctx context.Context, userID, slug string, delta int) (*Outcome, error) {
	summary := Redirect{Route: RouteOrderSummary}
	var out *Outcome
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		item, o, err := s.cartFor(ctx, u, userID, slug)
		if errors.Is(err, ErrNoActiveOrder) {
			out = info("You do not have an active order.", productRoute(slug))
			return nil
		}
		if err != nil {
			return err
		}
		line, ok := o.Line(item.ID)
		if !ok {
			out = info("This item was not in your cart.", productRoute(slug))
			return nil
		}
		next := line.Quantity + delta
		if next < 1 {
			out = &Outcome{Redirect: summary}
			return nil
		}
		if err := u.Orders.SetLineQuantity(ctx, line.ID, next); err != nil {
			return errors.Wrap(err, "set quantity")
		}
		out = info("This item quantity was updated.", summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cartFor resolves the item and locks the user's open order.
func (s *Service) cartFor(ctx context.Context, u Unit, userID, slug string) (*catalog.Item, *Order, error) {
	item, err := u.Items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	o, err := u.Orders.LockOpen(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return item, o, nil
}

func productRoute(slug string) Redirect {
	return Redirect{Route: RouteProduct, Param: slug}
}
