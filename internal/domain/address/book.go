package address

import (
	"context"

	"github.com/go-faster/errors"
)

// Book reads a user's stored addresses for the account and checkout pages.
type Book struct {
	repo Repository
}

// NewBook creates an address Book.
func NewBook(repo Repository) *Book {
	return &Book{repo: repo}
}

// List returns the user's addresses of type t, default first.
func (b *Book) List(ctx context.Context, userID string, t Type) ([]Address, error) {
	if !t.Valid() {
		return nil, errors.Errorf("unknown address type %q", t)
	}
	return b.repo.List(ctx, userID, t)
}

// Default returns the user's default address of type t, or nil when none
// is marked.
func (b *Book) Default(ctx context.Context, userID string, t Type) (*Address, error) {
	a, err := b.repo.FindDefault(ctx, userID, t)
	if errors.Is(err, ErrNoDefault) {
		return nil, nil
	}
	return a, err
}

// Save persists a new address. When makeDefault is set, any previous default
// of the same type is demoted first so exactly one default remains. Callers
// run Save inside a transaction.
func Save(ctx context.Context, repo Repository, a *Address, makeDefault bool) error {
	if makeDefault {
		if err := repo.ClearDefault(ctx, a.UserID, a.Type); err != nil {
			return errors.Wrap(err, "clear default")
		}
	}
	a.Default = makeDefault
	if err := repo.Create(ctx, a); err != nil {
		return errors.Wrapf(err, "create %s address", a.Type)
	}
	return nil
}
