package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Validator resolves a submitted coupon code to a stored coupon.
type Validator interface {
	Validate(ctx context.Context, code string) (*Coupon, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo}
}

// Validate trims surrounding whitespace and looks the code up by exact match.
// Empty or over-long codes never reach the repository.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > MaxCodeLen {
		return nil, ErrNotFound
	}
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

// Parse validates one imported coupon record. Amount must be non-negative.
func Parse(code string, amount int64) (*Coupon, error) {
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return nil, errors.New("empty coupon code")
	case len(code) > MaxCodeLen:
		return nil, errors.Errorf("coupon code %q longer than %d", code, MaxCodeLen)
	case amount < 0:
		return nil, errors.Errorf("coupon %q has negative amount", code)
	}
	return &Coupon{Code: code, Amount: amount}, nil
}
