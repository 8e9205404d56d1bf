package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNoDefault is returned when a user has no default address of the
// requested type.
var ErrNoDefault = errors.New("no default address")

// Type distinguishes billing and shipping addresses.
type Type string

const (
	Billing  Type = "B"
	Shipping Type = "S"
)

// Valid reports whether t is a known address type.
func (t Type) Valid() bool {
	return t == Billing || t == Shipping
}

func (t Type) String() string {
	switch t {
	case Billing:
		return "billing"
	case Shipping:
		return "shipping"
	default:
		return string(t)
	}
}

// Address is a postal address owned by a user.
type Address struct {
	ID        string
	UserID    string
	Street    string
	Apartment string
	City      string
	Country   string
	PostCode  string
	Type      Type
	Default   bool
}

// Fields is the user-submitted part of an address.
type Fields struct {
	Street    string
	Apartment string
	City      string
	Country   string
	PostCode  string
}

// ValidationError lists the required fields left blank for one address.
type ValidationError struct {
	Type   Type
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("please fill in the required %s address fields: %s",
		e.Type, strings.Join(e.Fields, ", "))
}

// Validate checks that every required field is non-blank. Apartment is optional.
func (f Fields) Validate(t Type) error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"street_address", f.Street},
		{"country", f.Country},
		{"city", f.City},
		{"post_code", f.PostCode},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Type: t, Fields: missing}
	}
	return nil
}

// Clone returns a copy of a with a fresh identity and the given type. The
// copy is never marked default.
func (a Address) Clone(t Type) Address {
	a.ID = ""
	a.Type = t
	a.Default = false
	return a
}

// Repository defines address book persistence.
type Repository interface {
	Create(ctx context.Context, a *Address) error
	FindDefault(ctx context.Context, userID string, t Type) (*Address, error)
	ClearDefault(ctx context.Context, userID string, t Type) error
	List(ctx context.Context, userID string, t Type) ([]Address, error)
}
