package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/address"
)

const (
	addressColumns = `id, user_id, street_address, apartment_address, city, country, post_code, address_type, is_default`

	createAddressSQL = `INSERT INTO addresses (` + addressColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	findDefaultAddressSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 AND address_type = $2 AND is_default`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE
		WHERE user_id = $1 AND address_type = $2 AND is_default`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 AND address_type = $2 ORDER BY is_default DESC, id`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	q querier
}

// Create inserts a new address and assigns its ID.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	a.ID = uuid.NewString()
	_, err := r.q.Exec(ctx, createAddressSQL,
		a.ID, a.UserID, a.Street, a.Apartment, a.City, a.Country, a.PostCode, string(a.Type), a.Default,
	)
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}
	return nil
}

// FindDefault returns the default address of type t or address.ErrNoDefault.
func (r *AddressRepository) FindDefault(ctx context.Context, userID string, t address.Type) (*address.Address, error) {
	rows, err := r.q.Query(ctx, findDefaultAddressSQL, userID, string(t))
	if err != nil {
		return nil, fmt.Errorf("finding default %s address: %w", t, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNoDefault
		}
		return nil, fmt.Errorf("finding default %s address: %w", t, err)
	}
	return &a, nil
}

// ClearDefault demotes the current default address of type t, if any.
func (r *AddressRepository) ClearDefault(ctx context.Context, userID string, t address.Type) error {
	if _, err := r.q.Exec(ctx, clearDefaultAddressSQL, userID, string(t)); err != nil {
		return fmt.Errorf("clearing default %s address: %w", t, err)
	}
	return nil
}

// List returns the user's addresses of type t, default first.
func (r *AddressRepository) List(ctx context.Context, userID string, t address.Type) ([]address.Address, error) {
	rows, err := r.q.Query(ctx, listAddressesSQL, userID, string(t))
	if err != nil {
		return nil, fmt.Errorf("listing %s addresses: %w", t, err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Street, &a.Apartment, &a.City, &a.Country, &a.PostCode, &a.Type, &a.Default)
	return a, err
}
