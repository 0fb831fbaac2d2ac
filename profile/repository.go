package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested profile row does not exist.
var ErrNotFound = errors.New("profile: not found")

// Repository provides access to profile rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `
	id, name, designation, phone, alternate_contact, company_name,
	business_type, website, gst_number, iec_code, pan_number, country,
	currency, registered_address, city, state, postal_code,
	dispatch_address, updated_at
`

// GetByID fetches a profile row by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query by id: %w", err)
	}

	return p, nil
}

// Update overwrites every writable column of the row with id. There is no
// partial patch: callers must submit the complete field set.
func (r *Repository) Update(ctx context.Context, id string, params UpdateParams) error {
	const updateSQL = `
		UPDATE profiles SET
			name = $2, designation = $3, phone = $4, alternate_contact = $5,
			company_name = $6, business_type = $7, website = $8,
			gst_number = $9, iec_code = $10, pan_number = $11, country = $12,
			currency = $13, registered_address = $14, city = $15, state = $16,
			postal_code = $17, dispatch_address = $18, updated_at = $19
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, updateSQL, id,
		params.Name,
		params.Designation,
		params.Phone,
		params.AlternateContact,
		params.CompanyName,
		params.BusinessType,
		params.Website,
		params.GSTNumber,
		params.IECCode,
		params.PANNumber,
		params.Country,
		params.Currency,
		params.RegisteredAddress,
		params.City,
		params.State,
		params.PostalCode,
		params.DispatchAddress,
		params.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profile: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// CreateEmpty provisions a blank profile row for a new identity inside the
// caller's transaction.
func (r *Repository) CreateEmpty(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `INSERT INTO profiles (id) VALUES ($1)`, id); err != nil {
		return fmt.Errorf("profile: create empty: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Designation,
		&p.Phone,
		&p.AlternateContact,
		&p.CompanyName,
		&p.BusinessType,
		&p.Website,
		&p.GSTNumber,
		&p.IECCode,
		&p.PANNumber,
		&p.Country,
		&p.Currency,
		&p.RegisteredAddress,
		&p.City,
		&p.State,
		&p.PostalCode,
		&p.DispatchAddress,
		&p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
