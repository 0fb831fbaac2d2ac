package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the identity does not exist.
	ErrNotFound = errors.New("identity: not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("identity: email already exists")
)

// ProfileProvisioner creates the empty profile row that accompanies a new
// identity, inside the same transaction as the identity insert.
type ProfileProvisioner interface {
	CreateEmpty(ctx context.Context, tx pgx.Tx, id string) error
}

// Repository handles data access for identities.
type Repository interface {
	CreateIdentity(ctx context.Context, params CreateIdentityParams) (Identity, error)
	GetByEmail(ctx context.Context, email string) (Identity, error)
	GetByID(ctx context.Context, id string) (Identity, error)
}

// CreateIdentityParams contains write parameters for inserting identities.
type CreateIdentityParams struct {
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	Metadata       map[string]string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool     *pgxpool.Pool
	profiles ProfileProvisioner
}

// NewRepository creates a PostgreSQL-backed identity repository. The
// provisioner may be nil when profile rows are managed elsewhere.
func NewRepository(pool *pgxpool.Pool, profiles ProfileProvisioner) *PGRepository {
	return &PGRepository{pool: pool, profiles: profiles}
}

// CreateIdentity inserts a new identity and provisions its profile row in the
// same transaction.
func (r *PGRepository) CreateIdentity(ctx context.Context, params CreateIdentityParams) (Identity, error) {
	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: encode metadata: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO identities (email, password_hash, metadata, email_confirmed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, metadata, email_confirmed, created_at, updated_at
	`

	ident, err := scanIdentity(tx.QueryRow(ctx, insertSQL, params.Email, params.PasswordHash, meta, params.EmailConfirmed))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Identity{}, ErrDuplicateEmail
		}
		return Identity{}, fmt.Errorf("identity: create: %w", err)
	}

	if r.profiles != nil {
		if err := r.profiles.CreateEmpty(ctx, tx, ident.ID); err != nil {
			return Identity{}, fmt.Errorf("identity: provision profile: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Identity{}, fmt.Errorf("identity: commit: %w", err)
	}

	return ident, nil
}

// GetByEmail retrieves an identity by email address.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Identity, error) {
	const selectSQL = `
		SELECT id, email, password_hash, metadata, email_confirmed, created_at, updated_at
		FROM identities
		WHERE email = $1
	`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("identity: get by email: %w", err)
	}

	return ident, nil
}

// GetByID retrieves an identity by ID.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Identity, error) {
	const selectSQL = `
		SELECT id, email, password_hash, metadata, email_confirmed, created_at, updated_at
		FROM identities
		WHERE id = $1
	`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("identity: get by id: %w", err)
	}

	return ident, nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		ident Identity
		meta  []byte
	)
	err := row.Scan(
		&ident.ID,
		&ident.Email,
		&ident.PasswordHash,
		&meta,
		&ident.EmailConfirmed,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		return Identity{}, err
	}

	ident.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &ident.Metadata); err != nil {
			return Identity{}, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return ident, nil
}
