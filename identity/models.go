package identity

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Metadata keys the rest of the system relies on.
const (
	MetaFullName = "full_name"
	MetaPhone    = "phone"
	MetaRole     = "role"
)

// Identity is the domain representation of an authenticated principal.
// It mirrors the identities table and carries no JSON annotations so it
// can be reused by different presentation layers.
type Identity struct {
	ID             string
	Email          string
	PasswordHash   string
	Metadata       map[string]string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Role returns the role recorded in the identity metadata, defaulting to buyer.
func (i Identity) Role() Role {
	if r := Role(i.Metadata[MetaRole]); r != "" {
		return r
	}
	return RoleBuyer
}

// Session is the runtime proof that a request acts on behalf of an Identity.
// It is registered server-side so that sign-out actually revokes it.
type Session struct {
	ID         string
	IdentityID string
	ExpiresAt  time.Time
}

// CreateUserParams contains write parameters for administrative identity creation.
type CreateUserParams struct {
	Email        string
	Password     string
	EmailConfirm bool
	Metadata     map[string]string
}
