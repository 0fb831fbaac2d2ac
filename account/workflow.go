// Package account orchestrates the session store and the profile record
// store for the buyer-facing flows: signup, login, sign-out and profile
// settings. Steps inside a flow are strictly sequential and nothing is rolled
// back once committed; the partial-failure outcomes are modeled explicitly.
package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"buyerdesk/identity"
	"buyerdesk/profile"
)

// Navigation targets signaled by the flows.
const (
	DashboardPath = "/dashboard/buyer"
	SettingsPath  = "/dashboard/buyer/settings"
)

var (
	// ErrSessionAfterSignup is the distinct partial-failure outcome: the
	// identity now exists but no session is active, so the caller should
	// retry login rather than sign up again.
	ErrSessionAfterSignup = errors.New("Account created but failed to sign in automatically.")
	// ErrNotLoggedIn is returned when a flow requires a session and none is
	// active.
	ErrNotLoggedIn = errors.New("You must be logged in to update your profile.")
	// ErrUpdateFailed is the generic message surfaced for rejected profile
	// writes; the underlying store error is logged, never leaked.
	ErrUpdateFailed = errors.New("Failed to update profile.")
)

// MsgProfileUpdated is the success flash for the settings form.
const MsgProfileUpdated = "Profile updated successfully!"

// SessionStore is the narrow view of the identity service the flows need.
type SessionStore interface {
	AdminCreateUser(ctx context.Context, params identity.CreateUserParams) (identity.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (identity.Session, string, error)
	SignOut(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (identity.Identity, error)
}

// ProfileStore is the narrow view of the profile record store the flows need.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
	Update(ctx context.Context, id string, params profile.UpdateParams) error
}

// CacheInvalidator receives the staleness signal after mutating flows.
// Renders are scoped per viewing identity, so the signal names the viewer
// whose renders went stale.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, viewerID string, paths ...string) error
}

// Redirect tells the surface where to navigate and how to adjust the client
// session.
type Redirect struct {
	Path       string
	Token      string // session token to set on the client, if any
	ClearToken bool   // drop the client's session token
}

// SignupParams are the recognized signup form fields.
type SignupParams struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
}

// FormFields is the flat string-keyed collection a form post submits.
type FormFields map[string]string

// Workflow implements the account flows over the two stores.
type Workflow struct {
	sessions SessionStore
	profiles ProfileStore
	cache    CacheInvalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorkflow builds a Workflow. cache may be nil when no render cache is in
// front of the dashboard.
func NewWorkflow(sessions SessionStore, profiles ProfileStore, cache CacheInvalidator, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		sessions: sessions,
		profiles: profiles,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Signup creates an identity with pre-confirmed email and immediately
// establishes a session with the same credentials. The identity is not
// rolled back when the sign-in step fails.
func (w *Workflow) Signup(ctx context.Context, params SignupParams) (Redirect, error) {
	ident, err := w.sessions.AdminCreateUser(ctx, identity.CreateUserParams{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: true,
		Metadata: map[string]string{
			identity.MetaFullName: params.Name,
			identity.MetaPhone:    params.Phone,
			identity.MetaRole:     params.Role,
		},
	})
	if err != nil {
		return Redirect{}, err
	}

	_, token, err := w.sessions.SignInWithPassword(ctx, params.Email, params.Password)
	if err != nil {
		w.logger.Warn("signup: sign-in after create failed", "identity_id", ident.ID, "err", err)
		return Redirect{}, ErrSessionAfterSignup
	}

	w.invalidate(ctx, ident.ID, DashboardPath)

	return Redirect{Path: DashboardPath, Token: token}, nil
}

// Login makes exactly one sign-in attempt; failures leave session state
// unchanged.
func (w *Workflow) Login(ctx context.Context, email, password string) (Redirect, error) {
	sess, token, err := w.sessions.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Redirect{}, err
	}

	w.invalidate(ctx, sess.IdentityID, DashboardPath)

	return Redirect{Path: DashboardPath, Token: token}, nil
}

// SignOut unconditionally invalidates the current session. Calling it with
// no active session is not an error. The session holder is resolved first so
// their renders can be dropped along with the session.
func (w *Workflow) SignOut(ctx context.Context, token string) Redirect {
	ident, identErr := w.sessions.GetUser(ctx, token)

	if err := w.sessions.SignOut(ctx, token); err != nil {
		w.logger.Warn("sign-out: revoke session failed", "err", err)
	}

	if identErr == nil {
		w.invalidate(ctx, ident.ID, DashboardPath)
	}

	return Redirect{Path: DashboardPath, ClearToken: true}
}

// UpdateProfile overwrites the session holder's profile row from the
// submitted fields. The target row id always comes from the session, never
// from the form.
func (w *Workflow) UpdateProfile(ctx context.Context, token string, fields FormFields) (string, error) {
	ident, err := w.sessions.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return "", ErrNotLoggedIn
		}
		// Infrastructure failure, not an authorization outcome: the caller
		// gets the generic store-failure message.
		w.logger.Error("profile update: resolve session failed", "err", err)
		return "", ErrUpdateFailed
	}

	params := buildUpdateParams(fields)
	params.UpdatedAt = w.now().UTC()

	if err := w.profiles.Update(ctx, ident.ID, params); err != nil {
		w.logger.Error("profile update rejected", "identity_id", ident.ID, "err", err)
		return "", ErrUpdateFailed
	}

	w.invalidate(ctx, ident.ID, SettingsPath)

	return MsgProfileUpdated, nil
}

// ProfileView is the display-time merge of the profile row with identity
// metadata. The fallback never reaches the write path.
type ProfileView struct {
	Profile profile.Profile
	Email   string
	Role    identity.Role
}

// LoadProfile fetches the session holder's profile for rendering. A missing
// row or empty name/phone fall back to identity metadata; nothing is written
// back.
func (w *Workflow) LoadProfile(ctx context.Context, token string) (ProfileView, error) {
	ident, err := w.sessions.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return ProfileView{}, ErrNotLoggedIn
		}
		return ProfileView{}, err
	}

	p, err := w.profiles.GetByID(ctx, ident.ID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			return ProfileView{}, err
		}
		p = profile.Profile{ID: ident.ID}
	}

	if p.Name == "" {
		p.Name = ident.Metadata[identity.MetaFullName]
	}
	if p.Phone == "" {
		p.Phone = ident.Metadata[identity.MetaPhone]
	}

	return ProfileView{Profile: p, Email: ident.Email, Role: ident.Role()}, nil
}

// buildUpdateParams maps exactly the recognized field set; unrecognized keys
// are ignored and missing keys are written empty (full-overwrite semantics).
func buildUpdateParams(fields FormFields) profile.UpdateParams {
	return profile.UpdateParams{
		Name:              fields["name"],
		Designation:       fields["designation"],
		Phone:             fields["phone"],
		AlternateContact:  fields["alternate_contact"],
		CompanyName:       fields["company_name"],
		BusinessType:      fields["business_type"],
		Website:           fields["website"],
		GSTNumber:         fields["gst_number"],
		IECCode:           fields["iec_code"],
		PANNumber:         fields["pan_number"],
		Country:           fields["country"],
		Currency:          fields["currency"],
		RegisteredAddress: fields["registered_address"],
		City:              fields["city"],
		State:             fields["state"],
		PostalCode:        fields["postal_code"],
		DispatchAddress:   fields["dispatch_address"],
	}
}

func (w *Workflow) invalidate(ctx context.Context, viewerID string, paths ...string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.Invalidate(ctx, viewerID, paths...); err != nil {
		w.logger.Warn("cache invalidation failed", "viewer_id", viewerID, "paths", paths, "err", err)
	}
}
