package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"buyerdesk/identity"
	"buyerdesk/profile"
)

func TestSignupEstablishesSessionAndRedirects(t *testing.T) {
	sessions := newFakeSessionStore()
	profiles := newFakeProfileStore()
	cache := &fakeCache{}
	w := NewWorkflow(sessions, profiles, cache, discardLogger())

	ctx := context.Background()
	redirect, err := w.Signup(ctx, SignupParams{
		Email:    "a@x.com",
		Password: "pw123456",
		Name:     "Ann",
		Phone:    "555",
		Role:     "buyer",
	})
	if err != nil {
		t.Fatalf("signup: unexpected error: %v", err)
	}
	if redirect.Path != "/dashboard/buyer" {
		t.Fatalf("expected redirect to /dashboard/buyer, got %q", redirect.Path)
	}
	if redirect.Token == "" {
		t.Fatal("expected session token on redirect")
	}

	ident, err := sessions.GetUser(ctx, redirect.Token)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got := ident.Metadata[identity.MetaFullName]; got != "Ann" {
		t.Fatalf("expected full_name Ann, got %q", got)
	}
	if got := ident.Metadata[identity.MetaPhone]; got != "555" {
		t.Fatalf("expected phone 555, got %q", got)
	}
	if got := ident.Metadata[identity.MetaRole]; got != "buyer" {
		t.Fatalf("expected role buyer, got %q", got)
	}

	if !cache.invalidated(ident.ID, DashboardPath) {
		t.Fatal("expected dashboard render to be invalidated for the new user")
	}
}

func TestSignupCreateFailureStopsFlow(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.failCreate = identity.ErrDuplicateEmail
	cache := &fakeCache{}
	w := NewWorkflow(sessions, newFakeProfileStore(), cache, discardLogger())

	_, err := w.Signup(context.Background(), SignupParams{
		Email:    "a@x.com",
		Password: "pw123456",
		Name:     "Ann",
	})
	if !errors.Is(err, identity.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if sessions.signInCalls != 0 {
		t.Fatalf("expected no sign-in attempt, got %d", sessions.signInCalls)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("expected no invalidation, got %v", cache.entries)
	}
}

func TestSignupPartialFailureIsDistinct(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.failSignIn = true
	w := NewWorkflow(sessions, newFakeProfileStore(), nil, discardLogger())

	_, err := w.Signup(context.Background(), SignupParams{
		Email:    "a@x.com",
		Password: "pw123456",
		Name:     "Ann",
	})
	if !errors.Is(err, ErrSessionAfterSignup) {
		t.Fatalf("expected ErrSessionAfterSignup, got %v", err)
	}
	if err.Error() != "Account created but failed to sign in automatically." {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	// The identity exists despite the failed session: login works once
	// sign-in recovers.
	sessions.failSignIn = false
	if _, err := w.Login(context.Background(), "a@x.com", "pw123456"); err != nil {
		t.Fatalf("login after partial failure: %v", err)
	}
}

func TestLoginRedirectsAndInvalidates(t *testing.T) {
	sessions := newFakeSessionStore()
	cache := &fakeCache{}
	w := NewWorkflow(sessions, newFakeProfileStore(), cache, discardLogger())

	ctx := context.Background()
	if _, err := w.Signup(ctx, SignupParams{Email: "a@x.com", Password: "pw123456", Name: "Ann"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	redirect, err := w.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if redirect.Path != DashboardPath || redirect.Token == "" {
		t.Fatalf("unexpected redirect %+v", redirect)
	}

	if _, err := w.Login(ctx, "a@x.com", "wrongpass"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	sessions := newFakeSessionStore()
	cache := &fakeCache{}
	w := NewWorkflow(sessions, newFakeProfileStore(), cache, discardLogger())

	// No active session: still a clean redirect, nothing to invalidate.
	redirect := w.SignOut(context.Background(), "no-such-token")
	if redirect.Path != DashboardPath || !redirect.ClearToken {
		t.Fatalf("unexpected redirect %+v", redirect)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("expected no invalidation without a session, got %v", cache.entries)
	}

	ctx := context.Background()
	signupRedirect, err := w.Signup(ctx, SignupParams{Email: "a@x.com", Password: "pw123456", Name: "Ann"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	ident, _ := sessions.GetUser(ctx, signupRedirect.Token)

	redirect = w.SignOut(ctx, signupRedirect.Token)
	if redirect.Path != DashboardPath || !redirect.ClearToken {
		t.Fatalf("unexpected redirect %+v", redirect)
	}
	if !cache.invalidated(ident.ID, DashboardPath) {
		t.Fatal("expected the holder's dashboard render to be invalidated")
	}
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	profiles := newFakeProfileStore()
	profiles.rows["u1"] = profile.Profile{ID: "u1", Name: "Ann"}
	w := NewWorkflow(newFakeSessionStore(), profiles, nil, discardLogger())

	_, err := w.UpdateProfile(context.Background(), "", FormFields{"name": "Mallory"})
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if err.Error() != "You must be logged in to update your profile." {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if profiles.updateCalls != 0 {
		t.Fatal("expected profile row untouched")
	}
	if got := profiles.rows["u1"].Name; got != "Ann" {
		t.Fatalf("row changed without session: name=%q", got)
	}
}

func TestUpdateProfileOverwritesEveryField(t *testing.T) {
	sessions := newFakeSessionStore()
	profiles := newFakeProfileStore()
	cache := &fakeCache{}
	w := NewWorkflow(sessions, profiles, cache, discardLogger())

	ctx := context.Background()
	redirect, err := w.Signup(ctx, SignupParams{Email: "a@x.com", Password: "pw123456", Name: "Ann"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	ident, _ := sessions.GetUser(ctx, redirect.Token)
	profiles.rows[ident.ID] = profile.Profile{ID: ident.ID, Name: "Ann", Website: "old.example"}

	before := time.Now()
	msg, err := w.UpdateProfile(ctx, redirect.Token, FormFields{
		"name":         "Ann B",
		"company_name": "Acme",
		"hacker_field": "ignored",
	})
	if err != nil {
		t.Fatalf("update: unexpected error: %v", err)
	}
	if msg != MsgProfileUpdated {
		t.Fatalf("unexpected success message %q", msg)
	}

	row := profiles.rows[ident.ID]
	if row.Name != "Ann B" || row.CompanyName != "Acme" {
		t.Fatalf("submitted fields not written: %+v", row)
	}
	if row.Website != "" {
		t.Fatalf("omitted field survived full overwrite: %q", row.Website)
	}
	if row.UpdatedAt.Before(before) {
		t.Fatalf("updated_at %v predates the call", row.UpdatedAt)
	}
	if !cache.invalidated(ident.ID, SettingsPath) {
		t.Fatal("expected settings render to be invalidated for the holder")
	}
}

func TestUpdateProfileInfraFailureIsNotAuthError(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.failGetUser = errors.New("session registry unavailable")
	profiles := newFakeProfileStore()
	w := NewWorkflow(sessions, profiles, nil, discardLogger())

	_, err := w.UpdateProfile(context.Background(), "some-token", FormFields{"name": "Ann B"})
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("expected ErrUpdateFailed for infrastructure failure, got %v", err)
	}
	if errors.Is(err, ErrNotLoggedIn) {
		t.Fatal("infrastructure failure must not read as an authorization outcome")
	}
	if profiles.updateCalls != 0 {
		t.Fatal("expected no store write on failed session resolution")
	}

	if _, err := w.LoadProfile(context.Background(), "some-token"); errors.Is(err, ErrNotLoggedIn) {
		t.Fatal("load: infrastructure failure must not read as an authorization outcome")
	}
}

func TestUpdateProfileStoreFailureIsGeneric(t *testing.T) {
	sessions := newFakeSessionStore()
	profiles := newFakeProfileStore()
	profiles.failUpdate = errors.New("constraint violated")
	w := NewWorkflow(sessions, profiles, nil, discardLogger())

	ctx := context.Background()
	redirect, err := w.Signup(ctx, SignupParams{Email: "a@x.com", Password: "pw123456", Name: "Ann"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err = w.UpdateProfile(ctx, redirect.Token, FormFields{"name": "Ann B"})
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("expected ErrUpdateFailed, got %v", err)
	}
	if strings.Contains(err.Error(), "constraint") {
		t.Fatalf("store error leaked to caller: %q", err.Error())
	}
}

func TestLoadProfileFallsBackToMetadata(t *testing.T) {
	sessions := newFakeSessionStore()
	profiles := newFakeProfileStore()
	w := NewWorkflow(sessions, profiles, nil, discardLogger())

	ctx := context.Background()
	redirect, err := w.Signup(ctx, SignupParams{Email: "a@x.com", Password: "pw123456", Name: "Ann", Phone: "555"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	view, err := w.LoadProfile(ctx, redirect.Token)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if view.Profile.Name != "Ann" || view.Profile.Phone != "555" {
		t.Fatalf("expected metadata fallback, got %+v", view.Profile)
	}
	if view.Email != "a@x.com" {
		t.Fatalf("expected email from identity, got %q", view.Email)
	}

	// Display-time merge only: nothing was persisted.
	if profiles.updateCalls != 0 {
		t.Fatal("fallback must not write to the store")
	}
	if _, ok := profiles.rows[view.Profile.ID]; ok {
		t.Fatal("fallback must not create a row")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionStore struct {
	identities map[string]identity.Identity // by lowercased email
	byID       map[string]identity.Identity
	active     map[string]string // token -> identity id

	failCreate  error
	failSignIn  bool
	failGetUser error
	signInCalls int
	nextID      int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		identities: map[string]identity.Identity{},
		byID:       map[string]identity.Identity{},
		active:     map[string]string{},
		nextID:     1,
	}
}

func (f *fakeSessionStore) AdminCreateUser(_ context.Context, params identity.CreateUserParams) (identity.Identity, error) {
	if f.failCreate != nil {
		return identity.Identity{}, f.failCreate
	}
	if len(params.Password) < 8 {
		return identity.Identity{}, identity.ErrWeakPassword
	}

	email := strings.ToLower(params.Email)
	if _, exists := f.identities[email]; exists {
		return identity.Identity{}, identity.ErrDuplicateEmail
	}

	meta := map[string]string{}
	for k, v := range params.Metadata {
		meta[k] = v
	}
	if meta[identity.MetaRole] == "" {
		meta[identity.MetaRole] = string(identity.RoleBuyer)
	}

	ident := identity.Identity{
		ID:             fmt.Sprintf("ident-%d", f.nextID),
		Email:          email,
		PasswordHash:   params.Password,
		Metadata:       meta,
		EmailConfirmed: params.EmailConfirm,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	f.nextID++
	f.identities[email] = ident
	f.byID[ident.ID] = ident

	return ident, nil
}

func (f *fakeSessionStore) SignInWithPassword(_ context.Context, email, password string) (identity.Session, string, error) {
	f.signInCalls++
	if f.failSignIn {
		return identity.Session{}, "", fmt.Errorf("session store unavailable")
	}

	ident, ok := f.identities[strings.ToLower(email)]
	if !ok || ident.PasswordHash != password {
		return identity.Session{}, "", identity.ErrInvalidCredentials
	}

	token := fmt.Sprintf("token-%d-%s", len(f.active)+1, ident.ID)
	f.active[token] = ident.ID

	return identity.Session{ID: token, IdentityID: ident.ID, ExpiresAt: time.Now().Add(time.Hour)}, token, nil
}

func (f *fakeSessionStore) SignOut(_ context.Context, token string) error {
	delete(f.active, token)
	return nil
}

func (f *fakeSessionStore) GetUser(_ context.Context, token string) (identity.Identity, error) {
	if f.failGetUser != nil {
		return identity.Identity{}, f.failGetUser
	}
	id, ok := f.active[token]
	if !ok {
		return identity.Identity{}, identity.ErrNoSession
	}
	return f.byID[id], nil
}

type fakeProfileStore struct {
	rows        map[string]profile.Profile
	failUpdate  error
	updateCalls int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{rows: map[string]profile.Profile{}}
}

func (f *fakeProfileStore) GetByID(_ context.Context, id string) (profile.Profile, error) {
	p, ok := f.rows[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) Update(_ context.Context, id string, params profile.UpdateParams) error {
	f.updateCalls++
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.rows[id] = profile.Profile{
		ID:                id,
		Name:              params.Name,
		Designation:       params.Designation,
		Phone:             params.Phone,
		AlternateContact:  params.AlternateContact,
		CompanyName:       params.CompanyName,
		BusinessType:      params.BusinessType,
		Website:           params.Website,
		GSTNumber:         params.GSTNumber,
		IECCode:           params.IECCode,
		PANNumber:         params.PANNumber,
		Country:           params.Country,
		Currency:          params.Currency,
		RegisteredAddress: params.RegisteredAddress,
		City:              params.City,
		State:             params.State,
		PostalCode:        params.PostalCode,
		DispatchAddress:   params.DispatchAddress,
		UpdatedAt:         params.UpdatedAt,
	}
	return nil
}

type invalidation struct {
	viewerID string
	path     string
}

type fakeCache struct {
	entries []invalidation
}

func (f *fakeCache) Invalidate(_ context.Context, viewerID string, paths ...string) error {
	for _, p := range paths {
		f.entries = append(f.entries, invalidation{viewerID: viewerID, path: p})
	}
	return nil
}

func (f *fakeCache) invalidated(viewerID, path string) bool {
	for _, e := range f.entries {
		if e.viewerID == viewerID && e.path == path {
			return true
		}
	}
	return false
}
