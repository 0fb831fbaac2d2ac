package web

import (
	"context"
	"errors"
	"net/http"

	"buyerdesk/account"
	"buyerdesk/identity"
	"buyerdesk/rendercache"
)

// RenderCache is the slice of the render cache the view handlers use.
// Renders are scoped to the viewing identity so no user is ever served
// another user's view.
type RenderCache interface {
	Get(ctx context.Context, viewerID, path string) ([]byte, error)
	Set(ctx context.Context, viewerID, path string, data []byte) error
}

// SignupHandler handles the signup form post.
type SignupHandler struct {
	router *Router
}

func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields, ok := formFields(w, r)
	if !ok {
		return
	}

	redirect, err := h.router.workflow.Signup(r.Context(), account.SignupParams{
		Email:    fields["email"],
		Password: fields["password"],
		Name:     fields["name"],
		Phone:    fields["phone"],
		Role:     fields["role"],
	})
	if err != nil {
		writeError(w, flashStatus(err), err.Error())
		return
	}

	h.router.writeRedirect(w, r, redirect)
}

// LoginHandler handles the login form post.
type LoginHandler struct {
	router *Router
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields, ok := formFields(w, r)
	if !ok {
		return
	}

	redirect, err := h.router.workflow.Login(r.Context(), fields["email"], fields["password"])
	if err != nil {
		writeError(w, flashStatus(err), err.Error())
		return
	}

	h.router.writeRedirect(w, r, redirect)
}

// LogoutHandler revokes the current session. It never fails.
type LogoutHandler struct {
	router *Router
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	redirect := h.router.workflow.SignOut(r.Context(), sessionToken(r))
	h.router.writeRedirect(w, r, redirect)
}

// SettingsHandler serves the settings view and accepts the profile update
// form post.
type SettingsHandler struct {
	router *Router
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.post(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.router.workflow.LoadProfile(r.Context(), sessionToken(r))
	if err != nil {
		writeError(w, flashStatus(err), err.Error())
		return
	}

	p := view.Profile
	h.router.writeCached(w, r, view.Profile.ID, account.SettingsPath, map[string]any{
		"email":              view.Email,
		"role":               view.Role,
		"name":               p.Name,
		"designation":        p.Designation,
		"phone":              p.Phone,
		"alternate_contact":  p.AlternateContact,
		"company_name":       p.CompanyName,
		"business_type":      p.BusinessType,
		"website":            p.Website,
		"gst_number":         p.GSTNumber,
		"iec_code":           p.IECCode,
		"pan_number":         p.PANNumber,
		"country":            p.Country,
		"currency":           p.Currency,
		"registered_address": p.RegisteredAddress,
		"city":               p.City,
		"state":              p.State,
		"postal_code":        p.PostalCode,
		"dispatch_address":   p.DispatchAddress,
		"updated_at":         p.UpdatedAt,
	})
}

func (h *SettingsHandler) post(w http.ResponseWriter, r *http.Request) {
	fields, ok := formFields(w, r)
	if !ok {
		return
	}

	msg, err := h.router.workflow.UpdateProfile(r.Context(), sessionToken(r), fields)
	if err != nil {
		writeError(w, flashStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, FlashResponse{Success: msg})
}

// DashboardHandler serves the buyer dashboard view.
type DashboardHandler struct {
	router *Router
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	view, err := h.router.workflow.LoadProfile(r.Context(), sessionToken(r))
	if err != nil {
		writeError(w, flashStatus(err), err.Error())
		return
	}

	h.router.writeCached(w, r, view.Profile.ID, account.DashboardPath, map[string]any{
		"email":        view.Email,
		"role":         view.Role,
		"name":         view.Profile.Name,
		"company_name": view.Profile.CompanyName,
	})
}

// HealthHandler reports liveness.
type HealthHandler struct{}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// formFields parses a form post into the flat string-keyed collection the
// workflow consumes. Repeated keys keep their first value.
func formFields(w http.ResponseWriter, r *http.Request) (account.FormFields, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form submission")
		return nil, false
	}

	fields := account.FormFields{}
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, true
}

func flashStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, account.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, account.ErrSessionAfterSignup),
		errors.Is(err, account.ErrUpdateFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

var _ RenderCache = (*rendercache.Cache)(nil)
