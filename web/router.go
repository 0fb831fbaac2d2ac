package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"buyerdesk/account"
	"buyerdesk/rendercache"
)

// Router wires the account workflow to the form submission surface.
type Router struct {
	Mux         *http.ServeMux
	middlewares []Middleware

	workflow   *account.Workflow
	cache      RenderCache
	logger     *slog.Logger
	sessionTTL time.Duration
}

// NewRouter builds the surface. cache may be nil to serve every view fresh.
func NewRouter(workflow *account.Workflow, cache RenderCache, logger *slog.Logger, sessionTTL time.Duration) *Router {
	r := &Router{
		Mux:        http.NewServeMux(),
		workflow:   workflow,
		cache:      cache,
		logger:     logger,
		sessionTTL: sessionTTL,
	}

	r.middlewares = []Middleware{
		RequestLogger(logger),
	}

	return r
}

// ApplyRoutes registers every handler on the mux.
func (r *Router) ApplyRoutes() {
	r.Mux.Handle("POST /signup", &SignupHandler{router: r})
	r.Mux.Handle("POST /login", &LoginHandler{router: r})
	r.Mux.Handle("POST /logout", &LogoutHandler{router: r})
	r.Mux.Handle("GET "+account.DashboardPath, &DashboardHandler{router: r})
	r.Mux.Handle(account.SettingsPath, &SettingsHandler{router: r})
	r.Mux.Handle("GET /healthz", &HealthHandler{})
}

// ServeHTTP applies the global middleware chain in front of the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.Mux
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	handler.ServeHTTP(w, req)
}

func (r *Router) writeRedirect(w http.ResponseWriter, req *http.Request, redirect account.Redirect) {
	if redirect.ClearToken {
		clearSessionCookie(w)
	}
	if redirect.Token != "" {
		setSessionCookie(w, redirect.Token, r.sessionTTL)
	}
	http.Redirect(w, req, redirect.Path, http.StatusSeeOther)
}

// writeCached serves the viewer's cached render for path when present,
// otherwise renders view and stores it under the viewer's key. Cache
// failures degrade to a fresh render.
func (r *Router) writeCached(w http.ResponseWriter, req *http.Request, viewerID, path string, view any) {
	log := LoggerFrom(req.Context())

	if r.cache != nil {
		data, err := r.cache.Get(req.Context(), viewerID, path)
		switch {
		case err == nil:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		case !errors.Is(err, rendercache.ErrMiss):
			log.Warn("render cache read failed", "path", path, "err", err)
		}
	}

	data, err := json.Marshal(view)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render view")
		return
	}

	if r.cache != nil {
		if err := r.cache.Set(req.Context(), viewerID, path, data); err != nil {
			log.Warn("render cache write failed", "path", path, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
