package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"vendordesk.org/internal/identity"
	"vendordesk.org/internal/obs"
	"vendordesk.org/internal/session"
	"vendordesk.org/internal/vendor"
)

// ReadyProbe checks readiness dependencies (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's collaborators.
type Config struct {
	Provider    identity.Provider
	Sessions    *session.Manager
	Vendors     vendor.Store
	AdminTokens *identity.TokenCodec
	ReadyProbe  ReadyProbe
	Version     string
	CORSOrigins []string

	// Login rate limiting (per client IP). Zero values fall back to defaults.
	LoginRatePerSecond int
	LoginBurst         int
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	provider    identity.Provider
	sessions    *session.Manager
	vendors     vendor.Store
	adminTokens *identity.TokenCodec
	readyProbe  ReadyProbe
	version     string
	corsOrigins []string
}

// New constructs the API and registers its routes.
func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		provider:    cfg.Provider,
		sessions:    cfg.Sessions,
		vendors:     cfg.Vendors,
		adminTokens: cfg.AdminTokens,
		readyProbe:  cfg.ReadyProbe,
		version:     cfg.Version,
		corsOrigins: cfg.CORSOrigins,
	}

	perSecond := cfg.LoginRatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 10
	}

	// Auth lifecycle
	a.mux.Handle("/auth/vendor-login",
		RateLimit(http.HandlerFunc(a.handleVendorLogin), burst, perSecond))
	a.mux.HandleFunc("/auth/validate-session", a.handleValidateSession)
	a.mux.HandleFunc("/auth/refresh-session", a.handleRefreshSession)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)

	// Vendor verification
	a.mux.HandleFunc("/vendor/profile", a.handleVendorProfile)
	a.mux.HandleFunc("/vendor/verification", a.handleVerification)
	a.mux.HandleFunc("/vendor/verification/documents", a.handleVerificationDocument)
	a.mux.HandleFunc("/vendor/verification/submit", a.handleVerificationSubmit)
	a.mux.HandleFunc("/admin/verification/review", a.handleVerificationReview)

	// Operational
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxRequestBody)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vendordesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
