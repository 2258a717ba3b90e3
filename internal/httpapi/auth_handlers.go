package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vendordesk.org/internal/audit"
	"vendordesk.org/internal/gate"
	"vendordesk.org/internal/identity"
	"vendordesk.org/internal/obs"
	"vendordesk.org/internal/session"
	"vendordesk.org/internal/vendor"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionPayload struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleVendorLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		obs.CountLogin("bad_request")
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	id, accessToken, err := a.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingField):
			obs.CountLogin("bad_request")
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, identity.ErrInvalidCredentials):
			obs.CountLogin("denied")
			_ = audit.LogEvent(r.Context(), "login.denied", map[string]any{"email": req.Email})
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			obs.CountLogin("error")
			writeError(w, http.StatusInternalServerError, upstreamMessage(err))
		}
		return
	}

	v, err := a.vendors.FindByIdentity(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			obs.CountLogin("no_profile")
			writeError(w, http.StatusNotFound, "no vendor profile for this account")
			return
		}
		obs.CountLogin("error")
		writeError(w, http.StatusInternalServerError, "vendor lookup failed")
		return
	}

	// Approval is checked here, once. The session manager does not re-check it.
	if v.Status != vendor.StatusApproved {
		obs.CountLogin("pending")
		_ = audit.LogEvent(r.Context(), "login.not_approved", map[string]any{
			"vendor_id": v.ID,
			"status":    v.Status,
		})
		writeError(w, http.StatusForbidden, "vendor account is not approved", map[string]any{
			"requiresApproval": true,
			"status":           v.Status,
		})
		return
	}

	creds, err := a.sessions.Create(r.Context(), id, v.ID)
	if err != nil {
		obs.CountLogin("error")
		obs.CountSessionOp("create", "error")
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	obs.CountLogin("issued")
	obs.CountSessionOp("create", "ok")
	_ = audit.LogEvent(r.Context(), "session.created", map[string]any{
		"session_id": creds.Session.ID,
		"vendor_id":  v.ID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"sessionToken": creds.SessionToken,
		"refreshToken": creds.RefreshToken,
		"expiresAt":    creds.ExpiresAt,
		"accessToken":  accessToken,
		"vendor":       v,
		"user":         userPayload{ID: id.ID, Email: id.Email},
	})
}

type validateRequest struct {
	SessionToken string `json:"sessionToken"`
}

func (a *API) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	var token string
	switch r.Method {
	case http.MethodPost:
		var req validateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		token = req.SessionToken
	case http.MethodGet:
		var err error
		token, err = bearerToken(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": err.Error()})
			return
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	check, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session validation failed")
		return
	}
	if !check.Valid {
		obs.CountSessionOp("validate", "invalid")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		return
	}
	obs.CountSessionOp("validate", "ok")
	sess := check.Session

	state := gate.State{HasSession: true}
	var v *vendor.Vendor
	v, err = a.vendors.Find(r.Context(), sess.VendorID)
	switch {
	case err == nil:
		state.VendorStatus = v.Status
	case errors.Is(err, vendor.ErrNotFound):
		// Missing vendor record gates like a non-approved vendor.
		v = nil
	default:
		writeError(w, http.StatusInternalServerError, "vendor lookup failed")
		return
	}

	resp := map[string]any{
		"valid":       true,
		"user":        userPayload{ID: sess.IdentityID, Email: sess.IdentityEmail},
		"redirect_to": gate.Home(state),
	}
	if v != nil {
		resp["vendor"] = v
	}
	if r.Method == http.MethodPost {
		resp["session"] = sessionPayload{ID: sess.ID, IssuedAt: sess.IssuedAt, ExpiresAt: sess.ExpiresAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefresh) {
			obs.CountSessionOp("refresh", "invalid")
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		obs.CountSessionOp("refresh", "error")
		writeError(w, http.StatusInternalServerError, "session refresh failed")
		return
	}
	obs.CountSessionOp("refresh", "ok")
	_ = audit.LogEvent(r.Context(), "session.refreshed", map[string]any{
		"session_id": creds.Session.ID,
		"vendor_id":  creds.Session.VendorID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"sessionToken": creds.SessionToken,
		"refreshToken": creds.RefreshToken,
		"expiresAt":    creds.ExpiresAt,
	})
}

type logoutRequest struct {
	SessionToken string `json:"sessionToken"`
	AccessToken  string `json:"accessToken"`
}

// handleLogout always answers 200: invalidating an unknown or already revoked
// session is not an error.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req logoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		_ = decodeJSON(w, r, &req)
	}
	if req.SessionToken == "" {
		if token, err := bearerToken(r); err == nil {
			req.SessionToken = token
		}
	}
	if req.SessionToken != "" {
		if err := a.sessions.Invalidate(r.Context(), req.SessionToken); err == nil {
			obs.CountSessionOp("invalidate", "ok")
			_ = audit.LogEvent(r.Context(), "session.revoked", nil)
		} else {
			obs.CountSessionOp("invalidate", "error")
		}
	}
	if req.AccessToken != "" {
		// Best effort provider-side sign-out.
		_ = a.provider.SignOut(r.Context(), req.AccessToken)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// upstreamMessage keeps the provider's message for diagnostics without
// re-exposing its internals.
func upstreamMessage(err error) string {
	if errors.Is(err, identity.ErrUnavailable) {
		return err.Error()
	}
	return "authentication service unavailable"
}
