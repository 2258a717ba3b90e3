package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vendordesk.org/internal/audit"
	"vendordesk.org/internal/session"
	"vendordesk.org/internal/vendor"
)

// requireSession authenticates a vendor-facing request via the session Bearer
// token. On failure it writes the response and returns nil. Verification
// endpoints stay reachable for non-approved vendors: the pending view is
// exactly where documents get uploaded.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) *session.Session {
	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil
	}
	check, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session validation failed")
		return nil
	}
	if !check.Valid {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return nil
	}
	return check.Session
}

func (a *API) loadVendor(w http.ResponseWriter, r *http.Request, vendorID string) *vendor.Vendor {
	v, err := a.vendors.Find(r.Context(), vendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor profile not found")
			return nil
		}
		writeError(w, http.StatusInternalServerError, "vendor lookup failed")
		return nil
	}
	return v
}

func (a *API) handleVendorProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}
	v := a.loadVendor(w, r, sess.VendorID)
	if v == nil {
		return
	}
	docs, err := a.vendors.Documents(r.Context(), v.ID)
	if err != nil && !errors.Is(err, vendor.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"vendor":              v,
		"verification_status": vendor.Resolve(&docs),
	})
}

func (a *API) handleVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}
	docs, err := a.vendors.Documents(r.Context(), sess.VendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"documents": docs,
		"status":    vendor.Resolve(&docs),
		"uploaded":  vendor.CountUploaded(&docs),
	})
}

type uploadDocumentRequest struct {
	Type vendor.DocumentType `json:"type"`
	URL  string              `json:"url"`
	Path string              `json:"path"`
}

func (a *API) handleVerificationDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}
	var req uploadDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Type.Recognized() {
		writeError(w, http.StatusBadRequest, "unrecognized document type")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "document url is required")
		return
	}

	docs, err := a.vendors.Documents(r.Context(), sess.VendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	if docs.Documents == nil {
		docs.Documents = make(map[vendor.DocumentType]vendor.Document, len(vendor.DocumentTypes))
	}
	// Re-uploading after a rejection reopens the submission as a draft.
	if docs.Status == vendor.VerificationRejected || docs.Status == vendor.VerificationResubmission {
		docs.SubmittedAt = nil
		docs.Status = ""
	}
	docs.Documents[req.Type] = vendor.Document{URL: req.URL, Path: strings.TrimSpace(req.Path)}

	if err := a.vendors.SaveDocuments(r.Context(), sess.VendorID, docs); err != nil {
		writeError(w, http.StatusInternalServerError, "document save failed")
		return
	}
	status := vendor.Resolve(&docs)
	if err := a.vendors.SetVerificationStatus(r.Context(), sess.VendorID, status); err != nil {
		writeError(w, http.StatusInternalServerError, "status update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.document.uploaded", map[string]any{
		"vendor_id": sess.VendorID,
		"type":      req.Type,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"documents": docs,
		"status":    status,
		"uploaded":  vendor.CountUploaded(&docs),
	})
}

func (a *API) handleVerificationSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}
	docs, err := a.vendors.Documents(r.Context(), sess.VendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	if vendor.CountUploaded(&docs) == 0 {
		writeError(w, http.StatusBadRequest, "no documents uploaded")
		return
	}
	if docs.SubmittedAt != nil && !docs.Status.Reviewable() {
		writeError(w, http.StatusConflict, "verification already submitted")
		return
	}

	now := time.Now().UTC()
	docs = vendor.BulkSetStatus(docs, vendor.VerificationUnderReview)
	docs.SubmittedAt = &now

	if err := a.vendors.SaveDocuments(r.Context(), sess.VendorID, docs); err != nil {
		writeError(w, http.StatusInternalServerError, "document save failed")
		return
	}
	if err := a.vendors.SetVerificationStatus(r.Context(), sess.VendorID, vendor.VerificationUnderReview); err != nil {
		writeError(w, http.StatusInternalServerError, "status update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.submitted", map[string]any{
		"vendor_id": sess.VendorID,
		"uploaded":  vendor.CountUploaded(&docs),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    vendor.VerificationUnderReview,
		"documents": docs,
	})
}

type reviewRequest struct {
	VendorID string               `json:"vendor_id"`
	Status   vendor.OverallStatus `json:"status"`
}

// handleVerificationReview applies an administrator's decision to a submitted
// document set in one pass: every uploaded document and the vendor's
// verification_status move to the decided state together.
func (a *API) handleVerificationReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.adminTokens == nil {
		writeError(w, http.StatusServiceUnavailable, "admin review unavailable")
		return
	}
	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	admin, err := a.adminTokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if !admin.HasRole("admin") {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.VendorID = strings.TrimSpace(req.VendorID)
	if req.VendorID == "" {
		writeError(w, http.StatusBadRequest, "vendor_id is required")
		return
	}
	if !req.Status.Reviewable() {
		writeError(w, http.StatusBadRequest, "status must be one of verified, rejected, resubmission_requested")
		return
	}

	docs, err := a.vendors.Documents(r.Context(), req.VendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	if docs.SubmittedAt == nil {
		writeError(w, http.StatusBadRequest, "verification has not been submitted")
		return
	}

	docs = vendor.BulkSetStatus(docs, req.Status)
	if err := a.vendors.SaveDocuments(r.Context(), req.VendorID, docs); err != nil {
		writeError(w, http.StatusInternalServerError, "document save failed")
		return
	}
	if err := a.vendors.SetVerificationStatus(r.Context(), req.VendorID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, "status update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "kyc.reviewed", map[string]any{
		"vendor_id": req.VendorID,
		"status":    req.Status,
		"admin_id":  admin.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    req.Status,
		"documents": docs,
	})
}
