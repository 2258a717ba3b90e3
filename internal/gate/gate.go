// Package gate decides which view a vendor session may occupy. Decide is a
// pure function over its inputs; all I/O (session validation, vendor fetch)
// happens in the calling layer, which re-invokes the gate once results land.
package gate

import "vendordesk.org/internal/vendor"

// View identifies a client surface.
type View string

const (
	ViewLogin     View = "login"
	ViewPending   View = "pending"
	ViewDashboard View = "dashboard"
)

// Verdict is the gate's decision for a (state, view) pair.
type Verdict string

const (
	// VerdictWait means a status check is still in flight; render nothing
	// definitive and do not redirect yet.
	VerdictWait        Verdict = "wait"
	VerdictAllow       Verdict = "allow"
	VerdictToLogin     Verdict = "redirect_login"
	VerdictToPending   Verdict = "redirect_pending"
	VerdictToDashboard Verdict = "redirect_dashboard"
)

// State is the gate's input. VendorStatus is the zero value when the vendor
// record is missing; a missing record gates like any non-approved vendor.
type State struct {
	Loading      bool
	HasSession   bool
	VendorStatus vendor.Status
}

// Decide returns the verdict for showing view under state.
func Decide(s State, v View) Verdict {
	if s.Loading {
		return VerdictWait
	}
	if !s.HasSession {
		if v == ViewLogin {
			return VerdictAllow
		}
		return VerdictToLogin
	}
	switch s.VendorStatus {
	case vendor.StatusApproved:
		if v == ViewDashboard {
			return VerdictAllow
		}
		return VerdictToDashboard
	case vendor.StatusPending, vendor.StatusRejected, vendor.StatusSuspended:
		if v == ViewPending {
			return VerdictAllow
		}
		return VerdictToPending
	default:
		// Unknown status or missing vendor record: block like non-approved.
		if v == ViewPending {
			return VerdictAllow
		}
		return VerdictToPending
	}
}

// Home returns the view a client with this state should land on. Undefined
// while a check is loading; callers should hold their current view.
func Home(s State) View {
	if !s.HasSession {
		return ViewLogin
	}
	if s.VendorStatus == vendor.StatusApproved {
		return ViewDashboard
	}
	return ViewPending
}
