package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vendordesk.org/internal/vendor"
)

func TestDecideWhileLoading(t *testing.T) {
	state := State{Loading: true, HasSession: true, VendorStatus: vendor.StatusApproved}
	for _, view := range []View{ViewLogin, ViewPending, ViewDashboard} {
		assert.Equal(t, VerdictWait, Decide(state, view))
	}
}

func TestDecideWithoutSession(t *testing.T) {
	state := State{}
	assert.Equal(t, VerdictAllow, Decide(state, ViewLogin))
	assert.Equal(t, VerdictToLogin, Decide(state, ViewPending))
	assert.Equal(t, VerdictToLogin, Decide(state, ViewDashboard))
}

func TestDecideApproved(t *testing.T) {
	state := State{HasSession: true, VendorStatus: vendor.StatusApproved}
	assert.Equal(t, VerdictAllow, Decide(state, ViewDashboard))
	assert.Equal(t, VerdictToDashboard, Decide(state, ViewLogin))
	assert.Equal(t, VerdictToDashboard, Decide(state, ViewPending))
}

func TestDecideNotApproved(t *testing.T) {
	for _, status := range []vendor.Status{
		vendor.StatusPending, vendor.StatusRejected, vendor.StatusSuspended,
	} {
		state := State{HasSession: true, VendorStatus: status}
		assert.Equal(t, VerdictAllow, Decide(state, ViewPending), "status %s", status)
		assert.Equal(t, VerdictToPending, Decide(state, ViewDashboard), "status %s", status)
		assert.Equal(t, VerdictToPending, Decide(state, ViewLogin), "status %s", status)
	}
}

func TestDecideMissingVendorRecord(t *testing.T) {
	// Zero-value status models a session whose vendor row has disappeared.
	state := State{HasSession: true}
	assert.Equal(t, VerdictAllow, Decide(state, ViewPending))
	assert.Equal(t, VerdictToPending, Decide(state, ViewDashboard))
}

func TestDecideIsDeterministic(t *testing.T) {
	state := State{HasSession: true, VendorStatus: vendor.StatusApproved}
	first := Decide(state, ViewDashboard)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(state, ViewDashboard))
	}
}

func TestHome(t *testing.T) {
	assert.Equal(t, ViewLogin, Home(State{}))
	assert.Equal(t, ViewDashboard, Home(State{HasSession: true, VendorStatus: vendor.StatusApproved}))
	assert.Equal(t, ViewPending, Home(State{HasSession: true, VendorStatus: vendor.StatusPending}))
	assert.Equal(t, ViewPending, Home(State{HasSession: true}))
}
