package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestEvaluate_ScenarioBanAndRecovery(t *testing.T) {
	rule := GovernorRule{MaxRequests: 3, Window: time.Second, BanDuration: 2 * time.Second}
	state := NewClientState("client-a", at(0))

	for _, ms := range []int{0, 100, 200} {
		d := state.Evaluate(at(ms), rule)
		require.Equal(t, DecisionAdmit, d.Kind, "call at t=%d", ms)
	}

	d := state.Evaluate(at(300), rule)
	assert.Equal(t, DecisionBanned, d.Kind)
	assert.Equal(t, 2, d.Seconds)
	assert.True(t, d.Escalated)
	assert.Equal(t, at(2300), state.BannedUntil)

	d = state.Evaluate(at(1000), rule)
	assert.Equal(t, DecisionBanned, d.Kind)
	assert.Equal(t, 2, d.Seconds) // ceil(1.3s)
	assert.False(t, d.Escalated)

	d = state.Evaluate(at(2299), rule)
	assert.Equal(t, DecisionBanned, d.Kind)
	assert.Equal(t, 1, d.Seconds)

	d = state.Evaluate(at(2300), rule)
	assert.Equal(t, DecisionAdmit, d.Kind)
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, at(2300), state.WindowStart)
	assert.True(t, state.BannedUntil.IsZero())
}

func TestEvaluate_WindowBoundaryIsStrict(t *testing.T) {
	rule := GovernorRule{MaxRequests: 5, Window: time.Second, BanDuration: time.Second}

	state := NewClientState("client-a", at(0))
	state.Evaluate(at(0), rule)
	state.Evaluate(at(1000), rule)
	assert.Equal(t, 2, state.Count, "elapsed == window must not reset")

	state = NewClientState("client-b", at(0))
	state.Evaluate(at(0), rule)
	d := state.Evaluate(at(1001), rule)
	assert.Equal(t, DecisionAdmit, d.Kind)
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, at(1001), state.WindowStart)
}

func TestEvaluate_ExactlyMaxRequestsAdmitted(t *testing.T) {
	rule := DefaultGovernorRule()
	state := NewClientState("client-a", at(0))

	for i := 0; i < rule.MaxRequests; i++ {
		d := state.Evaluate(at(i), rule)
		require.True(t, d.Allowed(), "request %d", i+1)
	}

	d := state.Evaluate(at(rule.MaxRequests), rule)
	assert.Equal(t, DecisionBanned, d.Kind)
	assert.Equal(t, 300, d.Seconds)
}

func TestEvaluate_BanDoesNotResetWindow(t *testing.T) {
	rule := GovernorRule{MaxRequests: 1, Window: time.Second, BanDuration: 10 * time.Second}
	state := NewClientState("client-a", at(0))

	state.Evaluate(at(0), rule)
	state.Evaluate(at(10), rule)
	count, windowStart := state.Count, state.WindowStart

	// Polling well past the window while banned leaves the window alone.
	d := state.Evaluate(at(5000), rule)
	assert.Equal(t, DecisionBanned, d.Kind)
	assert.Equal(t, count, state.Count)
	assert.Equal(t, windowStart, state.WindowStart)
}

func TestRetainUntil(t *testing.T) {
	rule := GovernorRule{MaxRequests: 1, Window: time.Second, BanDuration: 5 * time.Second}
	state := NewClientState("client-a", at(0))

	state.Evaluate(at(0), rule)
	assert.Equal(t, at(1000), state.RetainUntil(rule))

	state.Evaluate(at(100), rule)
	assert.Equal(t, at(5100), state.RetainUntil(rule))
}

func TestDecisionKindString(t *testing.T) {
	assert.Equal(t, "admit", DecisionAdmit.String())
	assert.Equal(t, "rejected", DecisionRejected.String())
	assert.Equal(t, "banned", DecisionBanned.String())
	assert.Equal(t, "decision(9)", DecisionKind(9).String())
}
