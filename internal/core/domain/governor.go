// Package domain concentra entidades e estruturas centrais do gateway.
package domain

import "time"

const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 30
	DefaultBanDuration = 5 * time.Minute
)

// GovernorRule holds the limits applied to every identified client.
type GovernorRule struct {
	MaxRequests int
	Window      time.Duration
	BanDuration time.Duration
}

// DefaultGovernorRule returns 30 requests per minute with a five minute ban.
func DefaultGovernorRule() GovernorRule {
	return GovernorRule{
		MaxRequests: DefaultMaxRequests,
		Window:      DefaultWindow,
		BanDuration: DefaultBanDuration,
	}
}

// ClientState is the counting window and ban status of a single client identifier.
type ClientState struct {
	Identifier  string
	Count       int
	WindowStart time.Time
	BannedUntil time.Time
}

// NewClientState returns the state of a client that has not been seen before.
func NewClientState(identifier string, now time.Time) ClientState {
	return ClientState{Identifier: identifier, WindowStart: now}
}

// IsBanned reports whether requests at now must be rejected.
func (s ClientState) IsBanned(now time.Time) bool {
	return !s.BannedUntil.IsZero() && s.BannedUntil.After(now)
}

// Evaluate applies one request at now to the state and returns the decision for it.
// A banned client keeps its window untouched until the ban runs out.
func (s *ClientState) Evaluate(now time.Time, rule GovernorRule) Decision {
	if s.IsBanned(now) {
		return Banned(s.Identifier, ceilSeconds(s.BannedUntil.Sub(now)), s.Count, false)
	}

	if now.Sub(s.WindowStart) > rule.Window {
		s.Count = 1
		s.WindowStart = now
		s.BannedUntil = time.Time{}
	} else {
		s.Count++
	}

	if s.Count > rule.MaxRequests {
		s.BannedUntil = now.Add(rule.BanDuration)
		return Banned(s.Identifier, ceilSeconds(rule.BanDuration), s.Count, true)
	}

	return Admit(s.Identifier, s.Count)
}

// RetainUntil is the instant after which dropping the state is indistinguishable
// from keeping it: the window has elapsed and no ban is pending, so the next
// request would start a fresh window either way.
func (s ClientState) RetainUntil(rule GovernorRule) time.Time {
	windowEnd := s.WindowStart.Add(rule.Window)
	if s.BannedUntil.After(windowEnd) {
		return s.BannedUntil
	}
	return windowEnd
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
