package domain

import "fmt"

type DecisionKind int

const (
	DecisionAdmit DecisionKind = iota
	DecisionRejected
	DecisionBanned
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAdmit:
		return "admit"
	case DecisionRejected:
		return "rejected"
	case DecisionBanned:
		return "banned"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// Decision is the governor verdict for a single request.
//
// Seconds carries retryAfterSeconds for Rejected and remainingSeconds for Banned.
// Escalated is set only on the request that triggered a new ban.
type Decision struct {
	Kind         DecisionKind
	Identifier   string
	Seconds      int
	CurrentCount int
	Escalated    bool
}

func Admit(identifier string, count int) Decision {
	return Decision{Kind: DecisionAdmit, Identifier: identifier, CurrentCount: count}
}

func Rejected(identifier string, retryAfterSeconds int) Decision {
	return Decision{Kind: DecisionRejected, Identifier: identifier, Seconds: retryAfterSeconds}
}

func Banned(identifier string, remainingSeconds, count int, escalated bool) Decision {
	return Decision{
		Kind:         DecisionBanned,
		Identifier:   identifier,
		Seconds:      remainingSeconds,
		CurrentCount: count,
		Escalated:    escalated,
	}
}

// Allowed reports whether the request may be dispatched upstream.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAdmit
}
