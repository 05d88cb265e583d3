package schema

import "strings"

// CallStatus is the lifecycle state of an outbound call.
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
)

// callRank orders statuses in the lattice queued < ringing < in_progress < terminal.
// All terminal statuses share the highest rank: once terminal, nothing is later.
var callRank = map[CallStatus]int{
	CallStatusQueued:     0,
	CallStatusRinging:    1,
	CallStatusInProgress: 2,
	CallStatusCompleted:  3,
	CallStatusFailed:     3,
	CallStatusNoAnswer:   3,
	CallStatusBusy:       3,
}

// Rank returns the lattice rank of the status, or -1 if unknown.
func (s CallStatus) Rank() int {
	r, ok := callRank[s]
	if !ok {
		return -1
	}
	return r
}

// IsTerminal reports whether the call status permits no further updates.
func (s CallStatus) IsTerminal() bool {
	return s.Rank() == 3
}

// ParseCallStatus maps a provider status string to a CallStatus.
// Provider spellings use dashes ("in-progress", "no-answer"); "initiated"
// maps to queued. Unknown strings return ok=false.
func ParseCallStatus(raw string) (CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "initiated":
		return CallStatusQueued, true
	case "ringing":
		return CallStatusRinging, true
	case "in-progress", "in_progress", "answered":
		return CallStatusInProgress, true
	case "completed":
		return CallStatusCompleted, true
	case "failed", "canceled", "cancelled":
		return CallStatusFailed, true
	case "no-answer", "no_answer":
		return CallStatusNoAnswer, true
	case "busy":
		return CallStatusBusy, true
	default:
		return "", false
	}
}

// Reaction is the classified DTMF response of a called lead.
type Reaction string

const (
	ReactionAppointmentRequested Reaction = "appointment_requested"
	ReactionMoreInfoRequested    Reaction = "more_info_requested"
	ReactionOptOut               Reaction = "opt_out"
	ReactionUnknown              Reaction = "unknown"
)

// ReactionForDigits maps the digits pressed during the gather prompt to a
// reaction label.
func ReactionForDigits(digits string) Reaction {
	switch strings.TrimSpace(digits) {
	case "1":
		return ReactionAppointmentRequested
	case "2":
		return ReactionMoreInfoRequested
	case "3":
		return ReactionOptOut
	default:
		return ReactionUnknown
	}
}
