package payment

import "time"

// phase tags the handshake state of an intent. Transitions are strictly
// init → awaiting approval → awaiting completion → settled, with cancelled
// and failed terminal from any pre-settlement state.
type phase int

const (
	phaseInit phase = iota
	phaseAwaitingApproval
	phaseAwaitingCompletion
	phaseSettled
	phaseCancelled
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseInit:
		return "init"
	case phaseAwaitingApproval:
		return "awaiting_approval"
	case phaseAwaitingCompletion:
		return "awaiting_completion"
	case phaseSettled:
		return "settled"
	case phaseCancelled:
		return "cancelled"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether the phase still holds the user's handshake slot.
func (p phase) active() bool {
	switch p {
	case phaseInit, phaseAwaitingApproval, phaseAwaitingCompletion:
		return true
	default:
		return false
	}
}

// Intent tracks one payment handshake. The payment id is assigned by the
// wallet SDK and bound at the first approval callback; once a txid is
// attached the intent is immutable.
type Intent struct {
	UserID       string
	PlanID       string
	PaymentID    string
	TxID         string
	AmountMicros int64
	Memo         string
	Metadata     map[string]string
	StartedAt    time.Time

	phase phase
}
