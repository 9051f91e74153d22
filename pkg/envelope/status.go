package envelope

// Status is the envelope-level workflow state. The graph is
// draft -> sent -> delivered -> viewed -> completed, with declined, voided
// and expired reachable from any non-terminal state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusViewed    Status = "viewed"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusVoided    Status = "voided"
	StatusExpired   Status = "expired"
)

// SignerStatus is the per-signer state: pending -> sent -> delivered ->
// viewed -> signed, with declined reachable from any non-terminal state.
type SignerStatus string

const (
	SignerPending   SignerStatus = "pending"
	SignerSent      SignerStatus = "sent"
	SignerDelivered SignerStatus = "delivered"
	SignerViewed    SignerStatus = "viewed"
	SignerSigned    SignerStatus = "signed"
	SignerDeclined  SignerStatus = "declined"
)

// statusRank is the topological order of the envelope state graph. All
// terminal states share the top rank so no terminal can replace another.
var statusRank = map[Status]int{
	StatusDraft:     0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusViewed:    3,
	StatusCompleted: 4,
	StatusDeclined:  4,
	StatusVoided:    4,
	StatusExpired:   4,
}

var signerRank = map[SignerStatus]int{
	SignerPending:   0,
	SignerSent:      1,
	SignerDelivered: 2,
	SignerViewed:    3,
	SignerSigned:    4,
	SignerDeclined:  4,
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDeclined, StatusVoided, StatusExpired:
		return true
	}
	return false
}

func (s SignerStatus) Terminal() bool {
	return s == SignerSigned || s == SignerDeclined
}

// advance returns the later of the two statuses under the monotonic merge
// rule: a terminal current status never changes, and the incoming status is
// taken only when it is strictly later in the graph's topological order.
func (s Status) advance(next Status) (Status, bool) {
	if s.Terminal() {
		return s, false
	}
	if statusRank[next] > statusRank[s] {
		return next, true
	}
	return s, false
}

func (s SignerStatus) advance(next SignerStatus) (SignerStatus, bool) {
	if s.Terminal() {
		return s, false
	}
	if signerRank[next] > signerRank[s] {
		return next, true
	}
	return s, false
}
