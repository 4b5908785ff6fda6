package booking

type Status string

const (
	StatusRequested      Status = "requested"
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusExpired        Status = "expired"
	StatusCanceled       Status = "canceled"
	StatusRefunded       Status = "refunded"
)

// transitions is the full forward graph. Anything absent is illegal,
// which is what makes replayed or reordered payment events harmless.
var transitions = map[Status][]Status{
	StatusRequested:      {StatusPendingPayment},
	StatusPendingPayment: {StatusConfirmed, StatusExpired, StatusCanceled},
	StatusConfirmed:      {StatusCompleted, StatusCanceled},
	StatusCanceled:       {StatusRefunded},
	StatusCompleted:      {},
	StatusExpired:        {},
	StatusRefunded:       {},
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether a booking in this status occupies its
// interval for conflict detection.
func (s Status) HoldsSlot() bool {
	switch s {
	case StatusRequested, StatusPendingPayment, StatusConfirmed:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}
