package payment

// EventKind is the reconciliation-relevant outcome carried by a
// verified provider notification.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventCanceled  EventKind = "canceled"
	EventRefunded  EventKind = "refunded"
)

// Event is a signature-verified payment-authority notification. The
// raw transport payload never reaches the reconciler; verification
// happens at the gateway boundary.
type Event struct {
	ID       string
	IntentID string
	Kind     EventKind
}

// stripe event type → reconciliation outcome; everything else is
// acknowledged and ignored.
var stripeEventKinds = map[string]EventKind{
	"payment_intent.succeeded":      EventSucceeded,
	"payment_intent.payment_failed": EventFailed,
	"payment_intent.canceled":       EventCanceled,
	"charge.refunded":               EventRefunded,
}

func KindForStripeEventType(eventType string) (EventKind, bool) {
	kind, ok := stripeEventKinds[eventType]
	return kind, ok
}
