package rally

// EventKind identifies a lifecycle outcome.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventJoined    EventKind = "joined"
	EventFull      EventKind = "full"
	EventExpired   EventKind = "expired"
	EventCancelled EventKind = "cancelled"
)

// Event carries a rally snapshot taken at the moment of the transition.
type Event struct {
	Kind  EventKind
	Rally Rally
}

// Notifier delivers lifecycle events to users and channels. Delivery is
// best-effort: by the time Notify runs the transition has already committed,
// so implementations log failures and move on.
type Notifier interface {
	Notify(Event)
}
