package interfaces

// -----------------------------------------------------------------------------
// IBroadcaster pushes events to every live subscriber.
// -----------------------------------------------------------------------------

type IBroadcaster interface {
	Emit(event string, payload interface{})
}
