package feed

import "context"

// Source delivers the sequenced event stream. Implementations own the
// transport (websocket, Kafka replay); the replica owns nothing below
// the event boundary. Run blocks until ctx is done or the transport
// fails; reconnect and backoff policy belong to the caller.
type Source interface {
	Events() <-chan *Event
	Run(ctx context.Context) error
}
