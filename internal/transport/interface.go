package transport

import (
	"context"
)

// Handler receives the data of one inbound event. Handlers of a connection
// are invoked one at a time, in arrival order.
type Handler func(ctx context.Context, data []byte)

// Conn is a persistent bidirectional event channel to the chat service.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Emit sends a named event. payload is marshalled to JSON.
	Emit(ctx context.Context, eventType string, payload interface{}) error
	// On registers the handler for an event type, replacing any previous one.
	On(eventType string, h Handler)
	// Done is closed when the connection has ended.
	Done() <-chan struct{}
	// Err reports why the connection ended; nil after Close.
	Err() error
	Close() error
}

// Handlers maps event types to their handlers.
type Handlers map[string]Handler

// Dialer opens connections. The handlers given to Dial are registered before
// the first inbound frame is read, and a successful Dial has already
// announced selfID to the server with a join_room event.
type Dialer interface {
	Dial(ctx context.Context, selfID string, handlers Handlers) (Conn, error)
}

// Reconnector is implemented by connections that transparently re-establish
// themselves. Hooks run after every successful reconnection.
type Reconnector interface {
	OnReconnect(fn func(ctx context.Context))
}
