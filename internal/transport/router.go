package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// router maps event types to handlers.
type router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   zerolog.Logger
}

func newRouter(logger zerolog.Logger, handlers Handlers) *router {
	r := &router{
		handlers: make(map[string]Handler, len(handlers)),
		logger:   logger,
	}
	for t, h := range handlers {
		if h != nil {
			r.handlers[t] = h
		}
	}
	return r
}

func (r *router) on(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, eventType)
		return
	}
	r.handlers[eventType] = h
}

func (r *router) types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// dispatch decodes a {type, data} frame and hands data to its handler.
func (r *router) dispatch(ctx context.Context, frame []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	r.handle(ctx, env.Type, env.Data)
}

func (r *router) handle(ctx context.Context, eventType string, data []byte) {
	r.mu.RLock()
	h := r.handlers[eventType]
	r.mu.RUnlock()

	if h == nil {
		r.logger.Debug().Str(log.FieldEvent, eventType).Msg("no handler for event")
		return
	}
	h(ctx, data)
}

// encodeFrame builds the wire form of an outbound event.
func encodeFrame(eventType string, payload interface{}) ([]byte, error) {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
