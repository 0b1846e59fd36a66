package transport

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// ReconnectConfig bounds the redial schedule.
type ReconnectConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime is how long to keep redialing before giving up.
	MaxElapsedTime time.Duration
}

// ReconnectingDialer wraps a Dialer so that lost connections are redialed
// with exponential backoff. Handlers survive redials and are in place on each
// new connection before it reads. join_room is emitted again by the wrapped
// Dialer.
type ReconnectingDialer struct {
	dialer Dialer
	cfg    ReconnectConfig
	logger zerolog.Logger
}

var _ Dialer = (*ReconnectingDialer)(nil)

func NewReconnectingDialer(dialer Dialer, cfg ReconnectConfig, logger zerolog.Logger) *ReconnectingDialer {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 5 * time.Minute
	}
	return &ReconnectingDialer{dialer: dialer, cfg: cfg, logger: logger}
}

// Dial opens the first connection without retrying; only connections that
// were once established are redialed.
func (d *ReconnectingDialer) Dial(ctx context.Context, selfID string, handlers Handlers) (Conn, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &reconnectingConn{
		dialer: d.dialer,
		cfg:    d.cfg,
		selfID: selfID,
		router: newRouter(d.logger, handlers),
		logger: d.logger,
		ctx:    runCtx,
		cancel: cancel,
	}

	inner, err := d.dialer.Dial(ctx, selfID, c.forwarders())
	if err != nil {
		cancel()
		return nil, err
	}
	c.current = inner

	go c.supervise()
	return c, nil
}

type reconnectingConn struct {
	dialer Dialer
	cfg    ReconnectConfig
	selfID string
	router *router
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	current Conn
	hooks   []func(ctx context.Context)
	err     error
	once    sync.Once
}

var _ Reconnector = (*reconnectingConn)(nil)

func (c *reconnectingConn) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.ID()
}

func (c *reconnectingConn) On(eventType string, h Handler) {
	c.router.on(eventType, h)

	c.mu.RLock()
	inner := c.current
	c.mu.RUnlock()
	inner.On(eventType, c.forward(eventType))
}

func (c *reconnectingConn) OnReconnect(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *reconnectingConn) Emit(ctx context.Context, eventType string, payload interface{}) error {
	c.mu.RLock()
	inner := c.current
	c.mu.RUnlock()

	select {
	case <-c.ctx.Done():
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	default:
	}
	return inner.Emit(ctx, eventType, payload)
}

func (c *reconnectingConn) Done() <-chan struct{} { return c.ctx.Done() }

func (c *reconnectingConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *reconnectingConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *reconnectingConn) shutdown(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = cause
		inner := c.current
		c.mu.Unlock()

		c.cancel()
		inner.Close()
	})
}

func (c *reconnectingConn) forward(eventType string) Handler {
	return func(ctx context.Context, data []byte) {
		c.router.handle(ctx, eventType, data)
	}
}

// forwarders routes every registered event type of an inner connection back
// through this connection's router.
func (c *reconnectingConn) forwarders() Handlers {
	types := c.router.types()
	out := make(Handlers, len(types))
	for _, t := range types {
		out[t] = c.forward(t)
	}
	return out
}

// supervise watches the current connection and replaces it when it is lost.
func (c *reconnectingConn) supervise() {
	for {
		c.mu.RLock()
		inner := c.current
		c.mu.RUnlock()

		select {
		case <-c.ctx.Done():
			return
		case <-inner.Done():
		}

		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.logger.Warn().Err(inner.Err()).Str(log.FieldConnID, inner.ID()).Msg("event channel lost, reconnecting")

		next, err := c.redial()
		if err != nil {
			c.logger.Error().Err(err).Msg("giving up on event channel")
			c.shutdown(&domain.ConnectionError{Op: "reconnect", Err: err})
			return
		}

		c.mu.Lock()
		c.current = next
		hooks := append([]func(ctx context.Context){}, c.hooks...)
		c.mu.Unlock()

		// A Close that raced with the redial must not leak the new connection.
		select {
		case <-c.ctx.Done():
			next.Close()
			return
		default:
		}

		// Types registered while the redial was in flight.
		for _, t := range c.router.types() {
			next.On(t, c.forward(t))
		}

		c.logger.Info().Str(log.FieldConnID, next.ID()).Msg("event channel re-established")

		hookCtx := log.WithLogger(c.ctx, c.logger)
		for _, fn := range hooks {
			fn(hookCtx)
		}
	}
}

func (c *reconnectingConn) redial() (Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval

	return backoff.Retry(c.ctx, func() (Conn, error) {
		return c.dialer.Dial(c.ctx, c.selfID, c.forwarders())
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.cfg.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug().Err(err).Dur("retry_in", next).Msg("redial failed")
		}),
	)
}
