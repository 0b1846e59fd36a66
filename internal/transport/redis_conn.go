package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// RedisConfig configures the Redis pub/sub transport.
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	PoolSize      int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ChannelPrefix string
}

// ServerChannel is where clients publish their outbound events.
func ServerChannel(prefix string) string {
	return prefix + ":server"
}

// UserChannel carries the events delivered to one user.
func UserChannel(prefix, userID string) string {
	return fmt.Sprintf("%s:user:%s", prefix, userID)
}

// redisFrame is an envelope tagged with its sender, as published on the
// server channel.
type redisFrame struct {
	From string `json:"from"`
	domain.Envelope
}

// RedisDialer opens named-event connections over Redis pub/sub.
type RedisDialer struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

var _ Dialer = (*RedisDialer)(nil)

func NewRedisDialer(cfg RedisConfig, logger zerolog.Logger) *RedisDialer {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "chat:events"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &RedisDialer{client: client, prefix: cfg.ChannelPrefix, logger: logger}
}

func (d *RedisDialer) Dial(ctx context.Context, selfID string, handlers Handlers) (Conn, error) {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return nil, &domain.ConnectionError{Op: "dial", Err: fmt.Errorf("failed to connect to redis: %w", err)}
	}

	channel := UserChannel(d.prefix, selfID)
	sub := d.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, &domain.ConnectionError{Op: "subscribe", Err: err}
	}

	c := newRedisConn(d.client, sub, d.prefix, selfID, d.logger, handlers)
	go c.processMessages()

	if err := c.Emit(ctx, domain.EventJoinRoom, selfID); err != nil {
		c.Close()
		return nil, err
	}

	c.logger.Info().Str(log.FieldUserID, selfID).Str("channel", channel).Msg("event channel connected")
	return c, nil
}

// Close releases the Redis client shared by all connections of this dialer.
func (d *RedisDialer) Close() error {
	return d.client.Close()
}

type redisConn struct {
	id     string
	selfID string
	prefix string
	client *redis.Client
	sub    *redis.PubSub
	router *router
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newRedisConn(client *redis.Client, sub *redis.PubSub, prefix, selfID string, logger zerolog.Logger, handlers Handlers) *redisConn {
	id := uuid.New().String()
	logger = logger.With().Str(log.FieldConnID, id).Logger()
	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), logger))

	return &redisConn{
		id:     id,
		selfID: selfID,
		prefix: prefix,
		client: client,
		sub:    sub,
		router: newRouter(logger, handlers),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *redisConn) ID() string { return c.id }

func (c *redisConn) On(eventType string, h Handler) { c.router.on(eventType, h) }

func (c *redisConn) Done() <-chan struct{} { return c.ctx.Done() }

func (c *redisConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *redisConn) Emit(ctx context.Context, eventType string, payload interface{}) error {
	select {
	case <-c.ctx.Done():
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	default:
	}

	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(redisFrame{From: c.selfID, Envelope: *env})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	if err := c.client.Publish(ctx, ServerChannel(c.prefix), data).Err(); err != nil {
		return &domain.ConnectionError{Op: "emit " + eventType, Err: err}
	}
	return nil
}

func (c *redisConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *redisConn) shutdown(cause error) {
	c.once.Do(func() {
		if cause != nil {
			c.mu.Lock()
			c.err = &domain.ConnectionError{Op: "subscribe", Err: cause}
			c.mu.Unlock()
			c.logger.Warn().Err(cause).Msg("event channel lost")
		} else {
			c.logger.Info().Msg("event channel closed")
		}
		c.cancel()
		c.sub.Close()
	})
}

// processMessages feeds subscription messages to the router until the
// subscription ends.
func (c *redisConn) processMessages() {
	ch := c.sub.Channel()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.shutdown(io.ErrUnexpectedEOF)
				return
			}
			c.router.dispatch(c.ctx, []byte(msg.Payload))
		}
	}
}
