package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

// WSConfig configures the websocket transport.
type WSConfig struct {
	URL              string
	Header           http.Header
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	SendBuffer       int
}

func (c *WSConfig) applyDefaults() {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 65536
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
}

// WSDialer opens framed websocket connections.
type WSDialer struct {
	cfg    WSConfig
	logger zerolog.Logger
}

var _ Dialer = (*WSDialer)(nil)

func NewWSDialer(cfg WSConfig, logger zerolog.Logger) *WSDialer {
	cfg.applyDefaults()
	return &WSDialer{cfg: cfg, logger: logger}
}

func (d *WSDialer) Dial(ctx context.Context, selfID string, handlers Handlers) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, d.cfg.URL, d.cfg.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &domain.ConnectionError{Op: "dial", Err: err}
	}

	c := newWSConn(ws, d.cfg, d.logger, handlers)
	go c.readPump()
	go c.writePump()

	if err := c.Emit(ctx, domain.EventJoinRoom, selfID); err != nil {
		c.Close()
		return nil, err
	}

	c.logger.Info().Str(log.FieldUserID, selfID).Str("url", d.cfg.URL).Msg("event channel connected")
	return c, nil
}

type wsConn struct {
	id     string
	ws     *websocket.Conn
	cfg    WSConfig
	send   chan []byte
	router *router
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newWSConn(ws *websocket.Conn, cfg WSConfig, logger zerolog.Logger, handlers Handlers) *wsConn {
	id := uuid.New().String()
	logger = logger.With().Str(log.FieldConnID, id).Logger()
	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), logger))

	return &wsConn{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		router: newRouter(logger, handlers),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) On(eventType string, h Handler) { c.router.on(eventType, h) }

func (c *wsConn) Done() <-chan struct{} { return c.ctx.Done() }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Emit(ctx context.Context, eventType string, payload interface{}) error {
	frame, err := encodeFrame(eventType, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.ctx.Done():
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.ctx.Done():
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown ends the connection once. A nil cause means a local Close.
func (c *wsConn) shutdown(cause error) {
	c.once.Do(func() {
		if cause != nil {
			c.mu.Lock()
			c.err = &domain.ConnectionError{Op: "read", Err: cause}
			c.mu.Unlock()
			c.logger.Warn().Err(cause).Msg("event channel lost")
		} else {
			c.logger.Info().Msg("event channel closed")
		}
		c.cancel()
	})
}

func (c *wsConn) readPump() {
	defer c.ws.Close()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.shutdown(err)
			}
			return
		}
		c.router.dispatch(c.ctx, frame)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}

		case <-c.ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
