package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/cache"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/client"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/transport"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
	"golang.org/x/sync/singleflight"
)

// Options configure a SyncEngine.
type Options struct {
	AppID string
	// Domain is the origin of the host page, sent as domain_name.
	Domain string
	// Token selects the token configuration path when set.
	Token     string
	Self      domain.User
	Recipient *domain.User

	API       client.API
	Dialer    transport.Dialer
	Viewport  Viewport
	Presenter Presenter
	Logger    zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type syncEngine struct {
	appID      string
	domainName string
	token      string

	api       client.API
	dialer    transport.Dialer
	viewport  Viewport
	presenter Presenter
	logger    zerolog.Logger
	now       func() time.Time

	session  *domain.Session
	rooms    *cache.RoomCache
	messages *cache.MessageCache

	// initMu serializes Init runs; mu guards conn, announce and compound
	// cache updates.
	initMu   sync.Mutex
	mu       sync.Mutex
	conn     transport.Conn
	announce []newRoomNotice

	sf singleflight.Group
}

func NewSyncEngine(opts Options) (SyncEngine, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("service: API is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("service: Dialer is required")
	}
	if opts.AppID == "" {
		return nil, &domain.ConfigurationError{Reason: "missing app id"}
	}

	if opts.Viewport == nil {
		opts.Viewport = StaticViewport{}
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var recipient *domain.User
	if opts.Recipient != nil && opts.Recipient.ID != "" {
		r := *opts.Recipient
		recipient = &r
	}

	return &syncEngine{
		appID:      opts.AppID,
		domainName: opts.Domain,
		token:      opts.Token,
		api:        opts.API,
		dialer:     opts.Dialer,
		viewport:   opts.Viewport,
		presenter:  opts.Presenter,
		logger:     opts.Logger,
		now:        opts.Now,
		session:    domain.NewSession(opts.Self, recipient),
		rooms:      cache.NewRoomCache(),
		messages:   cache.NewMessageCache(),
	}, nil
}

func (e *syncEngine) State() domain.State { return e.session.GetState() }

func (e *syncEngine) Identity() (domain.User, *domain.User) { return e.session.Identity() }

func (e *syncEngine) AppConfig() json.RawMessage { return e.session.GetAppConfig() }

func (e *syncEngine) SelectedRoom() string { return e.session.GetSelectedRoom() }

func (e *syncEngine) Rooms() []domain.Room { return e.rooms.List() }

func (e *syncEngine) Room(roomID string) (domain.Room, bool) { return e.rooms.Get(roomID) }

func (e *syncEngine) Messages() []domain.Message { return e.messages.List() }

func (e *syncEngine) Close() error {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	e.session.SetState(domain.StateUninitialized)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// scoped returns ctx carrying the engine logger tagged with the self user.
func (e *syncEngine) scoped(ctx context.Context) context.Context {
	return log.WithUser(log.WithLogger(ctx, e.logger), e.session.SelfID())
}

// report logs err and forwards it to the presenter.
func (e *syncEngine) report(ctx context.Context, err error, msg string) {
	l := log.Ctx(ctx)
	l.Error().Err(err).Msg(msg)
	e.presenter.ShowError(err)
}

func (e *syncEngine) currentConn() transport.Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

// emit sends an event on the current connection.
func (e *syncEngine) emit(ctx context.Context, eventType string, payload interface{}) error {
	conn := e.currentConn()
	if conn == nil {
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	}
	return conn.Emit(ctx, eventType, payload)
}

// requireSession fails unless Init has completed.
func (e *syncEngine) requireSession() error {
	if !e.session.IsAuthenticated() {
		return domain.ErrNotInitialized
	}
	return nil
}

// connect replaces any previous connection with a fresh one and wires the
// inbound handlers.
func (e *syncEngine) connect(ctx context.Context) error {
	e.mu.Lock()
	prev := e.conn
	e.conn = nil
	e.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	handlers := make(transport.Handlers, len(domain.InboundEventTypes))
	for _, eventType := range domain.InboundEventTypes {
		handlers[eventType] = e.eventHandler(eventType)
	}

	conn, err := e.dialer.Dial(ctx, e.session.SelfID(), handlers)
	if err != nil {
		if !domain.IsConnectionError(err) {
			err = &domain.ConnectionError{Op: "dial", Err: err}
		}
		return err
	}

	if r, ok := conn.(transport.Reconnector); ok {
		r.OnReconnect(e.resync)
	}

	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch reports a connection that ended on its own.
func (e *syncEngine) watch(conn transport.Conn) {
	<-conn.Done()
	err := conn.Err()
	if err == nil {
		return
	}
	if e.currentConn() != conn {
		return
	}
	e.report(e.scoped(context.Background()), err, "event channel ended")
}

// resync refreshes rooms after the event channel was re-established, picking
// up unread counts and recent messages missed while offline. The selected
// room is re-read as part of the reload.
func (e *syncEngine) resync(ctx context.Context) {
	ctx = e.scoped(ctx)
	if err := e.ReloadRooms(ctx); err != nil {
		e.report(ctx, err, "failed to resync rooms after reconnect")
		return
	}
	l := log.Ctx(ctx)
	l.Info().Int("rooms", e.rooms.Len()).Msg("rooms resynced after reconnect")
	e.announceRooms(ctx)
}
