package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/transport"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

type fakeAPI struct {
	mu sync.Mutex

	appConfig   json.RawMessage
	tokenConfig *domain.TokenConfig
	rooms       []domain.RawRoom
	details     map[string]domain.RawRoom
	created     *domain.RawRoom

	configErr error
	initErr   error
	roomsErr  error
	createErr error
	// createGate, when set, blocks CreateRoom until closed.
	createGate chan struct{}

	configCalls int
	tokenCalls  int
	initReqs    []domain.InitUsersRequest
	roomsCalls  int
	createReqs  []domain.CreateRoomRequest
	editReqs    []domain.EditMessageRequest
	deleteReqs  []domain.DeleteMessageRequest
	lastSeen    []domain.LastSeenRequest
}

func (f *fakeAPI) LoadConfig(ctx context.Context, req domain.ConfigRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configCalls++
	if f.configErr != nil {
		return nil, f.configErr
	}
	return f.appConfig, nil
}

func (f *fakeAPI) LoadTokenConfig(ctx context.Context, req domain.TokenConfigRequest) (*domain.TokenConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.configErr != nil {
		return nil, f.configErr
	}
	return f.tokenConfig, nil
}

func (f *fakeAPI) InitUsers(ctx context.Context, req domain.InitUsersRequest) (*domain.InitUsersResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initReqs = append(f.initReqs, req)
	if f.initErr != nil {
		return nil, f.initErr
	}
	res := &domain.InitUsersResult{User: canonical(req.User)}
	if req.Recipient != nil {
		r := canonical(*req.Recipient)
		res.Recipient = &r
	}
	return res, nil
}

// canonical echoes an embed identity back as the service's user record.
func canonical(u domain.EmbedUser) domain.User {
	return domain.User{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

func (f *fakeAPI) GetUserRooms(ctx context.Context, req domain.UserRoomsRequest) ([]domain.RawRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomsCalls++
	if f.roomsErr != nil {
		return nil, f.roomsErr
	}
	return append([]domain.RawRoom(nil), f.rooms...), nil
}

func (f *fakeAPI) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (*domain.RawRoom, error) {
	if f.createGate != nil {
		<-f.createGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	room := *f.created
	f.rooms = append([]domain.RawRoom{room}, f.rooms...)
	return &room, nil
}

func (f *fakeAPI) GetRoomDetails(ctx context.Context, req domain.RoomDetailsRequest) (*domain.RawRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.details[req.RoomID]
	if !ok {
		return nil, &domain.TransportError{Endpoint: "/get_room_details", Message: "room not found"}
	}
	return &room, nil
}

func (f *fakeAPI) EditMessage(ctx context.Context, req domain.EditMessageRequest) (*domain.MessageEdit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editReqs = append(f.editReqs, req)
	return &domain.MessageEdit{MessageID: req.MessageID, Content: req.Content}, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, req domain.DeleteMessageRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteReqs = append(f.deleteReqs, req)
	return &domain.Message{ID: req.MessageID, Content: "", Deleted: true}, nil
}

func (f *fakeAPI) UpdateLastSeen(ctx context.Context, req domain.LastSeenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen = append(f.lastSeen, req)
	return nil
}

func (f *fakeAPI) lastSeenCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.lastSeen {
		if r.RoomID == roomID {
			n++
		}
	}
	return n
}

type emission struct {
	Type    string
	Payload interface{}
}

type fakeConn struct {
	mu       sync.Mutex
	emitted  []emission
	handlers map[string]transport.Handler
	done     chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[string]transport.Handler), done: make(chan struct{})}
}

func (c *fakeConn) ID() string { return "fake" }

func (c *fakeConn) Emit(ctx context.Context, eventType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return &domain.ConnectionError{Op: "emit " + eventType, Err: domain.ErrNotConnected}
	default:
	}
	c.emitted = append(c.emitted, emission{Type: eventType, Payload: payload})
	return nil
}

func (c *fakeConn) On(eventType string, h transport.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = h
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }
func (c *fakeConn) Err() error            { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// deliver hands an inbound event to the registered handler synchronously.
func (c *fakeConn) deliver(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", eventType, err)
	}
	c.mu.Lock()
	h := c.handlers[eventType]
	c.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler for %s", eventType)
	}
	h(context.Background(), data)
}

func (c *fakeConn) emissions(eventType string) []emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emission
	for _, e := range c.emitted {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	dialed []transport.Handlers
	err    error
}

func (d *fakeDialer) Dial(ctx context.Context, selfID string, handlers transport.Handlers) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	for eventType, h := range handlers {
		c.handlers[eventType] = h
	}
	d.dialed = append(d.dialed, handlers)
	c.Emit(ctx, domain.EventJoinRoom, selfID)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakePresenter struct {
	mu      sync.Mutex
	scrolls []string
	reloads []string
	errs    []error
}

func (p *fakePresenter) ScrollToBottom(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls = append(p.scrolls, roomID)
}

func (p *fakePresenter) ReloadHistory(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads = append(p.reloads, roomID)
}

func (p *fakePresenter) reloadsOf(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.reloads {
		if r == roomID {
			n++
		}
	}
	return n
}

func (p *fakePresenter) ShowError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *fakePresenter) errCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.errs)
}

type harness struct {
	engine    *syncEngine
	api       *fakeAPI
	dialer    *fakeDialer
	presenter *fakePresenter
}

func newHarness(t *testing.T, api *fakeAPI, mutate func(*Options)) *harness {
	t.Helper()
	if api.details == nil {
		api.details = make(map[string]domain.RawRoom)
	}
	h := &harness{api: api, dialer: &fakeDialer{}, presenter: &fakePresenter{}}

	opts := Options{
		AppID:     "app-1",
		Domain:    "https://shop.example.com",
		Self:      domain.User{ID: "u1", Username: "alice"},
		API:       api,
		Dialer:    h.dialer,
		Presenter: h.presenter,
		Viewport:  StaticViewport{Width: 1280, Breakpoint: 768},
		Logger:    log.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}

	engine, err := NewSyncEngine(opts)
	if err != nil {
		t.Fatalf("NewSyncEngine: %v", err)
	}
	h.engine = engine.(*syncEngine)
	t.Cleanup(func() { h.engine.Close() })
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.engine.Init(context.Background(), InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func intPtr(n int) *int { return &n }

func rawDM(id string, users ...domain.User) domain.RawRoom {
	return domain.RawRoom{ID: id, Type: domain.RoomTypeDM, Users: users}
}

var (
	alice = domain.User{ID: "u1", Username: "alice"}
	bob   = domain.User{ID: "u2", Username: "bob", ProfilePic: "https://cdn.example.com/bob.png"}
	carol = domain.User{ID: "u3", Username: "carol"}
)
