package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/audit"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/client"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

func (e *syncEngine) Init(ctx context.Context, opts InitOptions) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	ctx = e.scoped(ctx)
	if err := e.initialize(ctx, opts); err != nil {
		e.session.SetState(domain.StateFailed)
		audit.LogWithDetail(ctx, audit.ActionInitFailed, e.session.SelfID(), e.appID, err.Error(), "initialization failed")
		e.report(ctx, err, "initialization failed")
		return err
	}

	e.session.Authenticate()
	audit.Log(ctx, audit.ActionInit, e.session.SelfID(), e.appID, "session connected")
	return nil
}

func (e *syncEngine) SwitchIdentity(ctx context.Context, self domain.User, recipient *domain.User) error {
	if recipient != nil && recipient.ID == "" {
		recipient = nil
	}
	e.session.SetIdentity(self, recipient)
	return e.Init(ctx, InitOptions{Reset: true})
}

func (e *syncEngine) initialize(ctx context.Context, opts InitOptions) error {
	e.setState(ctx, domain.StateConfigLoading)
	if err := e.loadConfig(ctx); err != nil {
		return err
	}

	e.setState(ctx, domain.StateUsersInitializing)
	if err := e.initUsers(ctx); err != nil {
		return err
	}
	ctx = e.scoped(ctx)

	e.setState(ctx, domain.StateRoomsLoading)
	if opts.Reset {
		e.mu.Lock()
		e.rooms.Reset()
		e.messages.Reset()
		e.session.ClearSelection()
		e.announce = nil
		e.mu.Unlock()
	}
	if err := e.ReloadRooms(ctx); err != nil {
		return err
	}

	if err := e.resolveRecipient(ctx); err != nil {
		return err
	}

	if err := e.connect(ctx); err != nil {
		return err
	}
	e.announceRooms(ctx)
	return nil
}

func (e *syncEngine) setState(ctx context.Context, state domain.State) {
	e.session.SetState(state)
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldState, state.String()).Msg("init state")
}

// loadConfig fetches the application configuration, through the token
// path when a token is configured.
func (e *syncEngine) loadConfig(ctx context.Context) error {
	if e.token == "" {
		cfg, err := e.api.LoadConfig(ctx, domain.ConfigRequest{AppID: e.appID, DomainName: e.domainName})
		if err != nil {
			return err
		}
		e.session.SetAppConfig(cfg)
		return nil
	}

	if _, err := client.PeekToken(e.token, e.now()); err != nil {
		return err
	}

	cfg, err := e.api.LoadTokenConfig(ctx, domain.TokenConfigRequest{Token: e.token, AppID: e.appID, Domain: e.domainName})
	if err != nil {
		return err
	}

	_, recipient := e.session.Identity()
	if cfg.Decoded.Recipient != nil && cfg.Decoded.Recipient.ID != "" {
		recipient = cfg.Decoded.Recipient
	}
	e.session.SetIdentity(cfg.Decoded.User, recipient)
	e.session.SetAppConfig(cfg.AppConfig)
	return nil
}

// initUsers registers the identities with the chat service and adopts the
// canonical versions it returns.
func (e *syncEngine) initUsers(ctx context.Context) error {
	self, recipient := e.session.Identity()

	req := domain.InitUsersRequest{AppID: e.appID, User: self.Embed()}
	if recipient != nil {
		r := recipient.Embed()
		req.Recipient = &r
	}
	res, err := e.api.InitUsers(ctx, req)
	if err != nil {
		return err
	}

	if res.Recipient != nil && res.Recipient.ID != "" {
		recipient = res.Recipient
	}
	e.session.SetIdentity(res.User, recipient)
	return nil
}

func (e *syncEngine) ReloadRooms(ctx context.Context) error {
	selfID := e.session.SelfID()

	raw, err := e.api.GetUserRooms(ctx, domain.UserRoomsRequest{UserID: selfID, AppID: e.appID})
	if err != nil {
		return err
	}

	rooms := make([]domain.Room, 0, len(raw))
	for _, r := range raw {
		rooms = append(rooms, TransformRoom(r, selfID))
	}

	e.mu.Lock()
	e.rooms.Replace(rooms)
	e.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Int("rooms", len(rooms)).Msg("rooms loaded")

	e.refreshSelection(ctx)
	return nil
}

// refreshSelection re-applies the selection to a replaced Room Cache. A
// selected room still listed gets its history refetched and is marked read
// again; one that is gone is deselected.
func (e *syncEngine) refreshSelection(ctx context.Context) {
	roomID := e.session.GetSelectedRoom()
	if roomID == "" {
		return
	}
	ctx = log.WithRoom(ctx, roomID)
	l := log.Ctx(ctx)

	e.mu.Lock()
	_, listed := e.rooms.Get(roomID)
	if listed {
		e.messages.Load(roomID, nil)
	} else {
		e.session.ClearSelection()
		e.messages.Reset()
	}
	e.mu.Unlock()

	if !listed {
		l.Info().Msg("selected room no longer listed, selection cleared")
		return
	}

	e.presenter.ReloadHistory(roomID)
	if err := e.MarkRoomAsRead(ctx, roomID); err != nil {
		l.Warn().Err(err).Msg("failed to mark selected room read after reload")
	}
}
