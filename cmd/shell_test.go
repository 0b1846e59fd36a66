package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/service"
)

// stubEngine implements the parts of SyncEngine the shell drives.
type stubEngine struct {
	service.SyncEngine

	selected string
	rooms    []domain.Room
	messages []domain.Message

	sent    []string
	edited  []domain.Message
	deleted map[string]bool
	read    []string
	history map[string]int
}

func (e *stubEngine) SelectedRoom() string       { return e.selected }
func (e *stubEngine) Rooms() []domain.Room       { return e.rooms }
func (e *stubEngine) Messages() []domain.Message { return e.messages }
func (e *stubEngine) AppConfig() json.RawMessage { return nil }

func (e *stubEngine) SelectRoom(_ context.Context, roomID string) error {
	for _, r := range e.rooms {
		if r.ID == roomID {
			e.selected = roomID
			return nil
		}
	}
	return domain.ErrRoomNotFound
}

func (e *stubEngine) SetMessages(roomID string, msgs []domain.Message) bool {
	if roomID != e.selected {
		return false
	}
	if e.history == nil {
		e.history = map[string]int{}
	}
	e.history[roomID] = len(msgs)
	e.messages = msgs
	return true
}

func (e *stubEngine) SendMessage(_ context.Context, roomID, content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyContent
	}
	e.sent = append(e.sent, roomID+":"+content)
	return nil
}

func (e *stubEngine) EditMessage(_ context.Context, msg domain.Message, _ string) error {
	e.edited = append(e.edited, msg)
	return nil
}

func (e *stubEngine) DeleteMessage(_ context.Context, msg domain.Message, forEveryone bool, _ string) error {
	if e.deleted == nil {
		e.deleted = map[string]bool{}
	}
	e.deleted[msg.ID] = forEveryone
	return nil
}

func (e *stubEngine) MarkRoomAsRead(_ context.Context, roomID string) error {
	e.read = append(e.read, roomID)
	return nil
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		rooms: []domain.Room{
			{ID: "r1", Type: domain.RoomTypeDM, Details: domain.RoomDetails{Name: "bob"}, UnreadCount: 2},
			{ID: "r2", Type: domain.RoomTypeGroup, Details: domain.RoomDetails{Name: "team"}},
		},
	}
}

func TestShellSelectAndSend(t *testing.T) {
	engine := newStubEngine()
	var out bytes.Buffer
	sh := newShell(engine, strings.NewReader(""), &out)
	ctx := context.Background()

	if err := sh.Exec(ctx, "send hello"); err == nil {
		t.Fatal("expected error sending without a selected room")
	}
	if err := sh.Exec(ctx, "select r1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := sh.Exec(ctx, "send hello   there"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(engine.sent) != 1 || engine.sent[0] != "r1:hello there" {
		t.Errorf("sent = %v", engine.sent)
	}

	if err := sh.Exec(ctx, "select nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("select unknown room err = %v", err)
	}
}

func TestShellRoomsListing(t *testing.T) {
	engine := newStubEngine()
	engine.selected = "r2"
	var out bytes.Buffer
	sh := newShell(engine, strings.NewReader(""), &out)

	if err := sh.Exec(context.Background(), "rooms"); err != nil {
		t.Fatalf("rooms: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "  r1") || !strings.Contains(lines[0], "unread=2") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "* r2") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestShellHistoryEditDelete(t *testing.T) {
	engine := newStubEngine()
	engine.selected = "r1"
	var out bytes.Buffer
	sh := newShell(engine, strings.NewReader(""), &out)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "history.json")
	history := `[{"_id":"m1","room_id":"r1","sender":"u2","content":"hi"},{"_id":"m2","room_id":"r1","sender":"u1","content":"yo"}]`
	if err := os.WriteFile(path, []byte(history), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := sh.Exec(ctx, "history r1 "+path); err != nil {
		t.Fatalf("history: %v", err)
	}
	if engine.history["r1"] != 2 {
		t.Fatalf("history = %v", engine.history)
	}

	if err := sh.Exec(ctx, "edit m2 yo again"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(engine.edited) != 1 || engine.edited[0].ID != "m2" || engine.edited[0].Content != "yo again" {
		t.Errorf("edited = %+v", engine.edited)
	}

	if err := sh.Exec(ctx, "delete m1 all"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := sh.Exec(ctx, "delete m2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !engine.deleted["m1"] || engine.deleted["m2"] {
		t.Errorf("deleted = %v", engine.deleted)
	}

	if err := sh.Exec(ctx, "edit m9 text"); err == nil {
		t.Error("expected error editing unknown message")
	}
	if err := sh.Exec(ctx, "delete m1 mine"); !errors.Is(err, errUsage) {
		t.Errorf("delete usage err = %v", err)
	}
}

func TestShellRunStopsOnQuit(t *testing.T) {
	engine := newStubEngine()
	var out bytes.Buffer
	sh := newShell(engine, strings.NewReader("read r1\nbogus\nquit\nread r2\n"), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(engine.read) != 1 || engine.read[0] != "r1" {
		t.Errorf("read = %v", engine.read)
	}
	if !strings.Contains(out.String(), `unknown command "bogus"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestConsolePresenter(t *testing.T) {
	var out bytes.Buffer
	p := newConsolePresenter(&out)
	p.ScrollToBottom("r1")
	p.ReloadHistory("r1")
	p.ShowError(errors.New("boom"))

	want := "-- new message in r1\n" +
		"-- history of r1 is stale, reload it with: history r1 <file>\n" +
		"!! boom\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q", got)
	}
}
