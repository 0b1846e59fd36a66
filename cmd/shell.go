package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/service"
)

var errUsage = errors.New("usage")

// shell is a line-oriented front end for a SyncEngine. It stands in for
// the widget UI: each line is one user action.
type shell struct {
	engine service.SyncEngine
	in     io.Reader
	out    io.Writer
	mu     sync.Mutex
}

func newShell(engine service.SyncEngine, in io.Reader, out io.Writer) *shell {
	return &shell{engine: engine, in: in, out: out}
}

// Run reads commands until the input ends, "quit" is entered or ctx is
// cancelled.
func (s *shell) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "quit" {
				return nil
			}
			if err := s.Exec(ctx, line); err != nil {
				if errors.Is(err, errUsage) {
					s.printf("%v\n", err)
				} else {
					s.printf("error: %v\n", err)
				}
			}
		}
	}
}

// Exec runs a single command line.
func (s *shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		s.printf("commands: rooms, select <room>, history <room> <file>, messages, send <text>, edit <msg> <text>, delete <msg> [all], read <room>, config, quit\n")
		return nil

	case "rooms":
		selected := s.engine.SelectedRoom()
		for _, r := range s.engine.Rooms() {
			marker := " "
			if r.ID == selected {
				marker = "*"
			}
			recent := ""
			if r.RecentMessage != nil {
				recent = r.RecentMessage.Content
			}
			s.printf("%s %s\t%s\t%s\tunread=%d\t%s\n", marker, r.ID, r.Type, r.Details.Name, r.UnreadCount, recent)
		}
		return nil

	case "select":
		if len(args) != 1 {
			return fmt.Errorf("%w: select <room>", errUsage)
		}
		return s.engine.SelectRoom(ctx, args[0])

	case "history":
		if len(args) != 2 {
			return fmt.Errorf("%w: history <room> <file>", errUsage)
		}
		msgs, err := readMessages(args[1])
		if err != nil {
			return err
		}
		if !s.engine.SetMessages(args[0], msgs) {
			s.printf("room %s is not selected, history ignored\n", args[0])
		}
		return nil

	case "messages":
		for _, m := range s.engine.Messages() {
			flags := ""
			if m.Edited {
				flags += " (edited)"
			}
			if m.Deleted {
				flags += " (deleted)"
			}
			s.printf("%s\t%s: %s%s\n", m.ID, m.Sender, m.Content, flags)
		}
		return nil

	case "send":
		roomID := s.engine.SelectedRoom()
		if roomID == "" {
			return errors.New("no room selected")
		}
		return s.engine.SendMessage(ctx, roomID, strings.Join(args, " "))

	case "edit":
		if len(args) < 2 {
			return fmt.Errorf("%w: edit <msg> <text>", errUsage)
		}
		msg, err := s.findMessage(args[0])
		if err != nil {
			return err
		}
		msg.Content = strings.Join(args[1:], " ")
		return s.engine.EditMessage(ctx, msg, "")

	case "delete":
		if len(args) < 1 || len(args) > 2 || (len(args) == 2 && args[1] != "all") {
			return fmt.Errorf("%w: delete <msg> [all]", errUsage)
		}
		msg, err := s.findMessage(args[0])
		if err != nil {
			return err
		}
		return s.engine.DeleteMessage(ctx, msg, len(args) == 2, "")

	case "read":
		if len(args) != 1 {
			return fmt.Errorf("%w: read <room>", errUsage)
		}
		return s.engine.MarkRoomAsRead(ctx, args[0])

	case "config":
		cfg := s.engine.AppConfig()
		if len(cfg) == 0 {
			cfg = json.RawMessage("{}")
		}
		s.printf("%s\n", cfg)
		return nil
	}

	return fmt.Errorf("%w: unknown command %q, try help", errUsage, cmd)
}

func (s *shell) findMessage(id string) (domain.Message, error) {
	for _, m := range s.engine.Messages() {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Message{}, fmt.Errorf("message %s not in the selected room", id)
}

func (s *shell) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// readMessages loads a room history saved as a JSON array of messages.
func readMessages(path string) ([]domain.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("invalid history file %s: %w", path, err)
	}
	return msgs, nil
}

// consolePresenter writes UI side effects to a terminal.
type consolePresenter struct {
	out io.Writer
	mu  sync.Mutex
}

func newConsolePresenter(out io.Writer) *consolePresenter {
	return &consolePresenter{out: out}
}

func (p *consolePresenter) ScrollToBottom(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "-- new message in %s\n", roomID)
}

func (p *consolePresenter) ReloadHistory(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "-- history of %s is stale, reload it with: history %s <file>\n", roomID, roomID)
}

func (p *consolePresenter) ShowError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "!! %v\n", err)
}
