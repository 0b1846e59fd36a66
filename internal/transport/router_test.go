package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

func TestRouterDispatch(t *testing.T) {
	r := newRouter(log.Nop(), nil)

	var calls []string
	r.on(domain.EventEditMessage, func(ctx context.Context, data []byte) {
		calls = append(calls, string(data))
	})

	r.dispatch(context.Background(), []byte(`{"type":"edit_message","data":{"message_id":"m1"}}`))
	r.dispatch(context.Background(), []byte(`{"type":"delete_message","data":{}}`))
	r.dispatch(context.Background(), []byte(`garbage`))

	if len(calls) != 1 || calls[0] != `{"message_id":"m1"}` {
		t.Fatalf("calls = %v", calls)
	}

	r.on(domain.EventEditMessage, nil)
	r.dispatch(context.Background(), []byte(`{"type":"edit_message","data":{}}`))
	if len(calls) != 1 {
		t.Errorf("handler still registered after removal")
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := encodeFrame(domain.EventJoinRoom, "u1")
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if string(frame) != `{"type":"join_room","data":"u1"}` {
		t.Errorf("frame = %s", frame)
	}
}

func TestRedisChannelsAndFrame(t *testing.T) {
	if got := ServerChannel("chat:events"); got != "chat:events:server" {
		t.Errorf("ServerChannel = %q", got)
	}
	if got := UserChannel("chat:events", "u1"); got != "chat:events:user:u1" {
		t.Errorf("UserChannel = %q", got)
	}

	env, _ := domain.NewEnvelope(domain.EventJoinRoom, "u1")
	data, err := json.Marshal(redisFrame{From: "u1", Envelope: *env})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"from":"u1","type":"join_room","data":"u1"}` {
		t.Errorf("frame = %s", data)
	}
}
