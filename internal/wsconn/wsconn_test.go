package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

func drain(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func testClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{Name: "x"}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClient_Connect(t *testing.T) {
	_, url := newServer(t, drain)
	c := testClient(t, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.State() != StateConnected || !c.IsConnected() {
		t.Errorf("State() = %v, want connected", c.State())
	}
}

func TestClient_ConnectFailureLeavesDisconnected(t *testing.T) {
	c := testClient(t, "ws://127.0.0.1:1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected dial error")
	}
	if c.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", c.State())
	}
}

func TestClient_ConnectWithRetryGivesUp(t *testing.T) {
	c := testClient(t, "ws://127.0.0.1:1", func(cfg *Config) {
		cfg.InitialBackoff = 10 * time.Millisecond
		cfg.MaxBackoff = 20 * time.Millisecond
		cfg.MaxReconnects = 3
	})

	var attempts atomic.Int32
	c.OnStateChange(func(s State, _ error) {
		if s == StateConnecting {
			attempts.Add(1)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.ConnectWithRetry(ctx); err == nil {
		t.Fatal("expected error after max attempts")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("dial attempts = %d, want 3", got)
	}
}

func TestClient_SendJSONSubscription(t *testing.T) {
	got := make(chan []byte, 1)
	_, url := newServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err == nil {
			got <- data
		}
		drain(conn)
	})
	c := testClient(t, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	sub := map[string]any{"op": "subscribe", "args": []string{"btcusdt@bookTicker"}}
	if err := c.SendJSON(ctx, sub); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}

	select {
	case data := <-got:
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("server got invalid JSON %q: %v", data, err)
		}
		if parsed["op"] != "subscribe" {
			t.Errorf("op = %v", parsed["op"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscription")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := testClient(t, "ws://127.0.0.1:1", nil)
	if err := c.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error sending without a connection")
	}
}

func TestClient_OnMessage(t *testing.T) {
	_, url := newServer(t, echo)
	c := testClient(t, url, nil)

	received := make(chan []byte, 1)
	c.OnMessage(func(_ context.Context, msg []byte) {
		select {
		case received <- msg:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	frame := []byte(`{"s":"BTCUSDT","b":"65000.10","a":"65000.20"}`)
	if err := c.Send(ctx, frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != string(frame) {
			t.Errorf("got %s, want %s", msg, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestClient_StateTransitions(t *testing.T) {
	_, url := newServer(t, drain)
	c := testClient(t, url, nil)

	var (
		mu     sync.Mutex
		states []State
	)
	c.OnStateChange(func(s State, _ error) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	want := []State{StateConnecting, StateConnected, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	_, url := newServer(t, drain)
	c := testClient(t, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.Connect(ctx); err == nil {
		t.Error("Connect() after Close() should fail")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var count atomic.Int32
	_, url := newServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
			count.Add(1)
		}
	})
	c := testClient(t, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	const senders, perSender = 8, 6
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if err := c.SendJSON(ctx, map[string]int{"sender": id, "seq": j}); err != nil {
					t.Errorf("SendJSON() error = %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < senders*perSender && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != senders*perSender {
		t.Errorf("server received %d frames, want %d", got, senders*perSender)
	}
}

func TestClient_OversizedFrameDropsConnection(t *testing.T) {
	_, url := newServer(t, func(conn *websocket.Conn) {
		big := strings.Repeat("A", 64*1024)
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(big))
		time.Sleep(200 * time.Millisecond)
	})
	c := testClient(t, url, func(cfg *Config) {
		cfg.MaxMessageSize = 128
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if c.State() == StateConnected {
		t.Error("expected the client to drop after an oversized frame")
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var accepts atomic.Int32
	_, url := newServer(t, func(conn *websocket.Conn) {
		if accepts.Add(1) == 1 {
			return // first connection is closed right away
		}
		drain(conn)
	})
	c := testClient(t, url, func(cfg *Config) {
		cfg.InitialBackoff = 20 * time.Millisecond
		cfg.MaxBackoff = 50 * time.Millisecond
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for c.Reconnects() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Reconnects() == 0 {
		t.Fatal("client never reconnected")
	}
	if !c.IsConnected() {
		t.Errorf("State() = %v after reconnect", c.State())
	}
}
