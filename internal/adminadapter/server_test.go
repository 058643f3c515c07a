package adminadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/wire"
	"github.com/nimbic-io/otahub/pkg/options"
)

// newTestServer builds a Server wired to an httptest.Server so tests can
// dial real WebSocket connections without binding a real TCP port twice.
func newTestServer(t *testing.T) (*Server, *httptest.Server, chan broker.Event) {
	t.Helper()

	out := make(chan broker.Event, 64)
	opts := options.NewAdminOptions()
	opts.APIKey = "secret"
	s := New(opts, out, logr.Discard())

	mux := http.NewServeMux()
	mux.HandleFunc(opts.Path, s.handleUpgrade)
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)

	return s, hs, out
}

func dial(t *testing.T, hs *httptest.Server, apiKey string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(hs.URL, "http") + "/socket"
	header := http.Header{}
	if apiKey != "" {
		header.Set(apiKeyHeader, apiKey)
	}
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func TestRejectsMissingAPIKey(t *testing.T) {
	_, hs, _ := newTestServer(t)

	_, resp, err := dial(t, hs, "")
	if err == nil {
		t.Fatal("expected dial to fail without ApiKey header")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestSecondConnectionRejected(t *testing.T) {
	_, hs, _ := newTestServer(t)

	first, _, err := dial(t, hs, "secret")
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	_, resp, err := dial(t, hs, "secret")
	if err == nil {
		t.Fatal("expected second connection to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %+v", resp)
	}
}

func TestInboundFrameReachesBus(t *testing.T) {
	_, hs, out := newTestServer(t)

	conn, _, err := dial(t, hs, "secret")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := mustEncode(t, wire.ManagementData{
		Cmd: wire.ManagementRemoveOta,
		Msg: []byte("1.0.0-0-abcd1234"),
	})

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	select {
	case ev := <-out:
		if _, ok := ev.(broker.OtaDeletePackage); !ok {
			t.Fatalf("got %T, want OtaDeletePackage", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus event")
	}
}

func TestUpdateOptionsChangesAPIKeyLive(t *testing.T) {
	s, hs, _ := newTestServer(t)

	first, _, err := dial(t, hs, "secret")
	if err != nil {
		t.Fatalf("dial with old key before reload: %v", err)
	}
	first.Close()

	reloaded := *s.currentOpts()
	reloaded.APIKey = "rotated"
	s.UpdateOptions(&reloaded)

	if _, _, err := dial(t, hs, "secret"); err == nil {
		t.Fatal("expected old api key to be rejected after reload")
	}

	// Give the server's read loop a moment to observe the first
	// connection's close and free the single session slot.
	deadline := time.Now().Add(time.Second)
	for {
		conn, _, err := dial(t, hs, "rotated")
		if err == nil {
			conn.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial with rotated key after reload: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSlotFreesAfterDisconnect(t *testing.T) {
	_, hs, _ := newTestServer(t)

	first, _, err := dial(t, hs, "secret")
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	first.Close()

	// Give the server's read loop a moment to observe the close and
	// clear the session slot.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		second, _, err := dial(t, hs, "secret")
		if err == nil {
			second.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a new connection to eventually succeed after the first disconnected")
}
