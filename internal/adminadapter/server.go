// Package adminadapter implements spec.md §4.4: the authenticated
// WebSocket admin control plane. At most one admin session is open at a
// time; a second connection attempt is rejected outright. Grounded on
// the original source's lib-server/src/admin.rs single-slot
// Arc<Mutex<Option<Sender<...>>>> pattern and the teacher's
// internal/cloudhub/server/http/server.go graceful-shutdown shape.
package adminadapter

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/metrics"
	"github.com/nimbic-io/otahub/pkg/options"
)

const apiKeyHeader = "ApiKey"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server is the admin WebSocket adapter: an HTTP server hosting a single
// upgrade path, enforcing the shared-secret header and the one-session
// rule, and relaying broker events back out as CBOR binary frames.
type Server struct {
	log logr.Logger

	// addr and path are bound into httpSrv at construction and never
	// change; optsMu guards only the fields a reload can safely take
	// effect on (APIKey, WriteTimeout).
	addr, path string
	optsMu     sync.RWMutex
	opts       *options.AdminOptions

	out chan<- broker.Event // the broker's inbox
	in  chan broker.Event   // this adapter's own inbox, registered as "admin"

	httpSrv *http.Server

	mu      sync.Mutex
	current *session
}

func New(opts *options.AdminOptions, out chan<- broker.Event, log logr.Logger) *Server {
	s := &Server{
		log:  log,
		addr: opts.Addr,
		path: opts.Path,
		opts: opts,
		out:  out,
		in:   make(chan broker.Event, 256),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(opts.Path, s.handleUpgrade)

	s.httpSrv = &http.Server{
		Addr:    opts.Addr,
		Handler: mux,
	}

	return s
}

// Inbox returns the channel the adapter should be registered with under
// the broker name "admin".
func (s *Server) Inbox() chan broker.Event {
	return s.in
}

// Run starts the HTTP server, relays outbound bus events to the current
// session for as long as one is open, and shuts down cleanly when ctx is
// cancelled — the same join-on-context pattern the teacher's
// internal/cloudhub/server/http/server.go uses.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin adapter listening", "addr", s.addr, "path", s.path)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.httpSrv.Shutdown(shutdownCtx)
			s.closeCurrentSession(shutdownCtx)
			return ctx.Err()

		case err := <-errCh:
			return err

		case ev := <-s.in:
			s.relay(ctx, ev)
		}
	}
}

func (s *Server) relay(ctx context.Context, ev broker.Event) {
	data, ok, err := encodeOutbound(ev)
	if !ok {
		return
	}
	if err != nil {
		s.log.Error(err, "failed to encode outbound admin frame")
		return
	}

	sess := s.activeSession()
	if sess == nil || !sess.isOpen() {
		return
	}

	sess.conn.SetWriteDeadline(time.Now().Add(s.currentOpts().WriteTimeout))
	if err := sess.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.log.Error(err, "failed to write admin frame, closing session")
		sess.close(ctx)
	}
}

// currentOpts returns the most recently applied options, reflecting any
// live reload via UpdateOptions.
func (s *Server) currentOpts() *options.AdminOptions {
	s.optsMu.RLock()
	defer s.optsMu.RUnlock()
	return s.opts
}

// UpdateOptions applies a reloaded configuration. Only APIKey and
// WriteTimeout take effect immediately; Addr and Path are bound into
// httpSrv at construction and require a restart to change.
func (s *Server) UpdateOptions(opts *options.AdminOptions) {
	s.optsMu.Lock()
	defer s.optsMu.Unlock()
	s.opts = opts
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(apiKeyHeader) != s.currentOpts().APIKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.activeSession() != nil {
		http.Error(w, "admin session already active", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error(err, "websocket upgrade failed")
		return
	}

	sess := newSession(conn, s.clearSession)
	if !s.tryOccupy(sess) {
		_ = conn.Close()
		return
	}

	ctx := r.Context()
	_ = sess.advance(ctx, eventConnect)
	_ = sess.advance(ctx, eventAuthenticate)
	_ = sess.advance(ctx, eventOpen)

	// The request context is cancelled as soon as this handler returns;
	// the read loop outlives it, so it must not inherit that cancellation
	// or the final close transition (which frees the slot) never runs.
	go s.readLoop(context.WithoutCancel(ctx), sess)
}

// readLoop decodes every inbound binary frame and emits the
// corresponding event onto the bus. Malformed frames are logged and
// dropped; the connection is never torn down over a decode error.
func (s *Server) readLoop(ctx context.Context, sess *session) {
	defer sess.close(ctx)

	for {
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		ev, err := decodeFrame(data)
		if err != nil {
			s.log.Info("dropping malformed admin frame", "error", err.Error())
			continue
		}
		s.out <- ev
	}
}

// tryOccupy atomically claims the single session slot, failing if
// another connection raced in between the activeSession check in
// handleUpgrade and here.
func (s *Server) tryOccupy(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false
	}
	s.current = sess
	metrics.AdminSessionOpen.Set(1)
	return true
}

func (s *Server) activeSession() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Server) clearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	metrics.AdminSessionOpen.Set(0)
}

func (s *Server) closeCurrentSession(ctx context.Context) {
	if sess := s.activeSession(); sess != nil {
		sess.close(ctx)
	}
}
