package adminadapter

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	fsmutil "github.com/nimbic-io/otahub/internal/pkg/util/fsm"
)

// Session lifecycle states, per spec.md §4.4: "Idle → Connecting →
// Authenticated → Open → Closed".
const (
	StateIdle          = "idle"
	StateConnecting    = "connecting"
	StateAuthenticated = "authenticated"
	StateOpen          = "open"
	StateClosed        = "closed"
)

const (
	eventConnect      = "connect"
	eventAuthenticate = "authenticate"
	eventOpen         = "open"
	eventClose        = "close"
)

// session is the single admin WebSocket connection held by the server at
// any one time. Its lifecycle is modeled as a looplab/fsm state machine,
// grounded in the teacher's internal/pkg/util/fsm.WrapEvent helper.
type session struct {
	conn *websocket.Conn
	fsm  *fsm.FSM

	// onClosed is invoked once the machine reaches StateClosed, giving
	// the server the hook it needs to clear the single-session slot.
	onClosed func()
}

func newSession(conn *websocket.Conn, onClosed func()) *session {
	s := &session{conn: conn, onClosed: onClosed}

	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateIdle}, Dst: StateConnecting},
			{Name: eventAuthenticate, Src: []string{StateConnecting}, Dst: StateAuthenticated},
			{Name: eventOpen, Src: []string{StateAuthenticated}, Dst: StateOpen},
			{Name: eventClose, Src: []string{StateIdle, StateConnecting, StateAuthenticated, StateOpen}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_" + StateClosed: fsmutil.WrapEvent(func(ctx context.Context, e *fsm.Event) error {
				if s.onClosed != nil {
					s.onClosed()
				}
				return nil
			}),
		},
	)

	return s
}

func (s *session) advance(ctx context.Context, eventName string) error {
	return s.fsm.Event(ctx, eventName)
}

func (s *session) isOpen() bool {
	return s.fsm.Current() == StateOpen
}

func (s *session) close(ctx context.Context) {
	if s.fsm.Current() == StateClosed {
		return
	}
	_ = s.conn.Close()
	_ = s.advance(ctx, eventClose)
}
