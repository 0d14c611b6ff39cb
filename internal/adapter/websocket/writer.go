package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// viewerWriter owns all writes to one viewer connection. Snapshots supersede
// each other, so the mailbox holds at most one: a viewer that falls behind
// skips straight to the newest snapshot.
type viewerWriter struct {
	conn  *websocket.Conn
	clock clockwork.Clock

	mu      sync.Mutex
	mailbox chan []byte

	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newViewerWriter(conn *websocket.Conn, clock clockwork.Clock) *viewerWriter {
	w := &viewerWriter{
		conn:    conn,
		clock:   clock,
		mailbox: make(chan []byte, 1),
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	w.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		w.extendReadDeadline()
		return nil
	})
	go w.run()
	return w
}

func (w *viewerWriter) run() {
	defer close(w.exited)

	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-w.mailbox:
			if err := w.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			if err := w.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.quit:
			return
		}
	}
}

// offer replaces any undelivered snapshot with msg. It reports false once the
// connection has failed, and whether an older snapshot was dropped.
func (w *viewerWriter) offer(msg []byte) (delivered, superseded bool) {
	select {
	case <-w.exited:
		return false, false
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.mailbox:
		superseded = true
	default:
	}
	w.mailbox <- msg
	return true, superseded
}

func (w *viewerWriter) stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
		_ = w.conn.Close()
	})
	<-w.exited
}

// stopWithReason sends a close frame before closing the connection.
func (w *viewerWriter) stopWithReason(reason string) {
	w.stopOnce.Do(func() {
		close(w.quit)
		<-w.exited

		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = w.write(websocket.CloseMessage, frame)
		_ = w.conn.Close()
	})
}

func (w *viewerWriter) write(messageType int, data []byte) error {
	_ = w.conn.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
	return w.conn.WriteMessage(messageType, data)
}

func (w *viewerWriter) extendReadDeadline() {
	_ = w.conn.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
