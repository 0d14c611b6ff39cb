// Package websocket pushes position snapshots to connected dashboard viewers.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	"github.com/pscheid92/thereiwas/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

var (
	ErrTooManyViewers = errors.New("maximum number of viewers reached")
	ErrHubStopped     = errors.New("hub stopped")
)

// Message is the envelope sent to viewers.
type Message struct {
	Type string                  `json:"type"`
	Data domain.PositionSnapshot `json:"data"`
}

const messageTypePositions = "positions"

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	data []byte
}

type viewerCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub is an actor owning all viewer connections. The first viewer triggers
// onFirstViewer and the last one leaving triggers onLastViewer; both run on
// the hub goroutine and must not call back into the hub synchronously.
type Hub struct {
	cmdCh         chan hubCmd
	clock         clockwork.Clock
	clients       map[*websocket.Conn]*viewerWriter
	last          []byte
	onFirstViewer func()
	onLastViewer  func()
	maxViewers    int
	metrics       *metrics.WebSocketMetrics
	done          chan struct{}
}

func NewHub(onFirstViewer, onLastViewer func(), clock clockwork.Clock, maxViewers int, wsMetrics *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:         make(chan hubCmd, 256),
		clock:         clock,
		clients:       make(map[*websocket.Conn]*viewerWriter),
		onFirstViewer: onFirstViewer,
		onLastViewer:  onLastViewer,
		maxViewers:    maxViewers,
		metrics:       wsMetrics,
		done:          make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a viewer. The viewer immediately receives the latest snapshot, if any.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(registerCmd{connection: conn, errorChannel: errCh}) {
		return ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.send(unregisterCmd{connection: conn})
}

// PublishPositions sends the snapshot to every viewer.
func (h *Hub) PublishPositions(ctx context.Context, snapshot domain.PositionSnapshot) {
	data, err := json.Marshal(Message{Type: messageTypePositions, Data: snapshot})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode position snapshot", "error", err)
		return
	}

	h.send(publishCmd{data: data})
}

// ViewerCount returns the number of connected viewers, or -1 on timeout.
func (h *Hub) ViewerCount() int {
	replyCh := make(chan int, 1)
	if !h.send(viewerCountCmd{replyChannel: replyCh}) {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ViewerCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes all viewer connections and waits for the hub goroutine to exit.
func (h *Hub) Stop() {
	if !h.send(stopCmd{}) {
		return
	}

	timeout := h.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

// send delivers cmd to the hub goroutine. False means the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case publishCmd:
			h.handlePublish(c.data)
		case viewerCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if h.maxViewers > 0 && len(h.clients) >= h.maxViewers {
		slog.Warn("Rejecting viewer, max viewers reached", "max_viewers", h.maxViewers)
		if h.metrics != nil {
			h.metrics.ViewersRejected.Inc()
		}
		c.errorChannel <- ErrTooManyViewers
		return
	}

	vw := newViewerWriter(c.connection, h.clock)
	h.clients[c.connection] = vw
	h.setActive()

	if h.last != nil {
		if delivered, _ := vw.offer(h.last); delivered && h.metrics != nil {
			h.metrics.SnapshotReplays.Inc()
		}
	}

	if len(h.clients) == 1 && h.onFirstViewer != nil {
		h.onFirstViewer()
	}

	slog.Debug("Viewer registered", "viewers", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	vw, ok := h.clients[conn]
	if !ok {
		return
	}

	vw.stop()
	delete(h.clients, conn)
	h.setActive()

	if len(h.clients) == 0 {
		if h.onLastViewer != nil {
			h.onLastViewer()
		}
		slog.Debug("Last viewer disconnected")
		return
	}
	slog.Debug("Viewer unregistered", "viewers", len(h.clients))
}

func (h *Hub) handlePublish(data []byte) {
	h.last = data

	var broken []*websocket.Conn
	for conn, vw := range h.clients {
		delivered, superseded := vw.offer(data)
		if !delivered {
			broken = append(broken, conn)
			continue
		}
		if h.metrics == nil {
			continue
		}
		h.metrics.MessagesPublished.Inc()
		if superseded {
			h.metrics.SnapshotsSuperseded.Inc()
		}
	}

	for _, conn := range broken {
		slog.Warn("Dropping viewer after failed write")
		if h.metrics != nil {
			h.metrics.BrokenViewersDropped.Inc()
		}
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, vw := range h.clients {
		vw.stopWithReason("server shutting down")
		delete(h.clients, conn)
	}
	h.setActive()
}

func (h *Hub) setActive() {
	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
}
