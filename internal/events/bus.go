// Package events implements the C9 push-channel event bus: a single
// actor goroutine fanning out domain.Event values to subscribed WebSocket
// clients, non-blocking with a drop policy for slow subscribers. Grounded
// directly on the teacher's internal/broadcast.Broadcaster (command
// channel + per-connection writer goroutine + ping/pong keepalive), with
// the per-session tick-pull model replaced by a flat push-on-publish model
// since there is only one global catalog/job stream here, not one stream
// per session.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 32
	stopTimeout       = 10 * time.Second
)

type busCmd interface{ isBusCmd() }
type baseBusCmd struct{}

func (baseBusCmd) isBusCmd() {}

type registerCmd struct {
	baseBusCmd
	conn *websocket.Conn
}

type unregisterCmd struct {
	baseBusCmd
	conn *websocket.Conn
}

type publishCmd struct {
	baseBusCmd
	event domain.Event
}

type sendToCmd struct {
	baseBusCmd
	conn *websocket.Conn
	data []byte
}

type stopCmd struct{ baseBusCmd }

// Bus is the single process-wide event broadcaster. It satisfies
// domain.Publisher.
type Bus struct {
	cmdCh   chan busCmd
	clock   clockwork.Clock
	clients map[*websocket.Conn]*clientWriter
	latest  *domain.Event // most recent catalog_snapshot, replayed to new subscribers
	done    chan struct{}
}

func New(clock clockwork.Clock) *Bus {
	b := &Bus{
		cmdCh:   make(chan busCmd, 256),
		clock:   clock,
		clients: make(map[*websocket.Conn]*clientWriter),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers a new WebSocket connection. If a catalog snapshot has
// already been published, it is replayed immediately to this connection
// alone, per §4.9's "a late subscriber sees only the current catalog on
// connect plus future events."
func (b *Bus) Subscribe(conn *websocket.Conn) {
	b.cmdCh <- registerCmd{conn: conn}
}

// Unsubscribe removes a connection from the fan-out set.
func (b *Bus) Unsubscribe(conn *websocket.Conn) {
	b.cmdCh <- unregisterCmd{conn: conn}
}

// Publish fans ev out to every subscribed client. It never blocks on a slow
// subscriber: a full send buffer drops that client instead.
func (b *Bus) Publish(ev domain.Event) {
	b.cmdCh <- publishCmd{event: ev}
}

// SendTo unicasts a pre-encoded message to a single subscribed connection,
// routed through the same actor and per-client writer goroutine as Publish
// so a control-message reply never races the fan-out writer on the same
// conn.
func (b *Bus) SendTo(conn *websocket.Conn, data []byte) {
	b.cmdCh <- sendToCmd{conn: conn, data: data}
}

// Stop shuts down the bus, closing all client connections, waiting up to
// stopTimeout for the actor goroutine to drain.
func (b *Bus) Stop() {
	b.cmdCh <- stopCmd{}
	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-b.done:
	case <-timer.Chan():
		slog.Warn("event bus stop timed out")
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c)
		case publishCmd:
			b.handlePublish(c)
		case sendToCmd:
			b.handleSendTo(c)
		case stopCmd:
			b.handleStop()
			return
		}
	}
}

func (b *Bus) handleRegister(c registerCmd) {
	cw := newClientWriter(c.conn, b.clock)
	b.clients[c.conn] = cw
	metrics.EventBusConnectedClients.Set(float64(len(b.clients)))

	if b.latest != nil {
		data, err := json.Marshal(b.latest)
		if err == nil {
			select {
			case cw.sendCh <- data:
			default:
			}
		}
	}
}

func (b *Bus) handleUnregister(c unregisterCmd) {
	cw, ok := b.clients[c.conn]
	if !ok {
		return
	}
	cw.stop()
	delete(b.clients, c.conn)
	metrics.EventBusConnectedClients.Set(float64(len(b.clients)))
}

func (b *Bus) handlePublish(c publishCmd) {
	if c.event.Kind == domain.EventCatalogSnapshot {
		ev := c.event
		b.latest = &ev
	}
	metrics.EventBusPublishedTotal.WithLabelValues(string(c.event.Kind)).Inc()

	data, err := json.Marshal(c.event)
	if err != nil {
		slog.Error("marshal event failed", "kind", c.event.Kind, "error", err)
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range b.clients {
		select {
		case cw.sendCh <- data:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		metrics.EventBusSlowClientsDroppedTotal.Inc()
		b.handleUnregister(unregisterCmd{conn: conn})
	}
}

func (b *Bus) handleSendTo(c sendToCmd) {
	cw, ok := b.clients[c.conn]
	if !ok {
		return
	}
	select {
	case cw.sendCh <- c.data:
	default:
		metrics.EventBusSlowClientsDroppedTotal.Inc()
		b.handleUnregister(unregisterCmd{conn: c.conn})
	}
}

func (b *Bus) handleStop() {
	for conn, cw := range b.clients {
		cw.stop()
		delete(b.clients, conn)
	}
	metrics.EventBusConnectedClients.Set(0)
}
