/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

type Role string

const (
	RoleOperator Role = "operator"
	RoleDisplay  Role = "display"
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
	role Role
}

type registration struct {
	client   *Client
	greeting []byte
}

type addressed struct {
	client  *Client
	payload []byte
}

type frame struct {
	payload []byte
	state   bool
}

// Hub fans encoded messages out to websocket clients and in-process
// listeners. Client bookkeeping lives on the run loop only.
type Hub struct {
	clients  map[*Client]bool
	register chan registration
	unreg    chan *Client
	outbound chan frame
	direct   chan addressed
	done     chan struct{}

	// latest is the last state frame sent out; run loop only.
	latest []byte

	mu        sync.Mutex
	listeners map[int]func(Message)
	nextID    int

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		register:  make(chan registration),
		unreg:     make(chan *Client),
		outbound:  make(chan frame, 64),
		direct:    make(chan addressed, 16),
		done:      make(chan struct{}),
		listeners: make(map[int]func(Message)),
		log:       log,
	}
}

// Run owns the client set until ctx ends, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case r := <-h.register:
			greeting := r.greeting
			if h.latest != nil {
				greeting = h.latest
			}
			if greeting != nil {
				r.client.send <- greeting
			}
			h.clients[r.client] = true
			h.log.Debug().Str("role", string(r.client.role)).Int("clients", len(h.clients)).Msg("client joined")

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case a := <-h.direct:
			if _, ok := h.clients[a.client]; ok {
				select {
				case a.client.send <- a.payload:
				default:
				}
			}

		case f := <-h.outbound:
			if f.state {
				h.latest = f.payload
			}
			for c := range h.clients {
				select {
				case c.send <- f.payload:
				default:
					// Slow client; it recovers from the store on reconnect.
					delete(h.clients, c)
					close(c.send)
					h.log.Warn().Str("role", string(c.role)).Msg("dropped slow client")
				}
			}
		}
	}
}

// Subscribe registers an in-process listener. Listeners run on the
// publisher's goroutine and must not block.
func (h *Hub) Subscribe(fn func(Message)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Publish hands m to every listener and queues it for every client.
func (h *Hub) Publish(ctx context.Context, m Message) error {
	payload, err := m.Encode()
	if err != nil {
		return err
	}

	h.mu.Lock()
	listeners := make([]func(Message), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}

	select {
	case h.outbound <- frame{payload: payload, state: m.Kind == KindState}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve attaches conn to the hub and blocks until the peer goes away. The
// first frame the client sees is the latest state the hub has sent out, or
// greeting when none has gone out yet. Every frame the
// client sends is passed to onFrame, and a non-nil result is sent back to
// that client alone.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, role Role, greeting []byte, onFrame func([]byte) []byte) {
	c := &Client{
		conn: conn,
		send: make(chan []byte, 16),
		role: role,
	}

	select {
	case h.register <- registration{client: c, greeting: greeting}:
	case <-h.done:
		_ = conn.Close()
		return
	case <-ctx.Done():
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(h, onFrame)
}

func (c *Client) readPump(h *Hub, onFrame func([]byte) []byte) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if onFrame == nil {
			continue
		}
		if reply := onFrame(data); reply != nil {
			select {
			case h.direct <- addressed{client: c, payload: reply}:
			case <-h.done:
				return
			}
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
