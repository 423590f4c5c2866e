package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/hazardmap/mapservice/pkg/streaming"
)

const (
	sendBuffer = 1_000
	ackBuffer  = 16
	maxRedials = 10
	maxBackoff = 30 * time.Second
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	ackTimeout = 10 * time.Second
)

// inbound covers both ack messages and event envelopes.
type inbound struct {
	Type    string          `json:"type"`
	For     string          `json:"for"`
	Payload json.RawMessage `json:"payload"`
}

// connection owns one relay socket at a time. A single writer goroutine
// serves every socket the connection ever has; when either side fails the
// socket is redialed and the replay messages are written before normal
// traffic resumes.
type connection struct {
	mu        sync.Mutex
	conn      *ws.Conn
	gen       uint64
	redialing bool
	closed    bool

	out  chan []byte
	next chan socket
	acks chan streaming.AckMessage
	done chan struct{}

	target  string
	backoff time.Duration

	// onEnvelope receives every non-ack message. May be nil.
	onEnvelope func(streaming.Envelope)
	// replay returns the messages that restore relay state after a redial.
	replay func() [][]byte

	log *slog.Logger
}

// socket is a live websocket tagged with its generation.
type socket struct {
	conn *ws.Conn
	gen  uint64
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		out:     make(chan []byte, sendBuffer),
		next:    make(chan socket),
		acks:    make(chan streaming.AckMessage, ackBuffer),
		done:    make(chan struct{}),
		backoff: time.Second,
		log:     logger,
	}
}

func relayURL(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// dial connects once; later failures are handled by redial.
func (c *connection) dial(rawURL, secret string) error {
	target, err := relayURL(rawURL, secret)
	if err != nil {
		return err
	}
	c.target = target

	conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	go c.writeLoop()
	c.attach(conn)
	return nil
}

// attach makes conn current, hands it to the writer and starts its reader.
// Readers of older generations notice the bump and stay quiet.
func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.redialing = false
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	select {
	case c.next <- socket{conn: conn, gen: gen}:
	case <-c.done:
		return
	}
	go c.readLoop(conn, gen)
}

// writeLoop is the only writer for the lifetime of the connection. A
// message whose write failed is held and sent first on the next socket, so
// the relay sees messages in the order they were queued.
func (c *connection) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var (
		cur  socket
		held []byte
	)
	for {
		// a nil channel disables its case
		var out chan []byte
		if cur.conn != nil && held == nil {
			out = c.out
		}

		select {
		case <-c.done:
			return
		case s := <-c.next:
			cur = s
		case <-ping.C:
			if cur.conn == nil {
				continue
			}
			if err := cur.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.lost(cur.gen, fmt.Errorf("ping: %w", err))
				cur = socket{}
			}
			continue
		case data := <-out:
			held = data
		}

		if cur.conn == nil || held == nil {
			continue
		}
		if err := writeText(cur.conn, held); err != nil {
			c.lost(cur.gen, err)
			cur = socket{}
			continue
		}
		held = nil
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop routes acks to acks and every other envelope to onEnvelope.
func (c *connection) readLoop(conn *ws.Conn, gen uint64) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.lost(gen, err)
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Debug("Malformed message received", "raw", string(message))
			continue
		}

		if msg.Type == streaming.TypeAck {
			select {
			case c.acks <- streaming.AckMessage{Type: msg.Type, For: msg.For}:
			default:
				c.log.Debug("Ack channel full, dropping", "for", msg.For)
			}
			continue
		}

		if c.onEnvelope == nil {
			c.log.Debug("No handler for inbound message", "type", msg.Type)
			continue
		}
		c.onEnvelope(streaming.Envelope{Type: msg.Type, Payload: msg.Payload})
	}
}

// lost starts a redial unless the failure belongs to a stale socket, a
// redial is already running, or the connection was closed.
func (c *connection) lost(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || c.redialing || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.redialing = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.log.Warn("WebSocket connection lost", "error", err)
	go c.redial()
}

func (c *connection) redial() {
	backoff := c.backoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
		if err != nil {
			c.log.Warn("Redial failed", "attempt", attempt, "backoff", backoff, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		if err := c.writeReplay(conn); err != nil {
			c.log.Warn("Replay after redial failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}

		c.attach(conn)
		c.log.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.mu.Lock()
	c.redialing = false
	c.mu.Unlock()
	c.log.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxRedials)
}

func (c *connection) writeReplay(conn *ws.Conn) error {
	if c.replay == nil {
		return nil
	}
	msgs := c.replay()
	for _, data := range msgs {
		if err := writeText(conn, data); err != nil {
			return err
		}
	}
	if len(msgs) > 0 {
		c.log.Debug("Replayed map state", "messages", len(msgs))
	}
	return nil
}

// send queues data for the writer. It never blocks; a full queue drops.
func (c *connection) send(data []byte) {
	select {
	case c.out <- data:
	default:
		c.log.Warn("WebSocket send queue full, dropping message")
	}
}

// sendAndWait sends data and blocks until the relay acknowledges ackFor or
// the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops all loops. It is idempotent.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
