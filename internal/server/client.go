package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/pushrelay/internal/logging"
	"github.com/Tyrowin/pushrelay/internal/relay"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// connection is one open WebSocket bound to a username. It owns the read and
// write pumps and tears itself down exactly once, whichever side stops first.
type connection struct {
	id       string
	username string
	conn     *websocket.Conn
	outbox   *relay.Outbox
	relay    *relay.Relay
	log      *slog.Logger

	limiter        *frameLimiter
	rateLimit      RateLimitConfig
	maxMessageSize int64
	pingInterval   time.Duration

	closeOnce sync.Once
	onClose   func()
}

func newConnection(
	id, username string,
	conn *websocket.Conn,
	outbox *relay.Outbox,
	r *relay.Relay,
	cfg Config,
	log *slog.Logger,
) *connection {
	conn.SetReadLimit(cfg.MaxMessageSize)

	return &connection{
		id:             id,
		username:       username,
		conn:           conn,
		outbox:         outbox,
		relay:          r,
		log:            log.With(logging.Username(username), logging.ConnID(id)),
		limiter:        newFrameLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		maxMessageSize: cfg.MaxMessageSize,
		pingInterval:   cfg.PingInterval,
	}
}

// teardown detaches the connection from the relay and closes the socket.
// Every termination path calls it; only the first call has an effect.
func (c *connection) teardown() {
	c.closeOnce.Do(func() {
		c.relay.Detach(context.Background(), c.username, c.outbox)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection", logging.Err(err))
		}
		if c.onClose != nil {
			c.onClose()
		}
	})
}

func (c *connection) pongWait() time.Duration {
	return c.pingInterval * 10 / 9
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *connection) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait())); err != nil {
		c.log.Warn("error setting initial read deadline", logging.Err(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})
}

// logReadError classifies the error that ended the read loop.
func (c *connection) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("inbound frame exceeded size limit", slog.Int64("max_bytes", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Info("client closed connection", logging.Err(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("connection closed", logging.Err(err))
	case websocket.IsUnexpectedCloseError(err):
		c.log.Warn("unexpected websocket close", logging.Err(err))
	default:
		c.log.Warn("websocket read error", logging.Err(err))
	}
}

// readPump consumes inbound frames until the transport fails or closes.
// Frame contents carry no meaning for the relay and are only logged.
func (c *connection) readPump() {
	defer c.teardown()

	c.setupReadConnection()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Debug("inbound rate limit exceeded; frame dropped",
				slog.Int("burst", c.rateLimit.Burst),
				slog.Duration("interval", c.rateLimit.RefillInterval),
			)
			continue
		}

		c.log.Debug("inbound frame ignored", slog.Int("bytes", len(frame)))
	}
}

// writePump drains the outbox onto the socket in enqueue order and keeps the
// connection alive with pings. It stops on the first write failure or once
// the outbox is closed.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *connection) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case <-c.outbox.Ready():
		return c.writeQueued()
	case <-c.outbox.Done():
		if c.writeQueued() {
			c.writeCloseMessage()
		}
		return false
	case <-ticker.C:
		return c.writePing()
	}
}

// writeQueued writes every queued message as its own text frame.
func (c *connection) writeQueued() bool {
	for _, message := range c.outbox.Drain() {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.log.Warn("error setting write deadline", logging.Err(err))
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("error writing message", logging.Err(err))
			}
			return false
		}
	}
	return true
}

func (c *connection) writeCloseMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("error writing close message", logging.Err(err))
		}
	}
}

func (c *connection) writePing() bool {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping", logging.Err(err))
		}
		return false
	}
	return true
}
