package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Page snapshots can arrive in undo frames.
	maxMessageSize = 16 << 20
)

// ErrClosed is returned by Send once the connection is gone.
var ErrClosed = errors.New("signaling connection closed")

// Client is a connection to the relay's websocket endpoint. Outgoing frames
// go through one write pump; incoming envelopes are delivered in order on
// Incoming.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger

	outgoing chan []byte
	incoming chan models.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to serverURL, a ws:// or wss:// URL of the relay endpoint. A
// non-empty token is sent as a bearer credential.
func Dial(ctx context.Context, serverURL, token string, log zerolog.Logger) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, serverURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		log:      log.With().Str("mod", "client").Logger(),
		outgoing: make(chan []byte, 64),
		incoming: make(chan models.Envelope, 64),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn().Err(err).Msg("write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes and queues one event. It blocks while the queue is full and
// fails once the connection is closed.
func (c *Client) Send(event models.EventName, payload any) error {
	frame, err := models.Encode(event, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming delivers relay events in arrival order. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan models.Envelope {
	return c.incoming
}

// Done is closed once Close has been called or the connection failed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
