package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live websocket connection. Its id is the connection
// identifier echoed to other participants as socketId / from.
type Client struct {
	id       string
	identity *models.Identity
	conn     *websocket.Conn
	hub      *Hub
	log      zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) ID() string { return c.id }

// Identity returns the verified identity, or nil for anonymous connections.
func (c *Client) Identity() *models.Identity { return c.identity }

// enqueue hands a frame to the write pump without blocking. A client whose
// buffer is full is disconnected rather than silently losing events.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn().Msg("send buffer full, closing slow connection")
		c.hub.metrics.slowClosed.Inc()
		c.close()
		return false
	}
}

// close stops the write pump, which then closes the connection and so ends
// the read pump. Safe to call from any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump decodes frames and dispatches them in arrival order. It owns the
// connection's read side; on exit the client leaves its room.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.hub.handleFrame(c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
