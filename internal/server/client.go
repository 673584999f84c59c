package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/types"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096

	// typing frames beyond this rate are dropped rather than forwarded
	typingRateLimit = rate.Limit(5)
	typingBurst     = 5
)

// Client is one live session: a single websocket connection bound to an
// authenticated user. A user may hold any number of concurrent clients.
type Client struct {
	conn          *websocket.Conn
	chatServer    *ChatServer
	log           *log.Logger
	user          types.User
	connectionId  string
	connectedAt   time.Time
	send          chan *ServerMessage
	stop          chan struct{}
	typingLimiter *rate.Limiter
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:          conn,
		chatServer:    cs,
		log:           l,
		user:          user,
		connectionId:  uuid.NewString(),
		connectedAt:   Now(),
		send:          make(chan *ServerMessage, 256),
		stop:          make(chan struct{}),
		typingLimiter: rate.NewLimiter(typingRateLimit, typingBurst),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

// dispatch runs the requested operation on the connection's own goroutine.
// Store writes block here; fan-out to other sessions never does.
func (c *Client) dispatch(msg *ClientMessage) {
	// a backlogged session is refused before any store work happens,
	// while the buffer still has room to carry the refusal
	if len(c.send) >= cap(c.send)-1 {
		c.log.Println("send buffer full, refusing operation")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}

	switch {
	case msg.Publish != nil:
		c.chatServer.sendDirect(msg)
	case msg.GroupPublish != nil:
		c.chatServer.sendGroup(msg)
	case msg.Read != nil:
		c.chatServer.markRead(msg)
	case msg.Typing != nil:
		c.chatServer.forwardTyping(msg, msg.Typing, false)
	case msg.StopTyping != nil:
		c.chatServer.forwardTyping(msg, msg.StopTyping, true)
	case msg.JoinGroup != nil:
		c.chatServer.joinGroupChannel(msg)
	case msg.LeaveGroup != nil:
		c.chatServer.leaveGroupChannel(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Client) cleanup() {
	c.chatServer.UnregisterClient(c)
	c.stopClient()
}
