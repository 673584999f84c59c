package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // Pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_serializeMessage(t *testing.T) {
	message := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: 200,
			Data:         "test data",
		},
	}

	// Ensure the timestamp is in the expected format
	expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
		`","response":{"response_code":200,"data":"test data"}}`

	bytes, err := serializeMessage(message)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()

	select {
	case <-c.stop:
		// Channel is closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}

	// stopping twice must not panic
	c.stopClient()
}

func TestNewClient(t *testing.T) {
	db := &database.MockMessengerRepository{}
	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, db, su)

	user := types.User{Id: 1, Username: "testuser"}
	c := NewClient(user, nil, cs, cs.log)

	assert.Equal(t, user, c.user, "expected user to be set")
	assert.Equal(t, cs, c.chatServer, "expected chat server to be set")
	assert.NotEmpty(t, c.connectionId, "expected connection id to be assigned")
	assert.NotNil(t, c.send, "expected send channel to be initialized")
	assert.NotNil(t, c.stop, "expected stop channel to be initialized")
	assert.NotNil(t, c.typingLimiter, "expected typing limiter to be initialized")
}

func Test_dispatch_backlogged(t *testing.T) {
	db := &database.MockMessengerRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, db, su)

	c := newTestClient(cs, types.User{Id: 1, Username: "testuser"})
	for i := 0; i < cap(c.send)-1; i++ {
		c.send <- &ServerMessage{}
	}

	msg := &ClientMessage{BaseMessage: BaseMessage{Id: 9}, client: c}
	msg.Publish = &Publish{RecipientId: 2, Content: "hello"}
	c.dispatch(msg)

	// the repository mock has no expectations, so any store call would fail
	// the test: the operation must be refused before touching the store
	for i := 0; i < cap(c.send)-1; i++ {
		<-c.send
	}
	select {
	case got := <-c.send:
		assert.NotNil(t, got.Response, "expected refusal response")
		assert.Equal(t, http.StatusServiceUnavailable, got.Response.ResponseCode, "expected service unavailable")
		assert.Equal(t, 9, got.Id, "expected response to echo request id")
	default:
		t.Error("expected refusal queued in the reserved slot")
	}
}

func Test_dispatch_invalidMessage(t *testing.T) {
	db := &database.MockMessengerRepository{}
	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, db, su)

	c := newTestClient(cs, types.User{Id: 1, Username: "testuser"})

	// a frame with no operation set is rejected
	c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 7}, client: c})

	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Response, "expected error response")
		assert.Equal(t, 7, msg.Id, "expected response to echo request id")
	default:
		t.Error("expected error response for invalid message")
	}
}
