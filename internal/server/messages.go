package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the tagged union of client-to-server frames. Exactly one
// of the operation fields is set.
type ClientMessage struct {
	BaseMessage
	Publish      *Publish      `json:"publish,omitempty"`
	GroupPublish *GroupPublish `json:"group_publish,omitempty"`
	Read         *Read         `json:"read,omitempty"`
	Typing       *Typing       `json:"typing,omitempty"`
	StopTyping   *Typing       `json:"stop_typing,omitempty"`
	JoinGroup    *GroupChannel `json:"join_group,omitempty"`
	LeaveGroup   *GroupChannel `json:"leave_group,omitempty"`
	client       *Client       `json:"-"`
}

type Publish struct {
	RecipientId int    `json:"recipient_id"`
	Content     string `json:"content"`
	MediaIds    []int  `json:"media_ids,omitempty"`
	ReplyToId   int    `json:"reply_to_id,omitempty"`
}

type GroupPublish struct {
	GroupId   int    `json:"group_id"`
	Content   string `json:"content"`
	MediaIds  []int  `json:"media_ids,omitempty"`
	ReplyToId int    `json:"reply_to_id,omitempty"`
}

type Read struct {
	MessageId int `json:"message_id"`
}

type Typing struct {
	RecipientId int `json:"recipient_id"`
}

type GroupChannel struct {
	GroupId int `json:"group_id"`
}

// ServerMessage is the tagged union of server-to-client frames. Message
// carries an incoming direct or group message (GroupId discriminates),
// Confirmation echoes a sent message back to the sender's own sessions.
type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Confirmation *types.Message `json:"confirmation,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Presence *Presence           `json:"presence,omitempty"`
	Typing   *TypingEvent        `json:"typing,omitempty"`
	Read     *ReadReceipt        `json:"read,omitempty"`
	Alert    *types.Notification `json:"alert,omitempty"`
}

type Presence struct {
	UserId   int       `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

type TypingEvent struct {
	UserId  int  `json:"user_id"`
	Stopped bool `json:"stopped,omitempty"`
}

type ReadReceipt struct {
	MessageId int `json:"message_id"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrNotAMember(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "you are not a member of this group",
		},
	}
}

func ErrValidation(id int, reason string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        reason,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
