package server

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// admit places a client in the registry directly, bypassing the presence
// and session side effects of RegisterClient.
func admit(cs *ChatServer, c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	if cs.userMap[c.user.Id] == nil {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}
}

func clientMessage(c *Client, id int) *ClientMessage {
	return &ClientMessage{
		BaseMessage: BaseMessage{Id: id, Timestamp: Now()},
		client:      c,
	}
}

func TestChatServer_sendDirect(t *testing.T) {
	t.Run("delivers to recipient and confirms to sender", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		conv := database.Conversation{Id: 10, User1Id: 1, User2Id: 2}
		db.On("GetConversation", 1, 2).Return(conv, nil).Once()
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.Content == "hello" && p.SenderId == 1 && p.ConversationId == 10 && p.Kind == "text"
		})).Return(database.Message{Id: 5, Content: "hello", SenderId: 1, ConversationId: 10, Kind: "text"}, nil).Once()
		db.On("TouchConversation", 10, mock.Anything).Return(nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumMessages").Once()

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		recipient := newTestClient(cs, types.User{Id: 2, Username: "recipient"})
		admit(cs, sender)
		admit(cs, recipient)

		msg := clientMessage(sender, 1)
		msg.Publish = &Publish{RecipientId: 2, Content: "hello"}
		cs.sendDirect(msg)

		select {
		case got := <-recipient.send:
			assert.NotNil(t, got.Message, "expected message payload for recipient")
			assert.Equal(t, 5, got.Message.Id, "expected persisted message id")
			assert.Equal(t, "sender", got.Message.SenderName, "expected sender name hydrated")
		default:
			t.Fatal("expected recipient to receive message")
		}

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Confirmation, "expected confirmation for sender")
			assert.Equal(t, 1, got.Id, "expected confirmation to echo request id")
			assert.Equal(t, 5, got.Confirmation.Id, "expected persisted message id in confirmation")
		default:
			t.Fatal("expected sender to receive confirmation")
		}

		assert.Len(t, cs.notifier.queue, 1, "expected notification queued for recipient")
	})

	t.Run("rejects empty message", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		admit(cs, sender)

		msg := clientMessage(sender, 1)
		msg.Publish = &Publish{RecipientId: 2}
		cs.sendDirect(msg)

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Response, "expected error response")
			assert.Equal(t, http.StatusBadRequest, got.Response.ResponseCode, "expected validation error")
		default:
			t.Fatal("expected error response for sender")
		}
	})

	t.Run("offline recipient still gets persisted message", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		conv := database.Conversation{Id: 10, User1Id: 1, User2Id: 2}
		db.On("GetConversation", 1, 2).Return(conv, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: 5, ConversationId: 10, SenderId: 1}, nil).Once()
		db.On("TouchConversation", 10, mock.Anything).Return(nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumMessages").Once()

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		admit(cs, sender)

		msg := clientMessage(sender, 1)
		msg.Publish = &Publish{RecipientId: 2, Content: "hello"}
		cs.sendDirect(msg)

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Confirmation, "expected confirmation even with recipient offline")
		default:
			t.Fatal("expected confirmation for sender")
		}
	})

	t.Run("drops media not owned by sender", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		conv := database.Conversation{Id: 10, User1Id: 1, User2Id: 2}
		db.On("GetConversation", 1, 2).Return(conv, nil).Once()
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.Kind == "media"
		})).Return(database.Message{Id: 5, ConversationId: 10, SenderId: 1, Kind: "media"}, nil).Once()
		db.On("GetMediaOwnedBy", []int{7, 8}, 1).Return([]database.Media{
			{Id: 7, FileName: "pic.jpg", UploaderId: 1, Kind: "image"},
		}, nil).Once()
		db.On("AttachMediaToMessage", 5, 7).Return(nil).Once()
		db.On("TouchConversation", 10, mock.Anything).Return(nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumMessages").Once()

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		recipient := newTestClient(cs, types.User{Id: 2, Username: "recipient"})
		admit(cs, sender)
		admit(cs, recipient)

		msg := clientMessage(sender, 1)
		msg.Publish = &Publish{RecipientId: 2, Content: "look", MediaIds: []int{7, 8}}
		cs.sendDirect(msg)

		select {
		case got := <-recipient.send:
			assert.Len(t, got.Message.Media, 1, "expected only sender-owned media attached")
			assert.Equal(t, 7, got.Message.Media[0].Id, "expected owned media id")
			assert.Equal(t, types.MessageKindMedia, got.Message.Kind, "expected media message kind")
		default:
			t.Fatal("expected recipient to receive message")
		}
	})

	t.Run("persistence failure returns internal error and pushes nothing", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		conv := database.Conversation{Id: 10, User1Id: 1, User2Id: 2}
		db.On("GetConversation", 1, 2).Return(conv, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(database.Message{}, errors.New("insert failed")).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		recipient := newTestClient(cs, types.User{Id: 2, Username: "recipient"})
		admit(cs, sender)
		admit(cs, recipient)

		msg := clientMessage(sender, 1)
		msg.Publish = &Publish{RecipientId: 2, Content: "hello"}
		cs.sendDirect(msg)

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Response, "expected error response")
			assert.Equal(t, http.StatusInternalServerError, got.Response.ResponseCode, "expected internal error")
		default:
			t.Fatal("expected error response for sender")
		}

		assert.Empty(t, recipient.send, "expected nothing pushed to recipient")
	})
}

func TestChatServer_resolveConversation(t *testing.T) {
	t.Run("creates conversation on first contact", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetConversation", 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateConversation", 1, 2).Return(database.Conversation{Id: 10}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)

		conv, err := cs.resolveConversation(1, 2)
		assert.NoError(t, err, "expected no error resolving conversation")
		assert.Equal(t, 10, conv.Id, "expected created conversation")
	})

	t.Run("opposite directions resolve to the same ordered key", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		// first contact from user 2 toward user 1 must still hit the
		// normalized (1, 2) key, or racing first contacts from opposite
		// directions would each insert their own row
		db.On("GetConversation", 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateConversation", 1, 2).Return(database.Conversation{Id: 10, User1Id: 1, User2Id: 2}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)

		conv, err := cs.resolveConversation(2, 1)
		assert.NoError(t, err, "expected no error resolving conversation")
		assert.Equal(t, 10, conv.Id, "expected the normalized pair's conversation")
	})

	t.Run("losing a create race falls back to the winner's row", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetConversation", 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateConversation", 1, 2).Return(database.Conversation{}, &pq.Error{Code: "23505"}).Once()
		db.On("GetConversation", 1, 2).Return(database.Conversation{Id: 10}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)

		conv, err := cs.resolveConversation(1, 2)
		assert.NoError(t, err, "expected race to resolve without error")
		assert.Equal(t, 10, conv.Id, "expected winner's conversation row")
	})
}

func TestChatServer_sendGroup(t *testing.T) {
	t.Run("delivers to membership snapshot excluding sender", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("IsGroupMember", 3, 1).Return(true).Once()
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.GroupId == 3 && p.ConversationId == 0
		})).Return(database.Message{Id: 5, GroupId: 3, SenderId: 1, Content: "hi all"}, nil).Once()
		db.On("ListGroupMembers", 3).Return([]database.GroupMember{
			{AccountId: 1, Username: "sender"},
			{AccountId: 2, Username: "alice"},
			{AccountId: 4, Username: "bob"},
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumMessages").Once()

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		alice := newTestClient(cs, types.User{Id: 2, Username: "alice"})
		admit(cs, sender)
		admit(cs, alice)

		msg := clientMessage(sender, 1)
		msg.GroupPublish = &GroupPublish{GroupId: 3, Content: "hi all"}
		cs.sendGroup(msg)

		select {
		case got := <-alice.send:
			assert.NotNil(t, got.Message, "expected message for member")
			assert.Equal(t, 3, got.Message.GroupId, "expected group id set")
		default:
			t.Fatal("expected online member to receive message")
		}

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Confirmation, "expected confirmation for sender")
			assert.Nil(t, got.Message, "sender gets confirmation, not delivery")
		default:
			t.Fatal("expected sender to receive confirmation")
		}

		// one notification per member except the sender
		assert.Len(t, cs.notifier.queue, 2, "expected notification per other member")
	})

	t.Run("rejects non-member", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)
		db.On("IsGroupMember", 3, 1).Return(false).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		admit(cs, sender)

		msg := clientMessage(sender, 1)
		msg.GroupPublish = &GroupPublish{GroupId: 3, Content: "hi"}
		cs.sendGroup(msg)

		select {
		case got := <-sender.send:
			assert.Equal(t, http.StatusForbidden, got.Response.ResponseCode, "expected forbidden response")
		default:
			t.Fatal("expected error response for sender")
		}
	})
}

func TestChatServer_markRead(t *testing.T) {
	readMessage := func(c *Client, messageId int) *ClientMessage {
		msg := clientMessage(c, 1)
		msg.Read = &Read{MessageId: messageId}
		return msg
	}

	t.Run("first read flips state and notifies sender", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMessageById", 5).Return(database.Message{Id: 5, SenderId: 1, ConversationId: 10}, nil).Once()
		db.On("GetConversationById", 10).Return(database.Conversation{Id: 10, User1Id: 1, User2Id: 2}, nil).Once()
		db.On("MarkMessageRead", 5, mock.Anything).Return(nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		reader := newTestClient(cs, types.User{Id: 2, Username: "reader"})
		admit(cs, sender)
		admit(cs, reader)

		cs.markRead(readMessage(reader, 5))

		select {
		case got := <-reader.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected ack for reader")
		default:
			t.Fatal("expected ack for reader")
		}

		select {
		case got := <-sender.send:
			assert.NotNil(t, got.Notification.Read, "expected read receipt for sender")
			assert.Equal(t, 5, got.Notification.Read.MessageId, "expected receipt for the message")
		default:
			t.Fatal("expected read receipt for sender")
		}
	})

	t.Run("repeat read is acked without re-marking", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMessageById", 5).Return(database.Message{Id: 5, SenderId: 1, ConversationId: 10, IsRead: true}, nil).Once()
		db.On("GetConversationById", 10).Return(database.Conversation{Id: 10, User1Id: 1, User2Id: 2}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		reader := newTestClient(cs, types.User{Id: 2, Username: "reader"})
		admit(cs, sender)
		admit(cs, reader)

		cs.markRead(readMessage(reader, 5))

		select {
		case got := <-reader.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected ack for repeat read")
		default:
			t.Fatal("expected ack for reader")
		}

		assert.Empty(t, sender.send, "expected no receipt on repeat read")
	})

	t.Run("sender reading own message is a no-op", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMessageById", 5).Return(database.Message{Id: 5, SenderId: 1, ConversationId: 10}, nil).Once()
		db.On("GetConversationById", 10).Return(database.Conversation{Id: 10, User1Id: 1, User2Id: 2}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		sender := newTestClient(cs, types.User{Id: 1, Username: "sender"})
		admit(cs, sender)

		cs.markRead(readMessage(sender, 5))

		select {
		case got := <-sender.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected ack for own message")
		default:
			t.Fatal("expected ack for sender")
		}
	})

	t.Run("non-participant gets same ack as a no-op", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMessageById", 5).Return(database.Message{Id: 5, SenderId: 1, ConversationId: 10}, nil).Once()
		db.On("GetConversationById", 10).Return(database.Conversation{Id: 10, User1Id: 1, User2Id: 2}, nil).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		outsider := newTestClient(cs, types.User{Id: 9, Username: "outsider"})
		admit(cs, outsider)

		cs.markRead(readMessage(outsider, 5))

		select {
		case got := <-outsider.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected indistinguishable ack")
			assert.Empty(t, got.Response.Error, "expected no error detail leaked")
		default:
			t.Fatal("expected ack for outsider")
		}
	})

	t.Run("unknown message is acked", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMessageById", 99).Return(database.Message{}, sql.ErrNoRows).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		reader := newTestClient(cs, types.User{Id: 2, Username: "reader"})
		admit(cs, reader)

		cs.markRead(readMessage(reader, 99))

		select {
		case got := <-reader.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected ack for unknown message")
		default:
			t.Fatal("expected ack for reader")
		}
	})
}

func TestChatServer_forwardTyping(t *testing.T) {
	t.Run("relays typing to recipient sessions", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		su := &stats.MockStatsUpdater{}

		cs := newTestChatServer(t, db, su)
		typist := newTestClient(cs, types.User{Id: 1, Username: "typist"})
		recipient := newTestClient(cs, types.User{Id: 2, Username: "recipient"})
		admit(cs, typist)
		admit(cs, recipient)

		msg := clientMessage(typist, 0)
		msg.Typing = &Typing{RecipientId: 2}
		cs.forwardTyping(msg, msg.Typing, false)

		select {
		case got := <-recipient.send:
			assert.NotNil(t, got.Notification.Typing, "expected typing event")
			assert.Equal(t, 1, got.Notification.Typing.UserId, "expected typist's id")
			assert.False(t, got.Notification.Typing.Stopped, "expected active typing")
		default:
			t.Fatal("expected typing event for recipient")
		}

		msg.StopTyping = &Typing{RecipientId: 2}
		cs.forwardTyping(msg, msg.StopTyping, true)

		select {
		case got := <-recipient.send:
			assert.True(t, got.Notification.Typing.Stopped, "expected stop typing event")
		default:
			t.Fatal("expected stop typing event for recipient")
		}
	})

	t.Run("drops frames over the typing rate", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		su := &stats.MockStatsUpdater{}

		cs := newTestChatServer(t, db, su)
		typist := newTestClient(cs, types.User{Id: 1, Username: "typist"})
		recipient := newTestClient(cs, types.User{Id: 2, Username: "recipient"})
		admit(cs, typist)
		admit(cs, recipient)

		msg := clientMessage(typist, 0)
		msg.Typing = &Typing{RecipientId: 2}
		for i := 0; i < typingBurst*2; i++ {
			cs.forwardTyping(msg, msg.Typing, false)
		}

		assert.Len(t, recipient.send, typingBurst, "expected frames over the burst to be dropped")
	})
}

func TestChatServer_groupChannel(t *testing.T) {
	t.Run("join acks for members", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)
		db.On("IsGroupMember", 3, 1).Return(true).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		member := newTestClient(cs, types.User{Id: 1, Username: "member"})
		admit(cs, member)

		msg := clientMessage(member, 1)
		msg.JoinGroup = &GroupChannel{GroupId: 3}
		cs.joinGroupChannel(msg)

		select {
		case got := <-member.send:
			assert.Equal(t, http.StatusOK, got.Response.ResponseCode, "expected join ack")
		default:
			t.Fatal("expected ack for member")
		}
	})

	t.Run("join rejects non-members", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		defer db.AssertExpectations(t)
		db.On("IsGroupMember", 3, 1).Return(false).Once()

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		outsider := newTestClient(cs, types.User{Id: 1, Username: "outsider"})
		admit(cs, outsider)

		msg := clientMessage(outsider, 1)
		msg.JoinGroup = &GroupChannel{GroupId: 3}
		cs.joinGroupChannel(msg)

		select {
		case got := <-outsider.send:
			assert.Equal(t, http.StatusForbidden, got.Response.ResponseCode, "expected forbidden response")
		default:
			t.Fatal("expected error response for outsider")
		}
	})
}
