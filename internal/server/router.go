package server

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

const (
	directMediaPreview = "Sent you media files"
	groupMediaPreview  = "Sent media files to the group"

	replyPreviewMaxLen = 100
)

// sendDirect routes a conversation-scoped message: resolve the
// conversation, persist, attach owned media, then fan out to the
// recipient's live sessions and echo a confirmation to the sender's own.
func (cs *ChatServer) sendDirect(msg *ClientMessage) {
	pub := msg.Publish
	c := msg.client

	if pub.Content == "" && len(pub.MediaIds) == 0 {
		c.queueMessage(ErrValidation(msg.Id, "message content cannot be empty"))
		return
	}

	conv, err := cs.resolveConversation(c.user.Id, pub.RecipientId)
	if err != nil {
		cs.log.Println("resolveConversation:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	kind := types.MessageKindText
	if len(pub.MediaIds) > 0 {
		kind = types.MessageKindMedia
	}

	dbMsg, err := cs.db.CreateMessage(database.CreateMessageParams{
		Content:        pub.Content,
		SenderId:       c.user.Id,
		ConversationId: conv.Id,
		Kind:           string(kind),
		ReplyToId:      pub.ReplyToId,
		SentAt:         msg.Timestamp,
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	media, err := cs.attachMedia(dbMsg.Id, pub.MediaIds, c.user)
	if err != nil {
		cs.log.Println("attachMedia:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if err := cs.db.TouchConversation(conv.Id, dbMsg.SentAt); err != nil {
		cs.log.Println("TouchConversation:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	hydrated := cs.hydrateMessage(dbMsg, c.user.Username, media)
	cs.stats.Incr("NumMessages")

	cs.pushToUser(pub.RecipientId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: dbMsg.SentAt},
		Message:     hydrated,
	})

	// every sender session gets the echo, the originating one included,
	// so multi-device senders stay in sync
	cs.pushToUser(c.user.Id, &ServerMessage{
		BaseMessage:  BaseMessage{Id: msg.Id, Timestamp: dbMsg.SentAt},
		Confirmation: hydrated,
	})

	preview := pub.Content
	if len(pub.MediaIds) > 0 {
		preview = directMediaPreview
	}
	cs.notifier.enqueue(&NotificationRequest{
		AccountId: pub.RecipientId,
		FromId:    c.user.Id,
		FromName:  c.user.Username,
		Title:     "New Message",
		Body:      preview,
		Kind:      types.NotificationNewMessage,
		RelatedId: dbMsg.Id,
	})
}

// sendGroup routes a group-scoped message. Membership is checked for the
// sender up front, and the delivery target set is the membership snapshot
// taken after the message is persisted, never a cached channel list.
func (cs *ChatServer) sendGroup(msg *ClientMessage) {
	pub := msg.GroupPublish
	c := msg.client

	if !cs.db.IsGroupMember(pub.GroupId, c.user.Id) {
		c.queueMessage(ErrNotAMember(msg.Id))
		return
	}

	if pub.Content == "" && len(pub.MediaIds) == 0 {
		c.queueMessage(ErrValidation(msg.Id, "message content cannot be empty"))
		return
	}

	kind := types.MessageKindText
	if len(pub.MediaIds) > 0 {
		kind = types.MessageKindMedia
	}

	dbMsg, err := cs.db.CreateMessage(database.CreateMessageParams{
		Content:   pub.Content,
		SenderId:  c.user.Id,
		GroupId:   pub.GroupId,
		Kind:      string(kind),
		ReplyToId: pub.ReplyToId,
		SentAt:    msg.Timestamp,
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	media, err := cs.attachMedia(dbMsg.Id, pub.MediaIds, c.user)
	if err != nil {
		cs.log.Println("attachMedia:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	members, err := cs.db.ListGroupMembers(pub.GroupId)
	if err != nil {
		cs.log.Println("ListGroupMembers:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	hydrated := cs.hydrateMessage(dbMsg, c.user.Username, media)
	cs.stats.Incr("NumMessages")

	push := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: dbMsg.SentAt},
		Message:     hydrated,
	}
	for _, member := range members {
		if member.AccountId == c.user.Id {
			continue
		}

		cs.pushToUser(member.AccountId, push)
	}

	cs.pushToUser(c.user.Id, &ServerMessage{
		BaseMessage:  BaseMessage{Id: msg.Id, Timestamp: dbMsg.SentAt},
		Confirmation: hydrated,
	})

	preview := pub.Content
	if len(pub.MediaIds) > 0 {
		preview = groupMediaPreview
	}
	for _, member := range members {
		if member.AccountId == c.user.Id {
			continue
		}

		cs.notifier.enqueue(&NotificationRequest{
			AccountId: member.AccountId,
			FromId:    c.user.Id,
			FromName:  c.user.Username,
			Title:     "New Group Message",
			Body:      preview,
			Kind:      types.NotificationNewGroupMessage,
			RelatedId: pub.GroupId,
		})
	}
}

// resolveConversation returns the single conversation for the unordered
// pair, creating it on first contact. The pair is normalized before any
// store call so both directions map to the same ordered unique key. Two
// racing first contacts then collapse onto one row: the loser's insert
// hits the constraint and is resolved by a re-read.
func (cs *ChatServer) resolveConversation(userA, userB int) (database.Conversation, error) {
	if userA > userB {
		userA, userB = userB, userA
	}

	conv, err := cs.db.GetConversation(userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return database.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	conv, err = cs.db.CreateConversation(userA, userB)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cs.db.GetConversation(userA, userB)
		}
		return database.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	return conv, nil
}

// attachMedia joins the sender-owned subset of mediaIds to the message.
// References to media uploaded by anyone else are dropped without failing
// the send.
func (cs *ChatServer) attachMedia(messageId int, mediaIds []int, sender types.User) ([]types.Media, error) {
	if len(mediaIds) == 0 {
		return nil, nil
	}

	owned, err := cs.db.GetMediaOwnedBy(mediaIds, sender.Id)
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}

	media := make([]types.Media, 0, len(owned))
	for _, m := range owned {
		if err := cs.db.AttachMediaToMessage(messageId, m.Id); err != nil {
			return nil, fmt.Errorf("attach media %d: %w", m.Id, err)
		}

		media = append(media, types.Media{
			Id:           m.Id,
			FileName:     m.FileName,
			Url:          m.StoredPath,
			ThumbnailUrl: m.ThumbnailPath,
			ContentType:  m.ContentType,
			Size:         m.SizeBytes,
			Kind:         types.MediaKind(m.Kind),
			UploaderId:   m.UploaderId,
			UploaderName: sender.Username,
			UploadedAt:   m.UploadedAt,
		})
	}

	return media, nil
}

// hydrateMessage builds the wire view of a stored message: sender display
// name, resolved media, and a one-level reply preview.
func (cs *ChatServer) hydrateMessage(m database.Message, senderName string, media []types.Media) *types.Message {
	hydrated := &types.Message{
		Id:             m.Id,
		Content:        m.Content,
		SenderId:       m.SenderId,
		SenderName:     senderName,
		ConversationId: m.ConversationId,
		GroupId:        m.GroupId,
		Kind:           types.MessageKind(m.Kind),
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		SentAt:         m.SentAt,
		Media:          media,
	}

	if m.ReplyToId != 0 {
		parent, err := cs.db.GetMessageById(m.ReplyToId)
		if err != nil {
			// the reply target may have been deleted; the message stands alone
			cs.log.Println("GetMessageById:", err)
			return hydrated
		}

		content := parent.Content
		if len(content) > replyPreviewMaxLen {
			content = content[:replyPreviewMaxLen]
		}
		hydrated.ReplyTo = &types.ReplyPreview{
			Id:         parent.Id,
			Content:    content,
			SenderId:   parent.SenderId,
			SenderName: parent.SenderName,
		}
	}

	return hydrated
}

// markRead flips a message's read state exactly once. The reader gets an
// ack either way; the read confirmation reaches the original sender's
// sessions only on the first transition. Non-participants get the same
// ack as a no-op so message existence is never leaked.
func (cs *ChatServer) markRead(msg *ClientMessage) {
	c := msg.client

	m, err := cs.db.GetMessageById(msg.Read.MessageId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			cs.log.Println("GetMessageById:", err)
		}
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	// only conversation messages carry read receipts
	if m.ConversationId == 0 {
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	conv, err := cs.db.GetConversationById(m.ConversationId)
	if err != nil {
		cs.log.Println("GetConversationById:", err)
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	if conv.User1Id != c.user.Id && conv.User2Id != c.user.Id {
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	if m.IsRead || m.SenderId == c.user.Id {
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	if err := cs.db.MarkMessageRead(m.Id, Now()); err != nil {
		cs.log.Println("MarkMessageRead:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, nil))

	cs.pushToUser(m.SenderId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Read: &ReadReceipt{MessageId: m.Id},
		},
	})
}

// forwardTyping relays an ephemeral typing signal to the recipient's live
// sessions. Nothing is persisted and the sender's limiter silently drops
// frames over the typing rate.
func (cs *ChatServer) forwardTyping(msg *ClientMessage, t *Typing, stopped bool) {
	c := msg.client

	if !c.typingLimiter.Allow() {
		return
	}

	cs.pushToUser(t.RecipientId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Notification: &Notification{
			Typing: &TypingEvent{
				UserId:  c.user.Id,
				Stopped: stopped,
			},
		},
	})
}

// joinGroupChannel acknowledges a group channel subscription. Delivery does
// not depend on it: the router resolves group membership from the store at
// send time.
func (cs *ChatServer) joinGroupChannel(msg *ClientMessage) {
	if !cs.db.IsGroupMember(msg.JoinGroup.GroupId, msg.client.user.Id) {
		msg.client.queueMessage(ErrNotAMember(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}

func (cs *ChatServer) leaveGroupChannel(msg *ClientMessage) {
	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}
