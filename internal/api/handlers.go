package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

func (s *MessengerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *MessengerApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Write([]byte("OK"))
}

func pathId(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

func pageParams(r *http.Request) (int, int, error) {
	var page, pageSize int
	var err error

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil {
			return 0, 0, err
		}
	}

	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		pageSize, err = strconv.Atoi(sizeStr)
		if err != nil {
			return 0, 0, err
		}
	}

	return page, pageSize, nil
}

// listUsers returns the directory, excluding the caller. A q parameter
// narrows it to usernames and full names matching the query.
func (s *MessengerApp) listUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var accounts []database.Account
	var err error

	if q := r.URL.Query().Get("q"); q != "" {
		accounts, err = s.db.SearchAccounts(q, userId)
	} else {
		accounts, err = s.db.ListAccounts(userId)
	}
	if err != nil {
		s.log.Println("list accounts:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, userResponse(a))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *MessengerApp) getUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userResponse(account))
}

func (s *MessengerApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summaries, err := s.db.ListConversations(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversations := make([]types.Conversation, 0, len(summaries))
	for _, c := range summaries {
		conversations = append(conversations, types.Conversation{
			Id: c.Id,
			OtherUser: types.User{
				Id:       c.OtherUserId,
				Username: c.OtherUsername,
				IsOnline: c.OtherOnline,
			},
			LastMessage:   c.LastMessage,
			LastMessageAt: c.LastMessageAt,
			UnreadCount:   c.UnreadCount,
			CreatedAt:     c.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, conversations)
}

// getConversationMessages pages backwards through history. The store
// returns newest first; the page is reversed so clients render oldest
// to newest.
func (s *MessengerApp) getConversationMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversationById(conversationId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if conv.User1Id != userId && conv.User2Id != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.ListConversationMessages(conversationId, page, pageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.messagesResponse(messages))
}

func (s *MessengerApp) getGroupMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	groupId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsGroupMember(groupId, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.ListGroupMessages(groupId, page, pageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.messagesResponse(messages))
}

// messagesResponse converts a newest-first page of stored messages into
// the oldest-first wire form, hydrating media for media messages.
func (s *MessengerApp) messagesResponse(messages []database.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		out = append(out, s.messageResponse(messages[i]))
	}

	return out
}

func (s *MessengerApp) messageResponse(m database.Message) types.Message {
	msg := types.Message{
		Id:             m.Id,
		Content:        m.Content,
		SenderId:       m.SenderId,
		SenderName:     m.SenderName,
		ConversationId: m.ConversationId,
		GroupId:        m.GroupId,
		Kind:           types.MessageKind(m.Kind),
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		SentAt:         m.SentAt,
	}

	if msg.Kind == types.MessageKindMedia {
		media, err := s.db.ListMessageMedia(m.Id)
		if err != nil {
			s.log.Println("list message media:", err)
		}
		for _, md := range media {
			msg.Media = append(msg.Media, mediaResponse(md))
		}
	}

	if m.ReplyToId != 0 {
		parent, err := s.db.GetMessageById(m.ReplyToId)
		if err == nil {
			content := parent.Content
			if len(content) > 100 {
				content = content[:100]
			}
			msg.ReplyTo = &types.ReplyPreview{
				Id:         parent.Id,
				Content:    content,
				SenderId:   parent.SenderId,
				SenderName: parent.SenderName,
			}
		}
	}

	return msg
}

// markMessageRead is the HTTP twin of the read frame on the socket: it is
// idempotent, skips the sender's own messages, and answers identically
// whether or not the caller was allowed to mark the message.
func (s *MessengerApp) markMessageRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	m, err := s.db.GetMessageById(messageId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Println("get message:", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if m.ConversationId == 0 || m.IsRead || m.SenderId == userId {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	conv, err := s.db.GetConversationById(m.ConversationId)
	if err != nil || (conv.User1Id != userId && conv.User2Id != userId) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.db.MarkMessageRead(m.Id, time.Now().UTC()); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.PushReadReceipt(m.SenderId, m.Id)

	w.WriteHeader(http.StatusNoContent)
}

func (s *MessengerApp) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversationById(conversationId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if conv.User1Id != userId && conv.User2Id != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteConversation(conv.Id); err != nil {
		s.log.Println("delete conversation:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// markConversationRead marks every unread message addressed to the caller
// in one pass, for catching up after reconnect.
func (s *MessengerApp) markConversationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversationById(conversationId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if conv.User1Id != userId && conv.User2Id != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkConversationRead(conversationId, userId, time.Now().UTC()); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SearchMessagesResponse struct {
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
}

// searchMessages searches message content across everything the caller
// participates in, with optional conversation, group, sender, and time
// range filters.
func (s *MessengerApp) searchMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		errResp := NewValidationError("search query is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.SearchMessagesParams{
		AccountId: userId,
		Query:     query,
		Page:      page,
		PageSize:  pageSize,
	}

	for name, dst := range map[string]*int{
		"conversation_id": &params.ConversationId,
		"group_id":        &params.GroupId,
		"sender_id":       &params.SenderId,
	} {
		if v := r.URL.Query().Get(name); v != "" {
			*dst, err = strconv.Atoi(v)
			if err != nil {
				errResp := NewBadRequestError()
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}
	}

	for name, dst := range map[string]**time.Time{
		"from": &params.From,
		"to":   &params.To,
	} {
		if v := r.URL.Query().Get(name); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				errResp := NewBadRequestError()
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
			*dst = &ts
		}
	}

	messages, total, err := s.db.SearchMessages(params)
	if err != nil {
		s.log.Println("search messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := SearchMessagesResponse{
		Messages: make([]types.Message, 0, len(messages)),
		Total:    total,
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, s.messageResponse(m))
	}

	s.writeJson(w, http.StatusOK, resp)
}
