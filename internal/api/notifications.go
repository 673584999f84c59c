package api

import (
	"net/http"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

func (s *MessengerApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.db.ListNotifications(userId, page, pageSize, unreadOnly)
	if err != nil {
		s.log.Println("list notifications:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.Notification, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse(n))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *MessengerApp) unreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.CountUnreadNotifications(userId)
	if err != nil {
		s.log.Println("count unread notifications:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int{"count": count})
}

// markNotificationRead is scoped to the caller's own notifications; the
// store ignores ids belonging to anyone else.
func (s *MessengerApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
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

	if err := s.db.MarkNotificationRead(id, userId); err != nil {
		s.log.Println("mark notification read:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *MessengerApp) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkAllNotificationsRead(userId); err != nil {
		s.log.Println("mark all notifications read:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *MessengerApp) deleteNotification(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
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

	if err := s.db.DeleteNotification(id, userId); err != nil {
		s.log.Println("delete notification:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func notificationResponse(n database.Notification) types.Notification {
	return types.Notification{
		Id:           n.Id,
		Title:        n.Title,
		Body:         n.Body,
		Kind:         types.NotificationKind(n.Kind),
		IsRead:       n.IsRead,
		FromUserId:   n.FromAccountId,
		FromUserName: n.FromUsername,
		RelatedId:    n.RelatedId,
		CreatedAt:    n.CreatedAt,
	}
}
