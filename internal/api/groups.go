package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/types"
)

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberIds   []int  `json:"member_ids"`
}

type AddGroupMemberRequest struct {
	UserId  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

func (s *MessengerApp) createGroup(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Name == "" {
		errResp := NewValidationError("group name is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	creator, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	group, err := s.db.CreateGroup(database.CreateGroupParams{
		Name:        req.Name,
		Description: req.Description,
		CreatorId:   userId,
		MemberIds:   req.MemberIds,
	})
	if err != nil {
		s.log.Println("create group:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, memberId := range req.MemberIds {
		if memberId == userId {
			continue
		}

		s.cs.Notify(&server.NotificationRequest{
			AccountId: memberId,
			FromId:    userId,
			FromName:  creator.Username,
			Title:     "Group Invite",
			Body:      "You were added to " + group.Name,
			Kind:      types.NotificationGroupInvite,
			RelatedId: group.Id,
		})
	}

	s.writeJson(w, http.StatusCreated, s.groupResponse(group, true))
}

func (s *MessengerApp) listGroups(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	groups, err := s.db.ListGroups(userId)
	if err != nil {
		s.log.Println("list groups:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.Group, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, s.groupResponse(g, false))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *MessengerApp) getGroup(w http.ResponseWriter, r *http.Request) {
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

	group, err := s.db.GetGroupById(groupId)
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

	if !s.db.IsGroupMember(groupId, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.groupResponse(group, true))
}

func (s *MessengerApp) deleteGroup(w http.ResponseWriter, r *http.Request) {
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

	if _, err := s.db.GetGroupById(groupId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsGroupAdmin(groupId, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteGroup(groupId); err != nil {
		s.log.Println("delete group:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *MessengerApp) addGroupMember(w http.ResponseWriter, r *http.Request) {
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

	var req AddGroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	group, err := s.db.GetGroupById(groupId)
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

	if !s.db.IsGroupAdmin(groupId, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	member, err := s.db.AddGroupMember(groupId, req.UserId, req.IsAdmin)
	if err != nil {
		var errResp *ApiError
		if database.IsUniqueViolation(err) {
			errResp = NewConflictError("user is already a member")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inviter, err := s.db.GetAccountById(userId)
	if err == nil {
		s.cs.Notify(&server.NotificationRequest{
			AccountId: req.UserId,
			FromId:    userId,
			FromName:  inviter.Username,
			Title:     "Group Invite",
			Body:      "You were added to " + group.Name,
			Kind:      types.NotificationGroupInvite,
			RelatedId: group.Id,
		})
	}

	s.writeJson(w, http.StatusCreated, memberResponse(member))
}

// removeGroupMember handles both an admin removing someone and a member
// leaving on their own. If the departing member was the only admin, the
// longest-standing remaining member is promoted so the group is never
// left without one. An emptied group is deleted outright.
func (s *MessengerApp) removeGroupMember(w http.ResponseWriter, r *http.Request) {
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

	memberId, err := pathId(r, "userId")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetGroupById(groupId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if memberId != userId && !s.db.IsGroupAdmin(groupId, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsGroupMember(groupId, memberId) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.RemoveGroupMember(groupId, memberId); err != nil {
		s.log.Println("remove group member:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	remaining, err := s.db.ListGroupMembers(groupId)
	if err != nil {
		s.log.Println("list group members:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if len(remaining) == 0 {
		if err := s.db.DeleteGroup(groupId); err != nil {
			s.log.Println("delete empty group:", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	hasAdmin := false
	for _, m := range remaining {
		if m.IsAdmin {
			hasAdmin = true
			break
		}
	}
	if !hasAdmin {
		if err := s.db.PromoteOldestMember(groupId); err != nil {
			s.log.Println("promote oldest member:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *MessengerApp) groupResponse(g database.Group, withMembers bool) types.Group {
	group := types.Group{
		Id:          g.Id,
		Name:        g.Name,
		Description: g.Description,
		CreatorId:   g.CreatorId,
		CreatedAt:   g.CreatedAt,
	}

	if withMembers {
		members, err := s.db.ListGroupMembers(g.Id)
		if err != nil {
			s.log.Println("list group members:", err)
			return group
		}
		for _, m := range members {
			group.Members = append(group.Members, memberResponse(m))
		}
	}

	return group
}

func memberResponse(m database.GroupMember) types.GroupMember {
	return types.GroupMember{
		UserId:   m.AccountId,
		Username: m.Username,
		IsAdmin:  m.IsAdmin,
		IsOnline: m.IsOnline,
		JoinedAt: m.JoinedAt,
	}
}
