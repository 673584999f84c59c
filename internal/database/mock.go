package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMessengerRepository struct {
	mock.Mock
}

func (m *MockMessengerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) ListAccounts(excludeId int) ([]Account, error) {
	args := m.Called(excludeId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessengerRepository) SearchAccounts(query string, excludeId int) ([]Account, error) {
	args := m.Called(query, excludeId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessengerRepository) SetPresence(accountId int, online bool, at time.Time) error {
	args := m.Called(accountId, online, at)
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateSession(connectionId string, accountId int, connectedAt time.Time) error {
	args := m.Called(connectionId, accountId, connectedAt)
	return args.Error(0)
}
func (m *MockMessengerRepository) DeleteSession(connectionId string) error {
	args := m.Called(connectionId)
	return args.Error(0)
}
func (m *MockMessengerRepository) GetConversation(userA, userB int) (Conversation, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessengerRepository) GetConversationById(id int) (Conversation, error) {
	args := m.Called(id)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessengerRepository) CreateConversation(userA, userB int) (Conversation, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessengerRepository) TouchConversation(id int, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}
func (m *MockMessengerRepository) ListConversations(accountId int) ([]ConversationSummary, error) {
	args := m.Called(accountId)
	return args.Get(0).([]ConversationSummary), args.Error(1)
}
func (m *MockMessengerRepository) DeleteConversation(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateGroup(params CreateGroupParams) (Group, error) {
	args := m.Called(params)
	return args.Get(0).(Group), args.Error(1)
}
func (m *MockMessengerRepository) GetGroupById(id int) (Group, error) {
	args := m.Called(id)
	return args.Get(0).(Group), args.Error(1)
}
func (m *MockMessengerRepository) DeleteGroup(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockMessengerRepository) ListGroups(accountId int) ([]Group, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Group), args.Error(1)
}
func (m *MockMessengerRepository) ListGroupMembers(groupId int) ([]GroupMember, error) {
	args := m.Called(groupId)
	return args.Get(0).([]GroupMember), args.Error(1)
}
func (m *MockMessengerRepository) IsGroupMember(groupId, accountId int) bool {
	args := m.Called(groupId, accountId)
	return args.Bool(0)
}
func (m *MockMessengerRepository) IsGroupAdmin(groupId, accountId int) bool {
	args := m.Called(groupId, accountId)
	return args.Bool(0)
}
func (m *MockMessengerRepository) AddGroupMember(groupId, accountId int, isAdmin bool) (GroupMember, error) {
	args := m.Called(groupId, accountId, isAdmin)
	return args.Get(0).(GroupMember), args.Error(1)
}
func (m *MockMessengerRepository) RemoveGroupMember(groupId, accountId int) error {
	args := m.Called(groupId, accountId)
	return args.Error(0)
}
func (m *MockMessengerRepository) PromoteOldestMember(groupId int) error {
	args := m.Called(groupId)
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) GetMessageById(id int) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) MarkMessageRead(messageId int, at time.Time) error {
	args := m.Called(messageId, at)
	return args.Error(0)
}
func (m *MockMessengerRepository) MarkConversationRead(conversationId, readerId int, at time.Time) error {
	args := m.Called(conversationId, readerId, at)
	return args.Error(0)
}
func (m *MockMessengerRepository) ListConversationMessages(conversationId, page, pageSize int) ([]Message, error) {
	args := m.Called(conversationId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessengerRepository) ListGroupMessages(groupId, page, pageSize int) ([]Message, error) {
	args := m.Called(groupId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessengerRepository) SearchMessages(params SearchMessagesParams) ([]Message, int, error) {
	args := m.Called(params)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}
func (m *MockMessengerRepository) CreateMedia(params CreateMediaParams) (Media, error) {
	args := m.Called(params)
	return args.Get(0).(Media), args.Error(1)
}
func (m *MockMessengerRepository) GetMediaById(id int) (Media, error) {
	args := m.Called(id)
	return args.Get(0).(Media), args.Error(1)
}
func (m *MockMessengerRepository) DeleteMedia(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockMessengerRepository) GetMediaOwnedBy(mediaIds []int, uploaderId int) ([]Media, error) {
	args := m.Called(mediaIds, uploaderId)
	return args.Get(0).([]Media), args.Error(1)
}
func (m *MockMessengerRepository) AttachMediaToMessage(messageId, mediaId int) error {
	args := m.Called(messageId, mediaId)
	return args.Error(0)
}
func (m *MockMessengerRepository) ListMessageMedia(messageId int) ([]Media, error) {
	args := m.Called(messageId)
	return args.Get(0).([]Media), args.Error(1)
}
func (m *MockMessengerRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockMessengerRepository) ListNotifications(accountId, page, pageSize int, unreadOnly bool) ([]Notification, error) {
	args := m.Called(accountId, page, pageSize, unreadOnly)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockMessengerRepository) CountUnreadNotifications(accountId int) (int, error) {
	args := m.Called(accountId)
	return args.Int(0), args.Error(1)
}
func (m *MockMessengerRepository) MarkNotificationRead(id, accountId int) error {
	args := m.Called(id, accountId)
	return args.Error(0)
}
func (m *MockMessengerRepository) MarkAllNotificationsRead(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockMessengerRepository) DeleteNotification(id, accountId int) error {
	args := m.Called(id, accountId)
	return args.Error(0)
}
