package database

import "time"

type MessengerRepository interface {
	Ping() error

	// accounts
	CreateAccount(params CreateAccountParams) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	ListAccounts(excludeId int) ([]Account, error)
	SearchAccounts(query string, excludeId int) ([]Account, error)
	SetPresence(accountId int, online bool, at time.Time) error

	// sessions (advisory mirror of the live registry)
	CreateSession(connectionId string, accountId int, connectedAt time.Time) error
	DeleteSession(connectionId string) error

	// conversations
	GetConversation(userA, userB int) (Conversation, error)
	GetConversationById(id int) (Conversation, error)
	CreateConversation(userA, userB int) (Conversation, error)
	TouchConversation(id int, at time.Time) error
	ListConversations(accountId int) ([]ConversationSummary, error)
	DeleteConversation(id int) error

	// groups
	CreateGroup(params CreateGroupParams) (Group, error)
	GetGroupById(id int) (Group, error)
	DeleteGroup(id int) error
	ListGroups(accountId int) ([]Group, error)
	ListGroupMembers(groupId int) ([]GroupMember, error)
	IsGroupMember(groupId, accountId int) bool
	IsGroupAdmin(groupId, accountId int) bool
	AddGroupMember(groupId, accountId int, isAdmin bool) (GroupMember, error)
	RemoveGroupMember(groupId, accountId int) error
	PromoteOldestMember(groupId int) error

	// messages
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(id int) (Message, error)
	MarkMessageRead(messageId int, at time.Time) error
	MarkConversationRead(conversationId, readerId int, at time.Time) error
	ListConversationMessages(conversationId, page, pageSize int) ([]Message, error)
	ListGroupMessages(groupId, page, pageSize int) ([]Message, error)
	SearchMessages(params SearchMessagesParams) ([]Message, int, error)

	// media
	CreateMedia(params CreateMediaParams) (Media, error)
	GetMediaById(id int) (Media, error)
	DeleteMedia(id int) error
	GetMediaOwnedBy(mediaIds []int, uploaderId int) ([]Media, error)
	AttachMediaToMessage(messageId, mediaId int) error
	ListMessageMedia(messageId int) ([]Media, error)

	// notifications
	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(accountId, page, pageSize int, unreadOnly bool) ([]Notification, error)
	CountUnreadNotifications(accountId int) (int, error)
	MarkNotificationRead(id, accountId int) error
	MarkAllNotificationsRead(accountId int) error
	DeleteNotification(id, accountId int) error
}
