package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	FullName     string
	PasswordHash string
	IsOnline     bool
	LastSeen     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the durable mirror of an in-memory connection record. It is
// advisory: the registry in internal/server is the authority on liveness.
type Session struct {
	Id           int
	ConnectionId string
	AccountId    int
	ConnectedAt  time.Time
}

type Conversation struct {
	Id            int
	User1Id       int
	User2Id       int
	CreatedAt     time.Time
	LastMessageAt *time.Time
}

// ConversationSummary backs the conversation list endpoint: one row per
// conversation with the other participant and unread/preview fields
// denormalized by the query.
type ConversationSummary struct {
	Id            int
	OtherUserId   int
	OtherUsername string
	OtherOnline   bool
	LastMessage   string
	LastMessageAt *time.Time
	UnreadCount   int
	CreatedAt     time.Time
}

type Group struct {
	Id          int
	Name        string
	Description string
	CreatorId   int
	CreatedAt   time.Time
}

type GroupMember struct {
	Id        int
	GroupId   int
	AccountId int
	Username  string
	IsOnline  bool
	IsAdmin   bool
	JoinedAt  time.Time
}

// Message carries exactly one of ConversationId/GroupId; zero means unset.
// The wire protocol keeps the two scopes in separate frame types, so only
// the store sees the pair.
type Message struct {
	Id             int
	Content        string
	SenderId       int
	SenderName     string
	ConversationId int
	GroupId        int
	Kind           string
	ReplyToId      int
	IsRead         bool
	ReadAt         *time.Time
	SentAt         time.Time
}

type Media struct {
	Id            int
	FileName      string
	StoredPath    string
	ThumbnailPath string
	ContentType   string
	SizeBytes     int64
	Kind          string
	UploaderId    int
	UploaderName  string
	UploadedAt    time.Time
}

type Notification struct {
	Id            int
	AccountId     int
	FromAccountId int
	FromUsername  string
	Title         string
	Body          string
	Kind          string
	RelatedId     int
	IsRead        bool
	CreatedAt     time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	FullName     string
	PasswordHash string
}

type UpdateAccountParams struct {
	AccountId    int
	Username     string
	FullName     string
	PasswordHash string
}

type CreateGroupParams struct {
	Name        string
	Description string
	CreatorId   int
	MemberIds   []int
}

type CreateMessageParams struct {
	Content        string
	SenderId       int
	ConversationId int
	GroupId        int
	Kind           string
	ReplyToId      int
	SentAt         time.Time
}

type CreateMediaParams struct {
	FileName      string
	StoredPath    string
	ThumbnailPath string
	ContentType   string
	SizeBytes     int64
	Kind          string
	UploaderId    int
}

type CreateNotificationParams struct {
	AccountId     int
	FromAccountId int
	Title         string
	Body          string
	Kind          string
	RelatedId     int
}

type SearchMessagesParams struct {
	AccountId      int
	Query          string
	ConversationId int
	GroupId        int
	SenderId       int
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}
