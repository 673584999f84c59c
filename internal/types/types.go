package types

import (
	"time"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindMedia  MessageKind = "media"
	MessageKindSystem MessageKind = "system"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type NotificationKind string

const (
	NotificationNewMessage      NotificationKind = "new_message"
	NotificationNewGroupMessage NotificationKind = "new_group_message"
	NotificationGroupInvite     NotificationKind = "group_invite"
	NotificationPresence        NotificationKind = "presence"
	NotificationReaction        NotificationKind = "reaction"
	NotificationMedia           NotificationKind = "media"
	NotificationProfile         NotificationKind = "profile"
)

type User struct {
	Id           int        `json:"id"`
	Username     string     `json:"username"`
	EmailAddress string     `json:"email_address,omitempty"`
	FullName     string     `json:"full_name,omitempty"`
	Password     string     `json:"-"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty"`
}

// Conversation is the caller-facing view of a direct-message thread:
// the other participant plus a preview of the latest activity.
type Conversation struct {
	Id            int        `json:"id"`
	OtherUser     User       `json:"other_user"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
}

type Media struct {
	Id           int       `json:"id"`
	FileName     string    `json:"file_name"`
	Url          string    `json:"url"`
	ThumbnailUrl string    `json:"thumbnail_url,omitempty"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Kind         MediaKind `json:"kind"`
	UploaderId   int       `json:"uploader_id"`
	UploaderName string    `json:"uploader_name,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at,omitempty"`
}

// ReplyPreview is a single-level view of the message a reply refers to.
// The chain is never resolved further than one hop.
type ReplyPreview struct {
	Id         int    `json:"id"`
	Content    string `json:"content"`
	SenderId   int    `json:"sender_id"`
	SenderName string `json:"sender_name"`
}

type Message struct {
	Id             int           `json:"id"`
	Content        string        `json:"content"`
	SenderId       int           `json:"sender_id"`
	SenderName     string        `json:"sender_name"`
	ConversationId int           `json:"conversation_id,omitempty"`
	GroupId        int           `json:"group_id,omitempty"`
	Kind           MessageKind   `json:"kind"`
	IsRead         bool          `json:"is_read"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	SentAt         time.Time     `json:"sent_at"`
	Media          []Media       `json:"media,omitempty"`
	ReplyTo        *ReplyPreview `json:"reply_to,omitempty"`
}

type GroupMember struct {
	UserId   int       `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	IsOnline bool      `json:"is_online"`
	JoinedAt time.Time `json:"joined_at"`
}

type Group struct {
	Id          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CreatorId   int           `json:"creator_id"`
	Members     []GroupMember `json:"members,omitempty"`
	CreatedAt   time.Time     `json:"created_at,omitempty"`
}

type Notification struct {
	Id           int              `json:"id"`
	Title        string           `json:"title"`
	Body         string           `json:"body,omitempty"`
	Kind         NotificationKind `json:"kind"`
	IsRead       bool             `json:"is_read"`
	FromUserId   int              `json:"from_user_id,omitempty"`
	FromUserName string           `json:"from_user_name,omitempty"`
	RelatedId    int              `json:"related_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
