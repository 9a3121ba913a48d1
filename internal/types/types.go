package types

import (
	"slices"
	"strings"
	"time"
)

// RoleAdmin is the role literal granted to support staff by the identity
// service.
const RoleAdmin = "ROLE_ADMIN"

type MessageType string

const (
	MessageTypeJoin  MessageType = "JOIN"
	MessageTypeChat  MessageType = "CHAT"
	MessageTypeLeave MessageType = "LEAVE"
)

// ChatMessage is a single support-chat message. An empty Recipient means the
// message is user traffic addressed to the support staff; a non-empty
// Recipient is a staff reply to that user.
type ChatMessage struct {
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// Involves reports whether user is the sender or the recipient of the message.
func (m ChatMessage) Involves(user string) bool {
	return m.Sender == user || m.Recipient == user
}

// Notification is a browser-push notification owned by the backend store and
// delivered over the notification socket.
type Notification struct {
	Id           int64     `json:"id"`
	TargetUserId int64     `json:"target_user_id"`
	SenderUserId int64     `json:"sender_user_id"`
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	IsRead       bool      `json:"is_read"`
	Link         string    `json:"link,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims are the identity claims carried by a connection handshake. UserId is
// zero for anonymous visitors.
type Claims struct {
	UserId int64    `json:"user_id"`
	Roles  []string `json:"roles"`
}

func (c Claims) IsAdmin() bool {
	return slices.Contains(c.Roles, RoleAdmin)
}

// legacyUserPrefix is the display prefix the old web dashboard prepended to
// usernames before using them as channel keys.
const legacyUserPrefix = "사용자_"

// NormalizeUsername returns the canonical form of a username. The bare
// identifier is canonical: the legacy display prefix is stripped exactly once
// at the gateway boundary so registry, store and channel keys always agree.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimPrefix(name, legacyUserPrefix)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
