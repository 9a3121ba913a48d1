package chat

import (
	"github.com/craftmall/communication/internal/types"
)

// Outbound event names. Clients treat every update_online_users payload as a
// full roster replacement, not a delta.
const (
	EventChatMessage       = "chat_message"
	EventAdminReply        = "admin_reply"
	EventUserMessage       = "user_message"
	EventUpdateOnlineUsers = "update_online_users"
	EventChatHistory       = "chat_history"
	EventOnlineUsers       = "online_users"
	EventAllChatUsers      = "all_chat_users"
	EventUserLastMessage   = "user_last_message"
)

// ClientMessage is the inbound event envelope. Exactly one of the pointer
// fields is set per frame.
type ClientMessage struct {
	JoinChat           *JoinChat          `json:"join_chat,omitempty"`
	JoinAsAdmin        *JoinAsAdmin       `json:"join_as_admin,omitempty"`
	SendMessage        *types.ChatMessage `json:"send_message,omitempty"`
	GetHistory         *UserRef           `json:"get_history,omitempty"`
	GetOnlineUsers     *GetOnlineUsers    `json:"get_online_users,omitempty"`
	GetAllChatUsers    *GetAllChatUsers   `json:"get_all_chat_users,omitempty"`
	GetUserLastMessage *UserRef           `json:"get_user_last_message,omitempty"`
}

type JoinChat struct {
	Sender string `json:"sender"`
}

type JoinAsAdmin struct{}

type GetOnlineUsers struct{}

type GetAllChatUsers struct{}

type UserRef struct {
	UserId string `json:"user_id"`
}

// HistoryPayload answers get_history and the history push on join_chat.
type HistoryPayload struct {
	UserId  string              `json:"user_id"`
	History []types.ChatMessage `json:"history"`
}

// LastMessagePayload answers get_user_last_message. LastMessage is nil when
// the user has never chatted.
type LastMessagePayload struct {
	UserId      string             `json:"user_id"`
	LastMessage *types.ChatMessage `json:"last_message"`
}
