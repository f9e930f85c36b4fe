package message

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// Message is immutable once sent, except for the read flag which flips when
// the receiver opens the conversation.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	IsRead     bool      `json:"is_read"`
}

// Conversation is the per-counterpart inbox entry: the most recent message
// exchanged with them plus an unread counter.
type Conversation struct {
	PartnerID   string    `json:"partner_id"`
	PartnerName string    `json:"partner_name"`
	PartnerRole user.Role `json:"partner_role"`
	LastMessage Message   `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
}

// Contact is a user the caller is allowed to message.
type Contact struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role user.Role `json:"role"`
}

// NewMessage contains information needed to send a Message.
type NewMessage struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

func (nm *NewMessage) Validate() error {
	nm.Content = core.CleanString(nm.Content)
	return core.Validate.Struct(nm)
}
