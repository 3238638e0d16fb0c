package chat

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/elishakaranja/Mindset-coach/internal/users"
)

// Role is the closed speaker tag of a stored turn. Only "user" and
// "assistant" are ever written or accepted from the database.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAssistant
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	}
	return 0, fmt.Errorf("invalid message role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) Value() (driver.Value, error) {
	if r != RoleUser && r != RoleAssistant {
		return nil, fmt.Errorf("invalid message role %d", uint8(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) MarshalText() ([]byte, error) {
	if _, err := r.Value(); err != nil {
		return nil, err
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Conversation struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64      `gorm:"index;not null" json:"-"`
	User      *users.User `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Messages  []Message   `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is one immutable turn. Within a conversation turns are ordered by
// (created_at, id).
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;index:idx_messages_conv_created,priority:1" json:"conversation_id"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conv_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

type ConversationSummary struct {
	ID           uint64    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}
