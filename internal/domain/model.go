package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ChatModel is the GORM model for chats table.
type ChatModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Name      *string   `gorm:"type:varchar(200)"`
	Picture   string    `gorm:"type:varchar(500)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ChatModel.
func (ChatModel) TableName() string {
	return "chats"
}

// ToDomain converts ChatModel to domain Chat.
func (m *ChatModel) ToDomain() *Chat {
	return &Chat{
		ID:        m.ID,
		Name:      m.Name,
		Picture:   m.Picture,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ChatToModel converts domain Chat to ChatModel.
func ChatToModel(c *Chat) *ChatModel {
	return &ChatModel{
		ID:        c.ID,
		Name:      c.Name,
		Picture:   c.Picture,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ParticipantModel is the GORM model for chat_participants table.
// The composite primary key keeps (chat_id, user_id) unique.
type ParticipantModel struct {
	ChatID    string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey;index"`
	IsAdmin   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "chat_participants"
}

// ToDomain converts ParticipantModel to domain Participant.
func (m *ParticipantModel) ToDomain() Participant {
	return Participant{ChatID: m.ChatID, UserID: m.UserID, IsAdmin: m.IsAdmin}
}

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID        string    `gorm:"type:varchar(26);primaryKey"`
	ChatID    string    `gorm:"type:varchar(36);index:idx_messages_chat_created,priority:1;not null"`
	SenderID  string    `gorm:"type:varchar(36);index;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_chat_created,priority:2"`
	UpdatedAt time.Time
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
}

// NotificationModel is the GORM model for notifications table.
type NotificationModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	UserID    string         `gorm:"type:varchar(36);index;not null"`
	Type      string         `gorm:"type:varchar(40);not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	IsRead    bool           `gorm:"not null;default:false;index"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for NotificationModel.
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts NotificationModel to domain Notification.
func (m *NotificationModel) ToDomain() *Notification {
	return &Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      m.Type,
		Payload:   json.RawMessage(m.Payload),
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

// NotificationToModel converts domain Notification to NotificationModel.
func NotificationToModel(n *Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Payload:   datatypes.JSON(n.Payload),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// UserModel is the GORM model for the users read model. Rows are written
// only when the identity provider's principal is first seen or renamed.
type UserModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	Name           string    `gorm:"type:varchar(100);index;not null"`
	Email          string    `gorm:"type:varchar(255);index"`
	ProfilePicture string    `gorm:"type:varchar(500)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		ProfilePicture: m.ProfilePicture,
		CreatedAt:      m.CreatedAt,
	}
}

// UserToModel converts domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}

// Models lists every model for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&ChatModel{},
		&ParticipantModel{},
		&MessageModel{},
		&NotificationModel{},
		&UserModel{},
	}
}
