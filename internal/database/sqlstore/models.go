package sqlstore

import (
	"time"

	"github.com/nfrund/goby-chat/internal/domain"
)

// userModel maps the users table.
type userModel struct {
	UserID      int64  `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username    string `gorm:"column:username;size:64;uniqueIndex;not null"`
	DisplayName string `gorm:"column:display_name;size:64;not null"`
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toDomain() *domain.User {
	return &domain.User{ID: m.UserID, Username: m.Username, DisplayName: m.DisplayName}
}

// messageModel maps the messages table. DeletedAt is a plain pointer on purpose:
// gorm.DeletedAt would hide rows from GetMessage.
type messageModel struct {
	MsgID     int64      `gorm:"column:msg_id;primaryKey;autoIncrement"`
	UserID    int64      `gorm:"column:user_id;not null;index"`
	User      userModel  `gorm:"foreignKey:UserID;references:UserID"`
	Message   string     `gorm:"column:message;type:text;not null"`
	ImageURL  *string    `gorm:"column:image_url;size:512"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index:idx_messages_active,priority:1"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}

func (messageModel) TableName() string { return "messages" }

func (m *messageModel) toDomain() *domain.Message {
	return &domain.Message{
		ID:          m.MsgID,
		UserID:      m.UserID,
		Username:    m.User.Username,
		DisplayName: m.User.DisplayName,
		Text:        m.Message,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
		IsDeleted:   m.IsDeleted,
		DeletedAt:   m.DeletedAt,
	}
}
