package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultHistoryLimit is the number of messages returned when no limit is given.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps a single listing.
const MaxHistoryLimit = 200

// validatorInstance is shared so struct metadata is cached once.
var validatorInstance = validator.New()

// Message is a chat post. It is immutable apart from the soft-delete fields.
type Message struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Text        string     `json:"text"`
	ImageURL    *string    `json:"image_url"`
	CreatedAt   time.Time  `json:"created_at"`
	IsDeleted   bool       `json:"is_deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Draft is a message as submitted by a client, before persistence.
type Draft struct {
	Text     string `validate:"max=4000"`
	ImageURL string `validate:"omitempty,max=512"`
}

// NewDraft trims the submitted fields and validates them. At least one of text and
// image URL must be present.
func NewDraft(text, imageURL string) (*Draft, error) {
	d := &Draft{
		Text:     strings.TrimSpace(text),
		ImageURL: strings.TrimSpace(imageURL),
	}
	if d.Text == "" && d.ImageURL == "" {
		return nil, Validation("submit", CodeMessageEmpty)
	}
	if err := validatorInstance.Struct(d); err != nil {
		code := CodeMessageTooLong
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "ImageURL" {
			code = CodeImageURLInvalid
		}
		return nil, NewError(ErrValidation, code, "submit", err)
	}
	return d, nil
}

// ImageRef returns the image URL as the nullable form stored on a Message.
func (d *Draft) ImageRef() *string {
	if d.ImageURL == "" {
		return nil
	}
	u := d.ImageURL
	return &u
}

// ClampHistoryLimit maps a requested listing size onto the accepted range.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// Gateway is the persistence contract of the chat core. Implementations return
// plain errors; the core translates them into ErrPersistence.
type Gateway interface {
	// GetOrCreateUser returns the user with the given (already normalized)
	// username, creating it when absent. Concurrent first logins for one name
	// yield a single user.
	GetOrCreateUser(ctx context.Context, username string) (*User, error)

	// InsertMessage stores a new active message and returns it with its
	// server-assigned ID and CreatedAt.
	InsertMessage(ctx context.Context, authorID int64, text string, imageURL *string) (*Message, error)

	// ListActiveMessages returns up to limit of the newest non-deleted messages,
	// oldest first, joined with their author.
	ListActiveMessages(ctx context.Context, limit int) ([]*Message, error)

	// GetMessage returns the message with the given id regardless of its
	// deletion state, or nil when there is none.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// SoftDeleteMessage flags the message deleted. Deleting twice succeeds.
	SoftDeleteMessage(ctx context.Context, id int64) error

	// CountActiveByImageURL returns how many non-deleted messages reference url.
	CountActiveByImageURL(ctx context.Context, url string) (int64, error)
}
