package domain

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxUsernameLength is the longest accepted username, in runes.
const MaxUsernameLength = 64

// User is a chat participant. Users are created on first login and never change.
type User struct {
	ID          int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// NormalizeUsername trims the raw login name and checks it.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", Validation("login", CodeUsernameRequired)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", Validation("login", CodeUsernameTooLong)
	}
	return name, nil
}

// UserFinder and UserCreator are the primitives a gateway needs to offer for
// ResolveUser.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
}

type UserCreator interface {
	CreateUser(ctx context.Context, username, displayName string) (*User, error)
}

// ResolveUser implements get-or-create on top of find and create. A create that
// loses a race against another login for the same name reports
// ErrUniquenessConflict; the winner's row is fetched and returned instead.
func ResolveUser(ctx context.Context, find UserFinder, create UserCreator, username string) (*User, error) {
	user, err := find.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = create.CreateUser(ctx, username, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUniquenessConflict) {
		return nil, err
	}

	user, err = find.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
