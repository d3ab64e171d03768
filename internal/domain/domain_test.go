package domain_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	name, err := domain.NormalizeUsername("  alice \n")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = domain.NormalizeUsername("   ")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeUsernameRequired, domain.CodeOf(err))

	_, err = domain.NormalizeUsername(strings.Repeat("あ", domain.MaxUsernameLength+1))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeUsernameTooLong, domain.CodeOf(err))

	// Case is preserved.
	name, err = domain.NormalizeUsername("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestNewDraft(t *testing.T) {
	_, err := domain.NewDraft(" ", "\t")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeMessageEmpty, domain.CodeOf(err))

	d, err := domain.NewDraft("", "/uploads/a.png")
	require.NoError(t, err)
	require.NotNil(t, d.ImageRef())
	assert.Equal(t, "/uploads/a.png", *d.ImageRef())

	d, err = domain.NewDraft("  hi ", "")
	require.NoError(t, err)
	assert.Equal(t, "hi", d.Text)
	assert.Nil(t, d.ImageRef())

	_, err = domain.NewDraft(strings.Repeat("x", 4001), "")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeMessageTooLong, domain.CodeOf(err))
}

func TestNewDraft_LongImageURL(t *testing.T) {
	_, err := domain.NewDraft("hi", "/uploads/"+strings.Repeat("a", 600))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeImageURLInvalid, domain.CodeOf(err))
}

func TestClampHistoryLimit(t *testing.T) {
	assert.Equal(t, domain.DefaultHistoryLimit, domain.ClampHistoryLimit(0))
	assert.Equal(t, domain.DefaultHistoryLimit, domain.ClampHistoryLimit(-3))
	assert.Equal(t, 10, domain.ClampHistoryLimit(10))
	assert.Equal(t, domain.MaxHistoryLimit, domain.ClampHistoryLimit(10_000))
}

func TestError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.Persistence("insert_message", cause)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "insert_message")
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, domain.CodeStorageFailure, domain.CodeOf(cause))
	assert.Equal(t, domain.CodeLoginRequired, domain.CodeOf(domain.Unauthenticated("submit")))
}

// racingUsers simulates a create that loses against a concurrent login.
type racingUsers struct {
	finds   int
	stored  *domain.User
	created bool
}

func (r *racingUsers) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.finds++
	if r.finds == 1 {
		return nil, nil
	}
	return r.stored, nil
}

func (r *racingUsers) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	r.created = true
	return nil, domain.ErrUniquenessConflict
}

func TestResolveUser_ConflictRefetches(t *testing.T) {
	winner := &domain.User{ID: 7, Username: "carol", DisplayName: "carol"}
	users := &racingUsers{stored: winner}

	got, err := domain.ResolveUser(context.Background(), users, users, "carol")
	require.NoError(t, err)
	assert.True(t, users.created)
	assert.Equal(t, 2, users.finds)
	assert.Equal(t, winner, got)
}

type failingUsers struct{ err error }

func (f failingUsers) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, nil
}

func (f failingUsers) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	return nil, f.err
}

func TestResolveUser_CreateFailure(t *testing.T) {
	boom := errors.New("disk full")
	users := failingUsers{err: boom}

	_, err := domain.ResolveUser(context.Background(), users, users, "dave")
	require.ErrorIs(t, err, boom)
}
