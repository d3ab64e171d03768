package testutils

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/goby-chat/internal/domain"
)

// ErrInjected is returned by MemoryGateway operations switched to failing.
var ErrInjected = errors.New("injected storage failure")

// MemoryGateway is an in-memory domain.Gateway for tests. Failures can be
// injected per operation.
type MemoryGateway struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	messages map[int64]*domain.Message
	nextUser int64
	nextMsg  int64

	FailInsert bool
	FailDelete bool
	FailGet    bool
	FailList   bool
	FailUsers  bool
	FailCount  bool

	// Calls counts every gateway call, by operation name.
	Calls map[string]int
}

// NewMemoryGateway returns an empty gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		users:    make(map[string]*domain.User),
		messages: make(map[int64]*domain.Message),
		Calls:    make(map[string]int),
	}
}

func (g *MemoryGateway) count(op string) {
	g.mu.Lock()
	g.Calls[op]++
	g.mu.Unlock()
}

// CallCount returns how often op was called.
func (g *MemoryGateway) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[op]
}

// UserCount returns the number of stored users.
func (g *MemoryGateway) UserCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.users)
}

// MessageCount returns the number of stored messages, deleted ones included.
func (g *MemoryGateway) MessageCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.messages)
}

// SetFailures switches injected failures on or off under the gateway lock.
func (g *MemoryGateway) SetFailures(fn func(g *MemoryGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *MemoryGateway) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailUsers {
		return nil, ErrInjected
	}
	if u, ok := g.users[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (g *MemoryGateway) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[username]; ok {
		return nil, domain.ErrUniquenessConflict
	}
	g.nextUser++
	u := &domain.User{ID: g.nextUser, Username: username, DisplayName: displayName}
	g.users[username] = u
	cp := *u
	return &cp, nil
}

func (g *MemoryGateway) GetOrCreateUser(ctx context.Context, username string) (*domain.User, error) {
	g.count("get_or_create_user")
	return domain.ResolveUser(ctx, g, g, username)
}

func (g *MemoryGateway) InsertMessage(ctx context.Context, authorID int64, text string, imageURL *string) (*domain.Message, error) {
	g.count("insert_message")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailInsert {
		return nil, ErrInjected
	}
	g.nextMsg++
	m := &domain.Message{
		ID:        g.nextMsg,
		UserID:    authorID,
		Text:      text,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
	}
	g.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (g *MemoryGateway) ListActiveMessages(ctx context.Context, limit int) ([]*domain.Message, error) {
	g.count("list_active_messages")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailList {
		return nil, ErrInjected
	}

	active := make([]*domain.Message, 0, len(g.messages))
	for _, m := range g.messages {
		if m.IsDeleted {
			continue
		}
		cp := *m
		g.fillAuthor(&cp)
		active = append(active, &cp)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	if len(active) > limit {
		active = active[len(active)-limit:]
	}
	return active, nil
}

func (g *MemoryGateway) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	g.count("get_message")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailGet {
		return nil, ErrInjected
	}
	m, ok := g.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	g.fillAuthor(&cp)
	return &cp, nil
}

func (g *MemoryGateway) SoftDeleteMessage(ctx context.Context, id int64) error {
	g.count("soft_delete_message")
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailDelete {
		return ErrInjected
	}
	if m, ok := g.messages[id]; ok {
		now := time.Now().UTC()
		m.IsDeleted = true
		m.DeletedAt = &now
	}
	return nil
}

func (g *MemoryGateway) CountActiveByImageURL(ctx context.Context, url string) (int64, error) {
	g.count("count_active_by_image_url")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCount {
		return 0, ErrInjected
	}
	var n int64
	for _, m := range g.messages {
		if !m.IsDeleted && m.ImageURL != nil && *m.ImageURL == url {
			n++
		}
	}
	return n, nil
}

// fillAuthor must be called with g.mu held.
func (g *MemoryGateway) fillAuthor(m *domain.Message) {
	for _, u := range g.users {
		if u.ID == m.UserID {
			m.Username = u.Username
			m.DisplayName = u.DisplayName
			return
		}
	}
}
