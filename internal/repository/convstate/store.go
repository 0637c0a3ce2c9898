package convstate

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

const titleMaxRunes = 50

// Store keeps conversation state in process memory with a sliding TTL.
// Conversations idle past the TTL are evicted; there is no persistence.
type Store struct {
	cache *ttlcache.Cache[string, *domain.Conversation]

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New creates a conversation store. Each read or write of a conversation
// refreshes its TTL.
func New(ttl time.Duration, capacity uint64) *Store {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Conversation](ttl),
		ttlcache.WithCapacity[string, *domain.Conversation](capacity),
	)
	go cache.Start()

	return &Store{
		cache: cache,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// Stop halts the background eviction loop.
func (s *Store) Stop() {
	s.cache.Stop()
}

// Create starts a new conversation for a user.
func (s *Store) Create(userID string) *domain.Conversation {
	now := s.now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.Set(conv.ID, conv, ttlcache.DefaultTTL)
	return conv
}

// Get returns a copy of the conversation, or ErrConversationNotFound.
// The copy is taken under the conversation's lock so it never observes a
// concurrent Update mid-mutation; callers go through Update for changes.
func (s *Store) Get(id string) (*domain.Conversation, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item := s.cache.Get(id)
	if item == nil {
		return nil, domain.ErrConversationNotFound
	}
	conv := *item.Value()
	conv.Messages = append([]domain.Message(nil), conv.Messages...)
	return &conv, nil
}

// Update applies fn to the conversation under its lock. Turns on the same
// conversation serialize here; turns on different conversations proceed in
// parallel.
func (s *Store) Update(id string, fn func(*domain.Conversation)) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item := s.cache.Get(id)
	if item == nil {
		return domain.ErrConversationNotFound
	}

	conv := item.Value()
	fn(conv)
	conv.UpdatedAt = s.now()
	s.cache.Set(id, conv, ttlcache.DefaultTTL)
	return nil
}

// AppendMessage adds a message, assigning an ID and timestamp if missing.
// The first user message becomes the conversation title.
func (s *Store) AppendMessage(id string, msg domain.Message) error {
	return s.Update(id, func(conv *domain.Conversation) {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = s.now()
		}
		conv.Messages = append(conv.Messages, msg)

		if conv.Title == "" && msg.Role == domain.RoleUser {
			conv.Title = makeTitle(msg.Content)
		}
	})
}

// Delete removes a conversation. Deleting a missing conversation is a no-op.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// ListByUser returns summaries of the user's conversations, most recently
// updated first.
func (s *Store) ListByUser(userID string) []domain.ConversationSummary {
	var out []domain.ConversationSummary
	for id, item := range s.cache.Items() {
		lock := s.lockFor(id)
		lock.Lock()
		conv := item.Value()
		if conv.UserID != userID {
			lock.Unlock()
			continue
		}
		out = append(out, domain.ConversationSummary{
			ID:           conv.ID,
			UserID:       conv.UserID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
		lock.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func makeTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes-3]) + "..."
	}
	return title
}
