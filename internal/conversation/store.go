package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// ErrNotFound is returned by stores when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversations. Implementations must be safe for concurrent
// use. Phase state is not part of the store; it lives with the orchestrator.
type Store interface {
	// Create inserts a new conversation. Returns an error if the id already
	// exists.
	Create(ctx context.Context, conv *Conversation) error

	// Get retrieves a conversation by id, including its full message log.
	// Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns summaries of all conversations, newest first, excluding
	// internal fallback sessions.
	List(ctx context.Context) ([]Summary, error)

	// AppendMessages appends messages to a conversation's log in order.
	// Returns ErrNotFound if the conversation is absent.
	AppendMessages(ctx context.Context, id string, msgs ...Message) error

	// Messages returns a page of the conversation's log plus the total count.
	// Slice semantics: offset first, then limit; limit < 0 means no limit.
	// Returns ErrNotFound if the conversation is absent.
	Messages(ctx context.Context, id string, offset, limit int) ([]Message, int, error)

	// Delete removes a conversation. Deleting a non-existent conversation is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process [Store] backed by a map. It is the default
// store; a PostgreSQL implementation lives in the postgres subpackage.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

// Create implements [Store].
func (s *MemoryStore) Create(_ context.Context, conv *Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation: id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.convs[conv.ID]; exists {
		return fmt.Errorf("conversation: id %q already exists", conv.ID)
	}
	s.convs[conv.ID] = copyConversation(conv)
	return nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	return copyConversation(conv), nil
}

// List implements [Store].
func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.convs))
	for id, conv := range s.convs {
		if IsInternalID(id) {
			continue
		}
		out = append(out, Summary{
			ID:           id,
			PersonaIDs:   append([]string(nil), conv.PersonaIDs...),
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(conv.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AppendMessages implements [Store].
func (s *MemoryStore) AppendMessages(_ context.Context, id string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	conv.Messages = append(conv.Messages, msgs...)
	return nil
}

// Messages implements [Store].
func (s *MemoryStore) Messages(_ context.Context, id string, offset, limit int) ([]Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, 0, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}

	total := len(conv.Messages)
	page := pageBounds(total, offset, limit)
	out := make([]Message, page[1]-page[0])
	copy(out, conv.Messages[page[0]:page[1]])
	return out, total, nil
}

// Delete implements [Store].
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// pageBounds clamps offset/limit to [start, end) indexes over total items.
func pageBounds(total, offset, limit int) [2]int {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return [2]int{offset, end}
}

// copyConversation returns a deep copy so callers cannot mutate stored state.
func copyConversation(conv *Conversation) *Conversation {
	cp := &Conversation{
		ID:         conv.ID,
		PersonaIDs: append([]string(nil), conv.PersonaIDs...),
		Messages:   append([]Message(nil), conv.Messages...),
		CreatedAt:  conv.CreatedAt,
	}
	if conv.Profiles != nil {
		cp.Profiles = make(map[string]persona.Profile, len(conv.Profiles))
		for k, v := range conv.Profiles {
			cp.Profiles[k] = v
		}
	}
	return cp
}
