package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-service/internal/models"
)

// MemoryStore keeps every repository in process memory behind one mutex.
// Each method is a single critical section, which mirrors the transaction
// boundaries of the Postgres repositories.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]models.User
	conversations map[string]*memConversation
	byUser        map[string]map[string]struct{}
	invitations   []models.Invitation
	transcripts   []models.TranscriptEntry
}

type memConversation struct {
	conv     models.Conversation
	messages []models.Message
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		conversations: make(map[string]*memConversation),
		byUser:        make(map[string]map[string]struct{}),
	}
}

// Store exposes the memory store through the repository interfaces.
func (s *MemoryStore) Store() Store {
	return Store{
		Users:         s,
		Conversations: s,
		Messages:      s,
		Invitations:   s,
		Transcripts:   s,
		Health:        s,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) UpsertUser(_ context.Context, user models.User, at time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
		if existing.DisplayName != "" {
			user.DisplayName = existing.DisplayName
		}
		if existing.AvatarURL != nil {
			user.AvatarURL = existing.AvatarURL
		}
	} else {
		user.CreatedAt = at
	}
	user.UpdatedAt = at
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUsers(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		}
	}
	sortUsers(users)
	return users, nil
}

func (s *MemoryStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found models.User
		ok    bool
	)
	for _, u := range s.users {
		if u.Email != email {
			continue
		}
		if !ok || u.CreatedAt.Before(found.CreatedAt) || (u.CreatedAt.Equal(found.CreatedAt) && u.ID < found.ID) {
			found, ok = u, true
		}
	}
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return found, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id, displayName string, avatarURL *string, at time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	user.DisplayName = displayName
	user.AvatarURL = avatarURL
	user.UpdatedAt = at
	s.users[id] = user
	return user, nil
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].ID < users[j].ID
	})
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv models.Conversation, first models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.ParticipantIDs = append([]string(nil), conv.ParticipantIDs...)
	conv.LastMessageSummary = first.Summary()
	s.conversations[conv.ID] = &memConversation{conv: conv, messages: []models.Message{copyMessage(first)}}
	for _, id := range conv.ParticipantIDs {
		s.index(id, conv.ID)
	}
	return nil
}

func (s *MemoryStore) index(userID, conversationID string) {
	set, ok := s.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		s.byUser[userID] = set
	}
	set[conversationID] = struct{}{}
}

func (s *MemoryStore) GetConversation(_ context.Context, conversationID string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return copyConversation(c.conv), nil
}

func (s *MemoryStore) ListConversationsForUser(_ context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Conversation, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		result = append(result, copyConversation(s.conversations[id].conv))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if offset >= len(result) {
		return []models.Conversation{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) IsParticipant(_ context.Context, conversationID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byUser[userID][conversationID]
	return ok, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}
	c.messages = append(c.messages, copyMessage(msg))
	c.conv.LastMessageSummary = msg.Summary()
	if msg.CreatedAt.After(c.conv.UpdatedAt) {
		c.conv.UpdatedAt = msg.CreatedAt
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return []models.Message{}, nil
	}
	msgs := c.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	return out, nil
}

func (s *MemoryStore) AcknowledgeAll(_ context.Context, conversationID string, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return 0, nil
	}
	added := 0
	for i := range c.messages {
		m := &c.messages[i]
		if m.AuthorID == userID || m.IsAcknowledgedBy(userID) {
			continue
		}
		m.AcknowledgedBy = append(m.AcknowledgedBy, models.Acknowledgement{UserID: userID, AcknowledgedAt: at})
		added++
	}
	return added, nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, conversationID string, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return 0, nil
	}
	return unread(c, userID), nil
}

func (s *MemoryStore) UnreadCounts(_ context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		counts[id] = unread(s.conversations[id], userID)
	}
	return counts, nil
}

func unread(c *memConversation, userID string) int {
	count := 0
	for _, m := range c.messages {
		if m.AuthorID != userID && !m.IsAcknowledgedBy(userID) {
			count++
		}
	}
	return count
}

func (s *MemoryStore) CountSince(_ context.Context, conversationID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, m := range c.messages {
		if !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[inv.ConversationID]; !ok {
		return ErrConversationNotFound
	}
	for _, existing := range s.invitations {
		if existing.ConversationID == inv.ConversationID && existing.InvitedUser == inv.InvitedUser &&
			existing.Status == models.InvitationPending {
			return ErrDuplicateInvitation
		}
	}
	s.invitations = append(s.invitations, inv)
	return nil
}

func (s *MemoryStore) RespondToInvitation(_ context.Context, conversationID string, invitedUser string, accept bool, at time.Time) (models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.invitations {
		inv := &s.invitations[i]
		if inv.ConversationID != conversationID || inv.InvitedUser != invitedUser || inv.Status != models.InvitationPending {
			continue
		}
		inv.Status = models.InvitationRejected
		if accept {
			inv.Status = models.InvitationAccepted
		}
		respondedAt := at
		inv.RespondedAt = &respondedAt

		if accept {
			c := s.conversations[conversationID]
			if !c.conv.HasParticipant(invitedUser) {
				c.conv.ParticipantIDs = append(c.conv.ParticipantIDs, invitedUser)
				s.index(invitedUser, conversationID)
			}
			if at.After(c.conv.UpdatedAt) {
				c.conv.UpdatedAt = at
			}
		}
		return *inv, nil
	}
	return models.Invitation{}, ErrNoPendingInvitation
}

func (s *MemoryStore) ListPendingForUser(_ context.Context, userID string) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.Invitation
	for i := len(s.invitations) - 1; i >= 0; i-- {
		inv := s.invitations[i]
		if inv.InvitedUser == userID && inv.Status == models.InvitationPending {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

func (s *MemoryStore) AddEntry(_ context.Context, entry models.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, entry)
	return nil
}

func (s *MemoryStore) ListEntries(_ context.Context, userID string, limit int) ([]models.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []models.TranscriptEntry
	for _, e := range s.transcripts {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *MemoryStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.transcripts[:0]
	var removed int64
	for _, e := range s.transcripts {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.transcripts = kept
	return removed, nil
}

func copyConversation(c models.Conversation) models.Conversation {
	c.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	return c
}

func copyMessage(m models.Message) models.Message {
	m.AcknowledgedBy = append([]models.Acknowledgement{}, m.AcknowledgedBy...)
	if m.Attachment != nil {
		att := *m.Attachment
		m.Attachment = &att
	}
	return m
}
