package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
)

// In-memory implementations. They mirror the SQL semantics exactly and back
// the unit tests that exercise unread arithmetic and mark-read idempotency
// without a database.

// MemoryConversationStore implements ConversationRepository in memory.
type MemoryConversationStore struct {
	mu            sync.Mutex
	nextID        int
	conversations map[int]models.Conversation
	participants  map[int]map[int]*time.Time // conversationID -> userID -> leftAt
}

// NewMemoryConversationStore constructs an empty store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[int]models.Conversation),
		participants:  make(map[int]map[int]*time.Time),
	}
}

func (s *MemoryConversationStore) CreateOrGetConversation(ctx context.Context, userID int, recipientID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, members := range s.participants {
		_, hasUser := members[userID]
		_, hasRecipient := members[recipientID]
		if hasUser && hasRecipient {
			return s.conversations[id], nil
		}
	}

	s.nextID++
	conv := models.Conversation{ID: s.nextID, CreatedAt: time.Now()}
	s.conversations[conv.ID] = conv
	s.participants[conv.ID] = map[int]*time.Time{userID: nil, recipientID: nil}
	return conv, nil
}

func (s *MemoryConversationStore) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

func (s *MemoryConversationStore) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leftAt, ok := s.participants[conversationID][userID]
	return ok && leftAt == nil, nil
}

func (s *MemoryConversationStore) ActiveParticipants(ctx context.Context, conversationID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.participants[conversationID]))
	for userID, leftAt := range s.participants[conversationID] {
		if leftAt == nil {
			ids = append(ids, userID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *MemoryConversationStore) ListConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var convs []models.Conversation
	for id, members := range s.participants {
		if leftAt, ok := members[userID]; ok && leftAt == nil {
			convs = append(convs, s.conversations[id])
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].ID > convs[j].ID })
	return convs, nil
}

// MarkLeft records that a user left a conversation.
func (s *MemoryConversationStore) MarkLeft(conversationID int, userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.participants[conversationID]; ok {
		now := time.Now()
		members[userID] = &now
	}
}

// MemoryMessageStore implements MessageRepository in memory. It shares the
// participant table of a MemoryConversationStore so UnreadCounts can scope
// itself to active memberships, like the SQL join does.
type MemoryMessageStore struct {
	mu            sync.Mutex
	nextID        int
	messages      []*models.Message
	conversations *MemoryConversationStore
}

// NewMemoryMessageStore constructs an empty store over a conversation store.
func NewMemoryMessageStore(conversations *MemoryConversationStore) *MemoryMessageStore {
	return &MemoryMessageStore{conversations: conversations}
}

func (s *MemoryMessageStore) CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.Message{
		ID:             s.nextID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, &msg)
	return msg, nil
}

func (s *MemoryMessageStore) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func (s *MemoryMessageStore) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			return *m, nil
		}
	}
	return models.Message{}, ErrMessageNotFound
}

func (s *MemoryMessageStore) MarkConversationRead(ctx context.Context, conversationID int, userID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	now := time.Now()
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.SenderID != userID && m.ReadAt == nil {
			stamp := now
			m.ReadAt = &stamp
			affected++
		}
	}
	return affected, nil
}

func (s *MemoryMessageStore) UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perConversation := map[int]int{}
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReadAt != nil {
			continue
		}
		leftAt, ok := s.conversations.participants[m.ConversationID][userID]
		if !ok || leftAt != nil {
			continue
		}
		perConversation[m.ConversationID]++
	}

	ids := make([]int, 0, len(perConversation))
	for id := range perConversation {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	counts := models.UnreadCounts{ConversationsWithUnread: []models.ConversationUnread{}}
	for _, id := range ids {
		counts.ConversationsWithUnread = append(counts.ConversationsWithUnread, models.ConversationUnread{
			ConversationID: id,
			UnreadCount:    perConversation[id],
		})
		counts.TotalUnread += perConversation[id]
	}
	return counts, nil
}

// MemoryNotificationStore implements NotificationRepository in memory.
type MemoryNotificationStore struct {
	mu            sync.Mutex
	nextID        int
	notifications []*models.Notification
}

// NewMemoryNotificationStore constructs an empty store.
func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{}
}

func (s *MemoryNotificationStore) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	n.Read = false
	n.CreatedAt = time.Now()
	stored := n
	s.notifications = append(s.notifications, &stored)
	return n, nil
}

func (s *MemoryNotificationStore) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			list = append(list, *s.notifications[i])
		}
	}
	return list, nil
}

func (s *MemoryNotificationStore) GetNotification(ctx context.Context, notificationID int) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == notificationID {
			return *n, nil
		}
	}
	return models.Notification{}, ErrNotificationNotFound
}

func (s *MemoryNotificationStore) MarkRead(ctx context.Context, notificationID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == notificationID {
			n.Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (s *MemoryNotificationStore) MarkAllRead(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (s *MemoryNotificationStore) UnreadCount(ctx context.Context, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
