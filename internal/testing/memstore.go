package testing

import (
	"auxchat/internal/storage"
	"context"
	"sort"
	"sync"
	"time"
)

type blockKey struct{ user, blocked int64 }

// MemStore is an in-memory double of storage.Store with the same error semantics
type MemStore struct {
	mu       sync.Mutex
	users    map[int64]storage.User
	messages map[int64]storage.Message
	blocks   map[blockKey]struct{}
	lastID   int64
	now      func() time.Time

	// Fail is returned by every operation when set
	Fail error
}

// NewMemStore returns empty store, message ids start right after firstID
func NewMemStore(firstID int64, now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		users:    make(map[int64]storage.User),
		messages: make(map[int64]storage.Message),
		blocks:   make(map[blockKey]struct{}),
		lastID:   firstID,
		now:      now,
	}
}

// AddUser stores u as is
func (s *MemStore) AddUser(u storage.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// MessageCount returns number of stored messages
func (s *MemStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *MemStore) isBlockedLocked(a, b int64) bool {
	_, ab := s.blocks[blockKey{a, b}]
	_, ba := s.blocks[blockKey{b, a}]
	return ab || ba
}

func (s *MemStore) CreateMessage(_ context.Context, m storage.NewMessage) (storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return storage.Message{}, s.Fail
	}
	if s.isBlockedLocked(m.SenderID, m.ReceiverID) {
		return storage.Message{}, storage.ErrBlocked
	}
	sender, ok := s.users[m.SenderID]
	if !ok {
		return storage.Message{}, storage.ErrUserNotExist
	}
	if _, ok := s.users[m.ReceiverID]; !ok {
		return storage.Message{}, storage.ErrUserNotExist
	}

	now := s.now().UTC()
	s.lastID++
	out := storage.Message{
		ID:            s.lastID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Text:          m.Text,
		VoiceDuration: m.VoiceDuration,
		CreatedAt:     now,
		Sender:        storage.Sender{Username: sender.Username},
	}
	if m.VoiceURL != "" {
		v := m.VoiceURL
		out.VoiceURL = &v
	}
	if m.ImageURL != "" {
		v := m.ImageURL
		out.ImageURL = &v
	}
	if sender.AvatarURL != "" {
		v := sender.AvatarURL
		out.Sender.AvatarURL = &v
	}
	s.messages[out.ID] = out

	sender.LastActivity = &now
	s.users[sender.ID] = sender

	return out, nil
}

func (s *MemStore) MessagesBetween(_ context.Context, reader, other int64, limit int) ([]storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return nil, s.Fail
	}

	var pair []storage.Message
	for id, m := range s.messages {
		if m.ReceiverID == reader && m.SenderID == other && !m.IsRead {
			m.IsRead = true
			s.messages[id] = m
		}
		if (m.SenderID == reader && m.ReceiverID == other) || (m.SenderID == other && m.ReceiverID == reader) {
			pair = append(pair, m)
		}
	}

	// newest first for windowing
	sort.Slice(pair, func(i, j int) bool {
		if !pair[i].CreatedAt.Equal(pair[j].CreatedAt) {
			return pair[i].CreatedAt.After(pair[j].CreatedAt)
		}
		return pair[i].ID > pair[j].ID
	})
	if len(pair) > limit {
		pair = pair[:limit]
	}

	out := make([]storage.Message, len(pair))
	for i, m := range pair {
		out[len(pair)-1-i] = m
	}

	return out, nil
}

func (s *MemStore) DeleteMessage(_ context.Context, id, requester int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	m, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotExist
	}
	if m.SenderID != requester {
		return storage.ErrNotMessageOwner
	}
	delete(s.messages, id)

	return nil
}

func (s *MemStore) IsBlocked(_ context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return false, s.Fail
	}
	return s.isBlockedLocked(a, b), nil
}

func (s *MemStore) Block(_ context.Context, user, blocked int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	if _, ok := s.users[blocked]; !ok {
		return storage.ErrUserNotExist
	}
	s.blocks[blockKey{user, blocked}] = struct{}{}

	return nil
}

func (s *MemStore) Unblock(_ context.Context, user, blocked int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	delete(s.blocks, blockKey{user, blocked})

	return nil
}

func (s *MemStore) UserByID(_ context.Context, id int64) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return storage.User{}, s.Fail
	}
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrUserNotExist
	}

	return u, nil
}

func (s *MemStore) TouchActivity(_ context.Context, id int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return time.Time{}, s.Fail
	}
	u, ok := s.users[id]
	if !ok {
		return time.Time{}, storage.ErrUserNotExist
	}
	now := s.now().UTC()
	u.LastActivity = &now
	s.users[id] = u

	return now, nil
}

func (s *MemStore) UpdateProfile(_ context.Context, id int64, upd storage.ProfileUpdate) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return storage.User{}, s.Fail
	}
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrUserNotExist
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.CustomStatus != nil {
		u.CustomStatus = *upd.CustomStatus
	}
	now := s.now().UTC()
	u.LastActivity = &now
	s.users[id] = u

	return u, nil
}

func (s *MemStore) SetPushToken(_ context.Context, id int64, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotExist
	}
	u.PushToken = token
	s.users[id] = u

	return nil
}
