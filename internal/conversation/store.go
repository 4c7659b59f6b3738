// Package conversation keeps the in-memory, per-chat state of unfinished
// bot dialogs. Nothing here survives a restart; users simply start over.
package conversation

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"telegram-fitness-bot/internal/models"
)

type session struct {
	pending  models.PendingKind
	weight   *models.WeightDraft
	recovery *models.RecoveryDraft
}

func (s session) empty() bool {
	return s.pending == models.PendingNone && s.weight == nil && s.recovery == nil
}

// Store maps a chat to at most one pending input and its drafts.
// Idle sessions are evicted after ttl; capacity bounds the number of chats
// kept (0 means unbounded).
type Store struct {
	mu       sync.Mutex
	sessions *expirable.LRU[int64, session]
}

func NewStore(capacity int, ttl time.Duration) *Store {
	return &Store{sessions: expirable.NewLRU[int64, session](capacity, nil, ttl)}
}

func (s *Store) get(chatID int64) session {
	v, _ := s.sessions.Get(chatID)
	return v
}

func (s *Store) put(chatID int64, v session) {
	if v.empty() {
		s.sessions.Remove(chatID)
		return
	}
	s.sessions.Add(chatID, v)
}

// SetPending replaces the chat's pending input. Drafts of other flows are
// dropped.
func (s *Store) SetPending(chatID int64, kind models.PendingKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.pending = kind
	if !kind.WeightFlow() {
		v.weight = nil
	}
	if kind != models.PendingRecoveryFields {
		v.recovery = nil
	}
	s.put(chatID, v)
}

func (s *Store) Pending(chatID int64) models.PendingKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(chatID).pending
}

func (s *Store) ClearPending(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.pending = models.PendingNone
	s.put(chatID, v)
}

func (s *Store) SetWeightDraft(chatID int64, d models.WeightDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.weight = &d
	s.put(chatID, v)
}

// WeightDraft returns a copy of the draft; ok is false when there is none.
func (s *Store) WeightDraft(chatID int64) (models.WeightDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	if v.weight == nil {
		return models.WeightDraft{}, false
	}
	return *v.weight, true
}

func (s *Store) ClearWeightDraft(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.weight = nil
	s.put(chatID, v)
}

func (s *Store) SetRecoveryDraft(chatID int64, d models.RecoveryDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.recovery = &d
	s.put(chatID, v)
}

func (s *Store) RecoveryDraft(chatID int64) (models.RecoveryDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	if v.recovery == nil {
		return models.RecoveryDraft{}, false
	}
	return *v.recovery, true
}

func (s *Store) ClearRecoveryDraft(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.get(chatID)
	v.recovery = nil
	s.put(chatID, v)
}

// Reset forgets everything about the chat.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Remove(chatID)
}

// Len is the number of chats with live state.
func (s *Store) Len() int {
	return s.sessions.Len()
}
