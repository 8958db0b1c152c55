package service

import (
	"context"
	"sync"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/idgen"
	"github.com/vedran77/v3kn/internal/repository"
	"github.com/vedran77/v3kn/pkg/validator"
)

// MessageService implements C6, the messaging engine, grounded on
// original_source/v3kn/messages/src/messages.cpp. Unlike the friend
// event bus, long-poll wakeups here share a single condition variable
// (messages_cv in the reference) rather than a per-NPID signal, since
// the reference scans every participant conversation on each wake
// regardless of which one produced it.
type MessageService struct {
	conversations repository.ConversationRepository
	auth          *AuthService

	mu   sync.Mutex
	cond *sync.Cond

	// writeMu serializes the load-modify-save sequence every mutating
	// operation below performs against the jsonfile repo, which takes no
	// lock of its own. Mirrors the reference's single request_mutex
	// around messages.cpp's write handlers.
	writeMu sync.Mutex

	budget time.Duration
}

func NewMessageService(conversations repository.ConversationRepository, auth *AuthService, budget time.Duration) *MessageService {
	s := &MessageService{conversations: conversations, auth: auth, budget: budget}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MessageService) broadcast() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

func dedupeAppend(existing []string, add string) []string {
	for _, e := range existing {
		if e == add {
			return existing
		}
	}
	return append(existing, add)
}

func removeID(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Create implements handle_messages_create.
func (s *MessageService) Create(ctx context.Context, npid string, participants []string, message string) (conversationID string, err error) {
	if participants == nil {
		return "", ErrMissingParticipants
	}
	switch validator.CheckMessage(message) {
	case validator.MessageMissing:
		return "", ErrMissingMessage
	case validator.MessageTooLong:
		return "", ErrMessageTooLong
	}

	all := []string{npid}
	for _, p := range participants {
		p = trimNPID(p)
		if p == "" {
			return "", ErrInvalidParticipant
		}
		if p == npid {
			continue
		}
		all = dedupeAppend(all, p)
	}
	if len(all) < 2 {
		return "", ErrNotEnoughParticipants
	}

	for _, p := range all {
		exists, err := s.auth.Exists(ctx, p)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", ErrParticipantNotFound
		}
	}

	conversationID = idgen.ConversationID(all, time.Now().UnixMilli())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.conversations.LoadMetadata(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.ConversationID != "" {
		return "", ErrConversationAlreadyExists
	}

	now := time.Now().Unix()
	meta := &domain.ConversationMetadata{
		ConversationID: conversationID,
		Participants:   all,
		Creator:        npid,
		CreatedAt:      now,
	}
	if err := s.conversations.SaveMetadata(ctx, conversationID, meta); err != nil {
		return "", err
	}

	msgs := []domain.Message{{From: npid, Msg: message, Timestamp: now}}
	if err := s.conversations.SaveMessages(ctx, conversationID, msgs); err != nil {
		return "", err
	}

	for _, p := range all {
		idx, err := s.conversations.LoadUserIndex(ctx, p)
		if err != nil {
			return "", err
		}
		idx = dedupeAppend(idx, conversationID)
		if err := s.conversations.SaveUserIndex(ctx, p, idx); err != nil {
			return "", err
		}
	}

	s.broadcast()
	return conversationID, nil
}

func (s *MessageService) loadMeta(ctx context.Context, conversationID string) (*domain.ConversationMetadata, error) {
	meta, err := s.conversations.LoadMetadata(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.ConversationID == "" {
		return nil, ErrConversationNotFound
	}
	return meta, nil
}

// Send implements handle_messages_send.
func (s *MessageService) Send(ctx context.Context, npid, conversationID, message string) error {
	conversationID = trimNPID(conversationID)
	if conversationID == "" {
		return ErrMissingConversationID
	}
	switch validator.CheckMessage(message) {
	case validator.MessageMissing:
		return ErrMissingMessage
	case validator.MessageTooLong:
		return ErrMessageTooLong
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return err
	}
	if !meta.HasParticipant(npid) {
		return ErrNotInConversation
	}

	msgs, err := s.conversations.LoadMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	msgs = append(msgs, domain.Message{From: npid, Msg: message, Timestamp: time.Now().Unix()})
	if err := s.conversations.SaveMessages(ctx, conversationID, msgs); err != nil {
		return err
	}

	s.broadcast()
	return nil
}

// Delete implements handle_messages_delete: each requested timestamp is
// matched against the first message at that timestamp; a mismatched
// sender aborts just that one timestamp, not the whole call.
func (s *MessageService) Delete(ctx context.Context, npid, conversationID string, timestamps []int64) (deleted int, err error) {
	conversationID = trimNPID(conversationID)
	if conversationID == "" {
		return 0, ErrEmptyConversationID
	}
	if len(timestamps) == 0 {
		return 0, ErrMissingTimestamps
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !meta.HasParticipant(npid) {
		return 0, ErrNotInConversation
	}

	msgs, err := s.conversations.LoadMessages(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	for _, ts := range timestamps {
		for i, m := range msgs {
			if m.Timestamp != ts {
				continue
			}
			if m.From != npid {
				break
			}
			msgs = append(msgs[:i:i], msgs[i+1:]...)
			deleted++
			break
		}
	}

	if deleted == 0 {
		return 0, ErrNoMessagesDeleted
	}

	if err := s.conversations.SaveMessages(ctx, conversationID, msgs); err != nil {
		return 0, err
	}
	s.broadcast()
	return deleted, nil
}

// AddParticipant implements handle_messages_add_participant.
func (s *MessageService) AddParticipant(ctx context.Context, npid, conversationID, participant string) error {
	conversationID = trimNPID(conversationID)
	participant = trimNPID(participant)
	if participant == "" {
		return ErrEmptyParticipant
	}

	exists, err := s.auth.Exists(ctx, participant)
	if err != nil {
		return err
	}
	if !exists {
		return ErrParticipantNotFound
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return err
	}
	if !meta.HasParticipant(npid) {
		return ErrNotInConversation
	}
	if meta.HasParticipant(participant) {
		return ErrAlreadyInConversation
	}

	meta.Participants = append(meta.Participants, participant)
	if err := s.conversations.SaveMetadata(ctx, conversationID, meta); err != nil {
		return err
	}

	idx, err := s.conversations.LoadUserIndex(ctx, participant)
	if err != nil {
		return err
	}
	idx = dedupeAppend(idx, conversationID)
	if err := s.conversations.SaveUserIndex(ctx, participant, idx); err != nil {
		return err
	}

	s.broadcast()
	return nil
}

// Leave implements handle_messages_leave.
func (s *MessageService) Leave(ctx context.Context, npid, conversationID string) error {
	conversationID = trimNPID(conversationID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return err
	}
	if !meta.HasParticipant(npid) {
		return ErrNotInConversation
	}

	meta.RemoveParticipant(npid)
	if err := s.conversations.SaveMetadata(ctx, conversationID, meta); err != nil {
		return err
	}

	idx, err := s.conversations.LoadUserIndex(ctx, npid)
	if err != nil {
		return err
	}
	if err := s.conversations.SaveUserIndex(ctx, npid, removeID(idx, conversationID)); err != nil {
		return err
	}

	s.broadcast()
	return nil
}

// DeleteConversation implements handle_messages_delete_conversation:
// only the creator may tear the whole thing down.
func (s *MessageService) DeleteConversation(ctx context.Context, npid, conversationID string) error {
	conversationID = trimNPID(conversationID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return err
	}
	if meta.Creator != npid {
		return ErrNotCreator
	}

	for _, p := range meta.Participants {
		idx, err := s.conversations.LoadUserIndex(ctx, p)
		if err != nil {
			continue
		}
		_ = s.conversations.SaveUserIndex(ctx, p, removeID(idx, conversationID))
	}

	if err := s.conversations.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	s.broadcast()
	return nil
}

// ConversationSummary is one entry of handle_messages_conversations's
// response list.
type ConversationSummary struct {
	ConversationID string          `json:"npid"`
	Count          int             `json:"count"`
	Creator        string          `json:"creator"`
	Participants   []string        `json:"participants"`
	LastMessage    *domain.Message `json:"last_message,omitempty"`
}

// Conversations implements handle_messages_conversations.
func (s *MessageService) Conversations(ctx context.Context, npid string) ([]ConversationSummary, error) {
	idx, err := s.conversations.LoadUserIndex(ctx, npid)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(idx))
	for _, id := range idx {
		meta, err := s.conversations.LoadMetadata(ctx, id)
		if err != nil || meta == nil || meta.ConversationID == "" {
			continue
		}
		msgs, err := s.conversations.LoadMessages(ctx, id)
		if err != nil {
			continue
		}

		summary := ConversationSummary{
			ConversationID: meta.ConversationID,
			Count:          len(msgs),
			Creator:        meta.Creator,
			Participants:   meta.Participants,
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			summary.LastMessage = &last
		}
		out = append(out, summary)
	}
	return out, nil
}

// Read implements handle_messages_read.
func (s *MessageService) Read(ctx context.Context, npid, conversationID string) ([]domain.Message, error) {
	conversationID = trimNPID(conversationID)
	if conversationID == "" {
		return nil, ErrMissingConversationID
	}

	meta, err := s.loadMeta(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !meta.HasParticipant(npid) {
		return nil, ErrNotInConversation
	}

	return s.conversations.LoadMessages(ctx, conversationID)
}

// Poll implements handle_messages_poll: scans every conversation the
// requester participates in and returns messages newer than since that
// weren't authored by the requester, waking on any send/create/delete
// rather than a per-conversation signal.
func (s *MessageService) Poll(ctx context.Context, npid string, since int64) []domain.Message {
	deadline := time.Now().Add(s.budget)

	for {
		if received := s.scanUnread(ctx, npid, since); len(received) > 0 {
			return received
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return []domain.Message{}
		}
		s.waitFor(remaining)
		if ctx.Err() != nil || time.Now().After(deadline) {
			return []domain.Message{}
		}
	}
}

func (s *MessageService) waitFor(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	s.cond.Wait()
	timer.Stop()
}

func (s *MessageService) scanUnread(ctx context.Context, npid string, since int64) []domain.Message {
	idx, err := s.conversations.LoadUserIndex(ctx, npid)
	if err != nil {
		return nil
	}

	var out []domain.Message
	for _, id := range idx {
		msgs, err := s.conversations.LoadMessages(ctx, id)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Timestamp > since && m.From != npid {
				out = append(out, m)
			}
		}
	}
	return out
}
