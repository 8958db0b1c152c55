package service

import (
	"context"
	"sync"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/presence"
	"github.com/vedran77/v3kn/internal/repository"
	"golang.org/x/text/cases"
)

// FriendOutcome names the concrete result of a mutating friend operation,
// matching the distinct OK: payloads handle_friend_* in friend.cpp sends
// (e.g. "OK:RequestSent" vs "OK:FriendAdded" for the same endpoint).
type FriendOutcome string

const (
	FriendOutcomeRequestSent      FriendOutcome = "RequestSent"
	FriendOutcomeFriendAdded      FriendOutcome = "FriendAdded"
	FriendOutcomeRequestRejected  FriendOutcome = "RequestRejected"
	FriendOutcomeRequestCancelled FriendOutcome = "RequestCancelled"
	FriendOutcomeFriendRemoved    FriendOutcome = "FriendRemoved"
	FriendOutcomePlayerBlocked    FriendOutcome = "PlayerBlocked"
	FriendOutcomePlayerUnblocked  FriendOutcome = "PlayerUnblocked"
)

var foldCaser = cases.Fold()

// presenceFieldsProvider is the slice of PresenceService a FriendService
// needs for list/profile enrichment, kept as an interface so the two
// services can reference each other without an import cycle.
type presenceFieldsProvider interface {
	PresenceFields(npid string, includeLastActivity bool) map[string]any
}

// FriendService implements C5 (the bilateral relation state machine) and
// the C5+C3 presence-enriched queries (§4.6), grounded on
// original_source/v3kn/friend/src/friend.cpp's handle_friend_* family.
type FriendService struct {
	mu       sync.Mutex
	friends  repository.FriendRepository
	bus      *presence.Bus
	auth     *AuthService
	trophies *TrophyService
	log      *logging.Domain
	presence presenceFieldsProvider
}

func NewFriendService(friends repository.FriendRepository, bus *presence.Bus, auth *AuthService, trophies *TrophyService, log *logging.Domain) *FriendService {
	return &FriendService{friends: friends, bus: bus, auth: auth, trophies: trophies, log: log}
}

// SetPresence completes the two-way wiring with PresenceService once
// both services exist.
func (s *FriendService) SetPresence(p presenceFieldsProvider) { s.presence = p }

// FriendNPIDs lists A's friends, used by PresenceService's fan-out.
func (s *FriendService) FriendNPIDs(ctx context.Context, npid string) ([]string, error) {
	f, err := s.friends.Load(ctx, npid)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.Friends))
	for i, ref := range f.Friends {
		out[i] = ref.NPID
	}
	return out, nil
}

func (s *FriendService) requireTarget(ctx context.Context, target string) error {
	exists, err := s.auth.Exists(ctx, target)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// Add implements handle_friend_add.
func (s *FriendService) Add(ctx context.Context, npid, target string) (FriendOutcome, error) {
	target = trimNPID(target)
	if target == "" {
		return "", ErrMissingTargetNPID
	}
	if target == npid {
		return "", ErrCannotAddYourself
	}
	if err := s.requireTarget(ctx, target); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	if a.HasFriend(target) {
		return "", ErrAlreadyFriends
	}
	if a.HasSent(target) {
		return "", ErrRequestAlreadySent
	}

	if b.HasBlocked(npid) {
		a.AddSent(target, now)
		if err := s.friends.Save(ctx, npid, a); err != nil {
			return "", err
		}
		return FriendOutcomeRequestSent, nil
	}

	if a.HasReceived(target) || b.HasSent(npid) {
		a.RemoveSent(target)
		a.RemoveReceived(target)
		b.RemoveSent(npid)
		b.RemoveReceived(npid)
		a.AddFriend(target, now)
		b.AddFriend(npid, now)

		if err := s.friends.Save(ctx, npid, a); err != nil {
			return "", err
		}
		if err := s.friends.Save(ctx, target, b); err != nil {
			return "", err
		}
		s.log.Logf("Auto-accepted friend request between %s and %s", npid, target)
		return FriendOutcomeFriendAdded, nil
	}

	a.AddSent(target, now)
	b.AddReceived(npid, now)
	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if err := s.friends.Save(ctx, target, b); err != nil {
		return "", err
	}

	s.bus.Push(ctx, target, domain.Event{Type: domain.EventFriendsRequestReceived, NPID: npid, At: now})
	s.bus.Notify(target)
	return FriendOutcomeRequestSent, nil
}

// Accept implements handle_friend_accept.
func (s *FriendService) Accept(ctx context.Context, npid, target string) (FriendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	if !a.HasReceived(target) {
		return "", ErrNoRequestFound
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	a.RemoveReceived(target)
	a.RemoveSent(target)
	b.RemoveReceived(npid)
	b.RemoveSent(npid)
	a.AddFriend(target, now)
	b.AddFriend(npid, now)

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if err := s.friends.Save(ctx, target, b); err != nil {
		return "", err
	}
	return FriendOutcomeFriendAdded, nil
}

// Reject implements handle_friend_reject.
func (s *FriendService) Reject(ctx context.Context, npid, target string) (FriendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	if !a.HasReceived(target) {
		return "", ErrNoRequestFound
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	a.RemoveReceived(target)
	b.RemoveSent(npid)

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if err := s.friends.Save(ctx, target, b); err != nil {
		return "", err
	}
	return FriendOutcomeRequestRejected, nil
}

// Cancel implements handle_friend_cancel.
func (s *FriendService) Cancel(ctx context.Context, npid, target string) (FriendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	if !a.HasSent(target) {
		return "", ErrNoRequestFound
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	a.RemoveSent(target)
	b.RemoveReceived(npid)

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if err := s.friends.Save(ctx, target, b); err != nil {
		return "", err
	}

	s.bus.RemoveMatching(ctx, target, func(ev domain.Event) bool {
		return ev.Type == domain.EventFriendsRequestReceived && ev.NPID == npid
	})
	return FriendOutcomeRequestCancelled, nil
}

// Remove implements handle_friend_remove.
func (s *FriendService) Remove(ctx context.Context, npid, target string) (FriendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	if !a.HasFriend(target) {
		return "", ErrNotFriends
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	a.RemoveFriend(target)
	b.RemoveFriend(npid)

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if err := s.friends.Save(ctx, target, b); err != nil {
		return "", err
	}
	return FriendOutcomeFriendRemoved, nil
}

// Block implements handle_friend_block.
func (s *FriendService) Block(ctx context.Context, npid, target string) (FriendOutcome, error) {
	if target == npid {
		return "", ErrCannotBlockYourself
	}
	if err := s.requireTarget(ctx, target); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	a.AddBlocked(target, now)

	wasFriends := a.HasFriend(target)
	wasSentRequest := a.HasSent(target)
	targetSentRequest := a.HasReceived(target)

	if wasFriends {
		a.RemoveFriend(target)
		b.RemoveFriend(npid)
	}
	if wasSentRequest {
		a.RemoveSent(target)
		b.RemoveReceived(npid)
	}
	if targetSentRequest {
		a.RemoveReceived(target)
	}

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	if wasFriends || wasSentRequest {
		if err := s.friends.Save(ctx, target, b); err != nil {
			return "", err
		}
	}
	return FriendOutcomePlayerBlocked, nil
}

// Unblock implements handle_friend_unblock.
func (s *FriendService) Unblock(ctx context.Context, npid, target string) (FriendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	a.RemoveBlocked(target)

	b, err := s.friends.Load(ctx, target)
	if err != nil {
		return "", err
	}

	if b.HasSent(npid) && !a.HasReceived(target) {
		a.AddReceived(target, time.Now().Unix())
		s.bus.Notify(npid)
	}

	if err := s.friends.Save(ctx, npid, a); err != nil {
		return "", err
	}
	return FriendOutcomePlayerUnblocked, nil
}

type FriendEntry struct {
	NPID       string         `json:"npid"`
	Since      int64          `json:"since"`
	Status     string         `json:"status"`
	NowPlaying string         `json:"now_playing"`
	TrophyLevel int           `json:"trophy_level"`
}

// List implements handle_friend_list.
func (s *FriendService) List(ctx context.Context, npid, group string) (any, error) {
	f, err := s.friends.Load(ctx, npid)
	if err != nil {
		return nil, err
	}

	switch group {
	case "":
		return nil, ErrMissingGroup
	case "friends":
		entries := make([]FriendEntry, 0, len(f.Friends))
		for _, ref := range f.Friends {
			entries = append(entries, s.enrichedEntry(ctx, ref.NPID, ref.Since))
		}
		self := s.enrichedEntry(ctx, npid, 0)
		return map[string]any{"friends": entries, "self": self}, nil
	case "friend_requests":
		return f.FriendRequests, nil
	case "players_blocked":
		return f.PlayersBlocked, nil
	default:
		return nil, ErrInvalidGroup
	}
}

func (s *FriendService) enrichedEntry(ctx context.Context, npid string, since int64) FriendEntry {
	entry := FriendEntry{NPID: npid, Since: since}
	if s.presence != nil {
		fields := s.presence.PresenceFields(npid, false)
		entry.Status, _ = fields["status"].(string)
		entry.NowPlaying, _ = fields["now_playing"].(string)
	}
	if s.trophies != nil {
		summary, err := s.trophies.Summary(npid)
		if err == nil {
			entry.TrophyLevel = summary.Level
		}
	}
	return entry
}

// Relation classifies A's relationship to target, in the priority order
// handle_friend_profile uses: blocked > friends > sent > received > self > none.
func (s *FriendService) Relation(ctx context.Context, npid, target string) (string, error) {
	a, err := s.friends.Load(ctx, npid)
	if err != nil {
		return "", err
	}
	if a.HasBlocked(target) {
		return "blocked", nil
	}
	if a.HasFriend(target) {
		return "friends", nil
	}
	if a.HasSent(target) {
		return "request_sent", nil
	}
	if a.HasReceived(target) {
		return "request_received", nil
	}
	if npid == target {
		return "self", nil
	}
	return "none", nil
}

// Profile implements handle_friend_profile's response assembly beyond
// relation classification: attaching the target's friend list (or the
// requester's own, for self) plus presence and trophy fields.
func (s *FriendService) Profile(ctx context.Context, npid, target string) (map[string]any, error) {
	if err := s.requireTarget(ctx, target); err != nil {
		return nil, err
	}

	relation, err := s.Relation(ctx, npid, target)
	if err != nil {
		return nil, err
	}

	resp := map[string]any{
		"npid":         target,
		"relationship": relation,
		"friends":      []domain.FriendSince{},
	}

	switch relation {
	case "friends":
		tf, err := s.friends.Load(ctx, target)
		if err == nil {
			resp["friends"] = tf.Friends
		}
		s.attachPresence(resp, target)
	case "self":
		of, err := s.friends.Load(ctx, npid)
		if err == nil {
			resp["friends"] = of.Friends
		}
		s.attachPresence(resp, target)
	}

	if s.trophies != nil {
		if summary, err := s.trophies.Summary(target); err == nil {
			resp["trophies"] = summary
		}
	}

	return resp, nil
}

// Search implements handle_friend_search with Unicode-aware case folding
// instead of a simple ASCII lowercase, so non-Latin NPIDs search correctly.
func (s *FriendService) Search(ctx context.Context, npid, query string) ([]string, error) {
	matches, err := s.auth.Search(ctx, query, npid, foldCaser.String)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *FriendService) attachPresence(resp map[string]any, npid string) {
	if s.presence == nil {
		return
	}
	fields := s.presence.PresenceFields(npid, false)
	resp["status"] = fields["status"]
	resp["now_playing"] = fields["now_playing"]
}
