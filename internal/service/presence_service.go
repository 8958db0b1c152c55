package service

import (
	"context"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/presence"
)

// PresenceService wires the presence registry (C3) to the event bus
// (C4) and the friend store, implementing the heartbeat fan-out rule
// and the background sweeper.
type PresenceService struct {
	registry *presence.Registry
	bus      *presence.Bus
	friends  *FriendService
	log      *logging.Domain

	timeout       time.Duration
	idleWait      time.Duration
	eventRetain   time.Duration
	statusRetain  time.Duration
}

func NewPresenceService(registry *presence.Registry, bus *presence.Bus, friends *FriendService, log *logging.Domain, timeout, idleWait, eventRetain, statusRetain time.Duration) *PresenceService {
	return &PresenceService{
		registry:     registry,
		bus:          bus,
		friends:      friends,
		log:          log,
		timeout:      timeout,
		idleWait:     idleWait,
		eventRetain:  eventRetain,
		statusRetain: statusRetain,
	}
}

// Heartbeat implements handle_friend_presence.
func (s *PresenceService) Heartbeat(ctx context.Context, npid, statusStr, nowPlaying string) error {
	if statusStr == "" {
		return ErrMissingStatus
	}
	status := domain.PresenceStatus(statusStr)
	switch status {
	case domain.StatusOnline, domain.StatusNotAvailable, domain.StatusOffline:
	default:
		return ErrInvalidStatus
	}

	now := time.Now()
	result := s.registry.Heartbeat(npid, status, nowPlaying, now)

	if !result.StatusChanged {
		return nil
	}
	s.log.Logf("Presence changed: %s -> %s", npid, statusStr)

	if status == domain.StatusOnline && result.ShouldFanOut {
		s.fanOutOnline(ctx, npid, now)
	}
	return nil
}

// fanOutOnline pushes a status_changed(online) event to every friend of
// npid that is currently present, matching push_status_event_to_friends.
func (s *PresenceService) fanOutOnline(ctx context.Context, npid string, now time.Time) {
	friendList, err := s.friends.FriendNPIDs(ctx, npid)
	if err != nil {
		return
	}
	online := s.registry.OnlineNPIDs()
	for _, friend := range friendList {
		if _, ok := online[friend]; !ok {
			continue
		}
		s.bus.Push(ctx, friend, domain.Event{
			Type:   domain.EventStatusChanged,
			NPID:   npid,
			Status: string(domain.StatusOnline),
			At:     now.Unix(),
		})
		s.bus.Notify(friend)
	}
}

// PresenceFields fills the status/now_playing (and optionally
// last_activity) triple fill_presence_fields computes.
func (s *PresenceService) PresenceFields(npid string, includeLastActivity bool) map[string]any {
	status, nowPlaying, present := s.registry.Snapshot(npid)
	if !present {
		status = domain.StatusOffline
		nowPlaying = ""
	}
	fields := map[string]any{
		"status":      string(status),
		"now_playing": nowPlaying,
	}
	if includeLastActivity {
		if ts, ok := s.registry.LastStatusChange(npid); ok {
			fields["last_activity"] = ts
		} else {
			fields["last_activity"] = 0
		}
	}
	return fields
}

// Poll implements handle_friend_poll.
func (s *PresenceService) Poll(ctx context.Context, npid string) (friendStatus []map[string]any, events []domain.Event) {
	statusEvents, otherEvents := s.bus.WaitOrDrain(ctx, npid, s.timeout)

	for _, ev := range statusEvents {
		friendStatus = append(friendStatus, map[string]any{"npid": ev.NPID, "status": ev.Status})
	}
	return friendStatus, otherEvents
}

// RunSweeper is the single long-lived monitor task (C3's sweeper). It
// runs until ctx is cancelled. A watcher goroutine broadcasts the
// registry's condition variable on cancellation so a sweeper parked in
// WaitForWork with an empty presence table (cond.Wait with no timeout)
// wakes promptly instead of blocking shutdown indefinitely.
func (s *PresenceService) RunSweeper(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.registry.Broadcast()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		s.registry.WaitForWork(s.idleWait)
		if ctx.Err() != nil {
			return
		}

		now := time.Now()
		expired := s.registry.Expired(s.timeout, now)
		for _, npid := range expired {
			s.log.Logf("User timeout detected: %s -> offline", npid)
		}

		s.registry.PruneStatusChanges(s.statusRetain, now)
		s.bus.Prune(ctx, s.eventRetain, now)
	}
}
