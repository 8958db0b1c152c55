// Package presence implements C3 (the presence registry and its sweeper)
// and C4 (the per-NPID event inbox and poll-signal registry), grounded
// on original_source/v3kn/friend/src/friend.cpp's online_users/
// friend_events/friend_poll_signals globals and their single background
// monitor thread.
package presence

import (
	"sync"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
)

// Registry is the in-memory presence table (C3). All three per-NPID
// tables described in spec §4.3 live in one map so a single mutex
// guards them, matching online_users_mutex's scope in the reference.
type Registry struct {
	mu                sync.Mutex
	cond              *sync.Cond
	records           map[string]*domain.PresenceRecord
	lastStatusChange  map[string]int64
}

func NewRegistry() *Registry {
	r := &Registry{
		records:          map[string]*domain.PresenceRecord{},
		lastStatusChange: map[string]int64{},
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// HeartbeatResult tells the caller (PresenceService) whether to fan out
// a status_changed(online) event to the user's online friends.
type HeartbeatResult struct {
	StatusChanged   bool
	ShouldFanOut    bool
	WasFirstOnline  bool
}

// Heartbeat applies an online/not_available/offline update and returns
// what changed, mirroring handle_friend_presence's critical section.
func (r *Registry) Heartbeat(npid string, status domain.PresenceStatus, nowPlaying string, now time.Time) HeartbeatResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowUnix := now.Unix()
	existing, wasPresent := r.records[npid]

	if status == domain.StatusOffline {
		statusChanged := wasPresent
		delete(r.records, npid)
		if statusChanged {
			r.lastStatusChange[npid] = nowUnix
		}
		return HeartbeatResult{StatusChanged: statusChanged}
	}

	var oldStatus domain.PresenceStatus
	var oldNowPlaying string
	if wasPresent {
		oldStatus = existing.Status
		oldNowPlaying = existing.NowPlaying
	} else {
		oldStatus = domain.StatusOffline
	}

	statusChanged := oldStatus != status
	nowPlayingChanged := wasPresent && oldNowPlaying != nowPlaying

	rec := &domain.PresenceRecord{
		Status:        status,
		LastHeartbeat: nowUnix,
		NowPlaying:    nowPlaying,
	}

	pendingPoll := wasPresent && existing.PendingOnlinePoll
	if status == domain.StatusNotAvailable {
		if !wasPresent {
			pendingPoll = true
		} else {
			pendingPoll = false
		}
	}
	rec.PendingOnlinePoll = pendingPoll

	wasFirstOnline := len(r.records) == 0
	r.records[npid] = rec

	if statusChanged || nowPlayingChanged {
		r.lastStatusChange[npid] = nowUnix
	}
	if wasFirstOnline {
		r.cond.Signal()
	}

	shouldFanOut := false
	if status == domain.StatusOnline {
		shouldFanOut = (oldStatus == domain.StatusOffline) || pendingPoll
		if shouldFanOut {
			rec.PendingOnlinePoll = false
		}
	}

	return HeartbeatResult{
		StatusChanged:  statusChanged,
		ShouldFanOut:   shouldFanOut,
		WasFirstOnline: wasFirstOnline,
	}
}

// Snapshot returns the presence fields fill_presence_fields needs.
func (r *Registry) Snapshot(npid string) (status domain.PresenceStatus, nowPlaying string, present bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[npid]
	if !ok {
		return domain.StatusOffline, "", false
	}
	return rec.Status, rec.NowPlaying, true
}

func (r *Registry) LastStatusChange(npid string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.lastStatusChange[npid]
	return ts, ok
}

// OnlineNPIDs returns every NPID currently present, for fan-out filtering.
func (r *Registry) OnlineNPIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{}, len(r.records))
	for npid := range r.records {
		out[npid] = struct{}{}
	}
	return out
}

func (r *Registry) IsOnline(npid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[npid]
	return ok
}

// Broadcast wakes every WaitForWork call regardless of table state, used
// to unpark the sweeper on shutdown.
func (r *Registry) Broadcast() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cond.Broadcast()
}

// WaitForWork blocks on the condition variable exactly like
// monitor_online_users: indefinitely while empty, up to idleWait
// otherwise. It returns once the caller should re-scan.
func (r *Registry) WaitForWork(idleWait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		r.cond.Wait()
		return
	}

	timer := time.AfterFunc(idleWait, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	r.cond.Wait()
	timer.Stop()
}

// Expired sweeps presence entries whose heartbeat is older than timeout,
// removing them and recording the status-change timestamp, and returns
// the expired NPIDs for logging. No status_changed event is emitted here
// (spec §4.3/§9: no fan-out on timeout).
func (r *Registry) Expired(timeout time.Duration, now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	cutoff := now.Add(-timeout).Unix()
	for npid, rec := range r.records {
		if rec.LastHeartbeat < cutoff {
			expired = append(expired, npid)
			delete(r.records, npid)
			r.lastStatusChange[npid] = now.Unix()
		}
	}
	return expired
}

// PruneStatusChanges drops last-status-change entries older than retention.
func (r *Registry) PruneStatusChanges(retention time.Duration, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := now.Add(-retention).Unix()
	for npid, ts := range r.lastStatusChange {
		if ts < cutoff {
			delete(r.lastStatusChange, npid)
		}
	}
}
