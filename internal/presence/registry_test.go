package presence

import (
	"testing"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
)

func TestHeartbeatFirstOnlineTransition(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	result := r.Heartbeat("alice", domain.StatusOnline, "", now)
	if !result.StatusChanged {
		t.Error("first heartbeat should report a status change")
	}
	if !result.ShouldFanOut {
		t.Error("offline -> online should fan out")
	}

	status, _, present := r.Snapshot("alice")
	if !present || status != domain.StatusOnline {
		t.Errorf("Snapshot = (%v, present=%v), want (online, true)", status, present)
	}
}

func TestHeartbeatNoChangeDoesNotReportChange(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Heartbeat("alice", domain.StatusOnline, "game-a", now)
	result := r.Heartbeat("alice", domain.StatusOnline, "game-a", now.Add(time.Second))

	if result.StatusChanged {
		t.Error("repeating the same status/now_playing should not report a change")
	}
}

func TestHeartbeatNowPlayingChangeWithoutStatusChange(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Heartbeat("alice", domain.StatusOnline, "game-a", now)
	result := r.Heartbeat("alice", domain.StatusOnline, "game-b", now.Add(time.Second))

	if result.ShouldFanOut {
		t.Error("a now_playing-only change should not fan out a status_changed event")
	}
}

func TestHeartbeatOfflineRemovesRecord(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Heartbeat("alice", domain.StatusOnline, "", now)
	result := r.Heartbeat("alice", domain.StatusOffline, "", now.Add(time.Second))

	if !result.StatusChanged {
		t.Error("online -> offline should report a change")
	}
	if r.IsOnline("alice") {
		t.Error("alice should no longer be present after going offline")
	}
}

func TestExpiredSweepsStaleHeartbeats(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	r.Heartbeat("alice", domain.StatusOnline, "", base)
	r.Heartbeat("bob", domain.StatusOnline, "", base.Add(20*time.Second))

	expired := r.Expired(10*time.Second, base.Add(20*time.Second))
	if len(expired) != 1 || expired[0] != "alice" {
		t.Errorf("Expired = %v, want [alice]", expired)
	}
	if r.IsOnline("alice") {
		t.Error("alice should be pruned after expiry")
	}
	if !r.IsOnline("bob") {
		t.Error("bob's fresh heartbeat should survive the sweep")
	}
}

func TestNotAvailableQueuesPendingFanOut(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Heartbeat("alice", domain.StatusNotAvailable, "", now)
	result := r.Heartbeat("alice", domain.StatusOnline, "", now.Add(time.Second))

	if !result.ShouldFanOut {
		t.Error("returning online from not_available with a pending poll should fan out")
	}
}
