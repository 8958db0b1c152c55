package presence

import (
	"context"
	"testing"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
)

// memEventRepo is a trivial in-memory EventRepository for bus tests.
type memEventRepo struct {
	journal domain.EventJournal
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{journal: domain.EventJournal{}}
}

func (r *memEventRepo) Load(ctx context.Context) (domain.EventJournal, error) {
	return r.journal, nil
}

func (r *memEventRepo) Save(ctx context.Context, journal domain.EventJournal) error {
	r.journal = journal
	return nil
}

func TestBusPushAndDrain(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())

	bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "bob", At: time.Now().Unix()})

	drained := bus.Drain(ctx, "alice")
	if len(drained) != 1 {
		t.Fatalf("Drain = %d events, want 1", len(drained))
	}

	if more := bus.Drain(ctx, "alice"); len(more) != 0 {
		t.Errorf("second Drain = %d events, want 0 (inbox already emptied)", len(more))
	}
}

func TestBusRemoveMatchingRetractsOne(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())

	bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "bob", At: 1})
	bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "carol", At: 2})

	bus.RemoveMatching(ctx, "alice", func(ev domain.Event) bool { return ev.NPID == "bob" })

	remaining := bus.Drain(ctx, "alice")
	if len(remaining) != 1 || remaining[0].NPID != "carol" {
		t.Errorf("remaining = %+v, want only carol's request", remaining)
	}
}

func TestBusPruneDropsOldEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())
	now := time.Now()

	bus.Push(ctx, "alice", domain.Event{Type: domain.EventStatusChanged, NPID: "bob", At: now.Add(-2 * time.Hour).Unix()})
	bus.Push(ctx, "alice", domain.Event{Type: domain.EventStatusChanged, NPID: "carol", At: now.Unix()})

	bus.Prune(ctx, time.Hour, now)

	remaining := bus.Drain(ctx, "alice")
	if len(remaining) != 1 || remaining[0].NPID != "carol" {
		t.Errorf("remaining after prune = %+v, want only carol's fresh event", remaining)
	}
}

func TestBusWaitOrDrainReturnsImmediatelyWhenPending(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())
	bus.Push(ctx, "alice", domain.Event{Type: domain.EventStatusChanged, NPID: "bob", At: time.Now().Unix()})

	start := time.Now()
	friendStatus, other := bus.WaitOrDrain(ctx, "alice", 500*time.Millisecond)
	elapsed := time.Since(start)

	if len(friendStatus) != 1 {
		t.Errorf("friendStatus = %+v, want 1 event", friendStatus)
	}
	if len(other) != 0 {
		t.Errorf("other = %+v, want none", other)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("WaitOrDrain with a pending event took %v, want near-instant", elapsed)
	}
}

func TestBusWaitOrDrainTimesOutWhenEmpty(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())

	start := time.Now()
	friendStatus, other := bus.WaitOrDrain(ctx, "alice", 150*time.Millisecond)
	elapsed := time.Since(start)

	if friendStatus != nil || other != nil {
		t.Errorf("WaitOrDrain(empty) = (%v, %v), want (nil, nil)", friendStatus, other)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("WaitOrDrain returned after %v, want at least the budget", elapsed)
	}
}

func TestBusWaitOrDrainWakesOnNotify(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())

	go func() {
		time.Sleep(30 * time.Millisecond)
		bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "bob", At: time.Now().Unix()})
		bus.Notify("alice")
	}()

	start := time.Now()
	friendStatus, other := bus.WaitOrDrain(ctx, "alice", 2*time.Second)
	elapsed := time.Since(start)

	if len(friendStatus) != 0 || len(other) != 1 {
		t.Errorf("WaitOrDrain = (%v, %v), want (none, 1 request event)", friendStatus, other)
	}
	if elapsed > time.Second {
		t.Errorf("WaitOrDrain took %v after a Notify, want well under the 2s budget", elapsed)
	}
}

func TestBusFoldEventsDedupesRequestsFromSameSender(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newMemEventRepo())

	bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "bob", At: 1})
	bus.Push(ctx, "alice", domain.Event{Type: domain.EventFriendsRequestReceived, NPID: "bob", At: 2})

	_, other := bus.WaitOrDrain(ctx, "alice", 500*time.Millisecond)
	if len(other) != 1 {
		t.Errorf("other = %+v, want exactly one deduplicated request from bob", other)
	}
}
