package presence

import (
	"context"
	"sync"
	"time"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/repository"
)

// pollSignal is the per-NPID condition variable friend.cpp calls
// FriendPollSignal: a notify target with a waiter count so the registry
// knows when it is safe to reclaim the entry.
type pollSignal struct {
	mu       sync.Mutex
	cond     *sync.Cond
	waiters  int
	notified bool
}

func newPollSignal() *pollSignal {
	s := &pollSignal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Bus is the C4 event bus: inbox storage plus the refcounted signal
// registry long-poll handlers wait on.
type Bus struct {
	events repository.EventRepository

	journalMu sync.Mutex
	journal   domain.EventJournal

	signalsMu sync.Mutex
	signals   map[string]*pollSignal
}

func NewBus(events repository.EventRepository) *Bus {
	return &Bus{events: events, journal: domain.EventJournal{}, signals: map[string]*pollSignal{}}
}

// Load seeds the in-memory journal from disk at startup.
func (b *Bus) Load(ctx context.Context) error {
	journal, err := b.events.Load(ctx)
	if err != nil {
		return err
	}
	b.journalMu.Lock()
	b.journal = journal
	b.journalMu.Unlock()
	return nil
}

func (b *Bus) persist(ctx context.Context) {
	b.journalMu.Lock()
	snapshot := make(domain.EventJournal, len(b.journal))
	for k, v := range b.journal {
		snapshot[k] = append([]domain.Event{}, v...)
	}
	b.journalMu.Unlock()
	_ = b.events.Save(ctx, snapshot)
}

// Push appends an event to npid's inbox and persists the journal.
func (b *Bus) Push(ctx context.Context, npid string, ev domain.Event) {
	b.journalMu.Lock()
	b.journal[npid] = append(b.journal[npid], ev)
	b.journalMu.Unlock()
	b.persist(ctx)
}

// RemoveMatching removes the first event in npid's inbox matching pred,
// used by friend-cancel to retract an already-pushed request event.
func (b *Bus) RemoveMatching(ctx context.Context, npid string, pred func(domain.Event) bool) {
	b.journalMu.Lock()
	list := b.journal[npid]
	for i, ev := range list {
		if pred(ev) {
			b.journal[npid] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	b.journalMu.Unlock()
	b.persist(ctx)
}

// Drain empties npid's inbox and returns everything that was pending.
func (b *Bus) Drain(ctx context.Context, npid string) []domain.Event {
	b.journalMu.Lock()
	list := b.journal[npid]
	delete(b.journal, npid)
	b.journalMu.Unlock()
	if len(list) > 0 {
		b.persist(ctx)
	}
	return list
}

// Prune drops events older than retention across every inbox, deleting
// an inbox entirely once it is empty.
func (b *Bus) Prune(ctx context.Context, retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention).Unix()

	b.journalMu.Lock()
	changed := false
	for npid, list := range b.journal {
		kept := list[:0:0]
		for _, ev := range list {
			if ev.At >= cutoff {
				kept = append(kept, ev)
			} else {
				changed = true
			}
		}
		if len(kept) == 0 {
			delete(b.journal, npid)
		} else {
			b.journal[npid] = kept
		}
	}
	b.journalMu.Unlock()

	if changed {
		b.persist(ctx)
	}
}

func (b *Bus) getOrCreateSignal(npid string) *pollSignal {
	b.signalsMu.Lock()
	defer b.signalsMu.Unlock()
	s, ok := b.signals[npid]
	if !ok {
		s = newPollSignal()
		b.signals[npid] = s
	}
	return s
}

// Notify wakes exactly one waiter on npid's signal, or is a no-op if
// nobody is waiting (notify_friend_poll).
func (b *Bus) Notify(npid string) {
	b.signalsMu.Lock()
	s, ok := b.signals[npid]
	b.signalsMu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.notified = true
	s.cond.Signal()
	s.mu.Unlock()
}

// waiterGuard is the Go equivalent of the reference's RAII
// FriendPollWaiter: Release must run via defer on every exit path.
type waiterGuard struct {
	bus    *Bus
	npid   string
	signal *pollSignal
}

func (b *Bus) acquireWaiter(npid string) *waiterGuard {
	s := b.getOrCreateSignal(npid)
	s.mu.Lock()
	s.waiters++
	s.mu.Unlock()
	return &waiterGuard{bus: b, npid: npid, signal: s}
}

func (g *waiterGuard) Release() {
	g.signal.mu.Lock()
	g.signal.waiters--
	empty := g.signal.waiters == 0
	g.signal.mu.Unlock()

	if !empty {
		return
	}
	g.bus.signalsMu.Lock()
	if g.bus.signals[g.npid] == g.signal {
		delete(g.bus.signals, g.npid)
	}
	g.bus.signalsMu.Unlock()
}

// WaitOrDrain implements handle_friend_poll: register a waiter, drain
// the inbox on entry and after every wake, fold status_changed events
// and dedupe friends_request_received, and return as soon as there is
// anything to report or the budget elapses.
func (b *Bus) WaitOrDrain(ctx context.Context, npid string, budget time.Duration) (friendStatus []domain.Event, other []domain.Event) {
	guard := b.acquireWaiter(npid)
	defer guard.Release()

	deadline := time.Now().Add(budget)

	for {
		events := b.Drain(ctx, npid)
		friendStatus, other = foldEvents(events)
		if len(friendStatus) > 0 || len(other) > 0 {
			return friendStatus, other
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		waitOnSignal(guard.signal, remaining)

		if ctx.Err() != nil {
			return nil, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

// waitOnSignal blocks until Notify fires or timeout elapses. It checks
// s.notified under the same lock used by Notify before parking in
// cond.Wait, closing the window where a Notify between the caller's
// Drain and this call would otherwise be missed until the next timeout.
func waitOnSignal(s *pollSignal, timeout time.Duration) {
	s.mu.Lock()
	if s.notified {
		s.notified = false
		s.mu.Unlock()
		return
	}

	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
		close(done)
	})

	s.cond.Wait()
	s.notified = false
	s.mu.Unlock()
	timer.Stop()

	select {
	case <-done:
	default:
	}
}

func foldEvents(events []domain.Event) (friendStatus []domain.Event, other []domain.Event) {
	seenRequestFrom := map[string]bool{}
	for _, ev := range events {
		switch ev.Type {
		case domain.EventStatusChanged:
			friendStatus = append(friendStatus, ev)
		case domain.EventFriendsRequestReceived:
			if seenRequestFrom[ev.NPID] {
				continue
			}
			seenRequestFrom[ev.NPID] = true
			other = append(other, ev)
		default:
			other = append(other, ev)
		}
	}
	return friendStatus, other
}
