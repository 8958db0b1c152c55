package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMessageService(t *testing.T) *MessageService {
	t.Helper()
	users := newFakeUserRepo()
	users.addUser("alice")
	users.addUser("bob")
	users.addUser("carol")

	auth := NewAuthService(users, fakeStorageRepo{}, newTestLogger(t), 1024)
	return NewMessageService(newFakeConversationRepo(), auth, 200*time.Millisecond)
}

func TestMessageCreateRequiresTwoDistinctParticipants(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	if _, err := svc.Create(ctx, "alice", []string{"alice"}, "hi"); !errors.Is(err, ErrNotEnoughParticipants) {
		t.Errorf("Create(self only) = %v, want ErrNotEnoughParticipants", err)
	}
}

func TestMessageCreateRejectsUnknownParticipant(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	if _, err := svc.Create(ctx, "alice", []string{"nobody"}, "hi"); !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("Create(unknown participant) = %v, want ErrParticipantNotFound", err)
	}
}

func TestMessageCreateDeduplicatesAndGeneratesPairID(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob", "bob", "alice"}, "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "alice_bob" {
		t.Errorf("conversation id = %q, want alice_bob", id)
	}

	if _, err := svc.Create(ctx, "alice", []string{"bob"}, "hello again"); !errors.Is(err, ErrConversationAlreadyExists) {
		t.Errorf("Create(duplicate) = %v, want ErrConversationAlreadyExists", err)
	}
}

func TestMessageSendRequiresMembership(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob"}, "hi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Send(ctx, "carol", id, "intruding"); !errors.Is(err, ErrNotInConversation) {
		t.Errorf("Send(non-member) = %v, want ErrNotInConversation", err)
	}

	if err := svc.Send(ctx, "bob", id, "hey"); err != nil {
		t.Errorf("Send(member): %v", err)
	}
}

func TestMessageSendValidatesLength(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob"}, "hi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Send(ctx, "alice", id, ""); !errors.Is(err, ErrMissingMessage) {
		t.Errorf("Send(empty) = %v, want ErrMissingMessage", err)
	}

	long := make([]byte, 2001)
	if err := svc.Send(ctx, "alice", id, string(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("Send(2001 bytes) = %v, want ErrMessageTooLong", err)
	}
}

func TestMessageDeleteMismatchedSenderSkipsOnlyThatTimestamp(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob"}, "first")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Send(ctx, "bob", id, "second"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := svc.Read(ctx, "alice", id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	// alice attempts to delete both timestamps; the second belongs to bob.
	deleted, err := svc.Delete(ctx, "alice", id, []int64{msgs[0].Timestamp, msgs[1].Timestamp})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1 (only alice's own message)", deleted)
	}

	remaining, err := svc.Read(ctx, "alice", id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(remaining) != 1 || remaining[0].From != "bob" {
		t.Errorf("remaining = %+v, want bob's message only", remaining)
	}
}

func TestMessagePollReturnsOnlyUnreadFromOthers(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob"}, "hi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Send(ctx, "alice", id, "self authored"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	received := svc.Poll(ctx, "alice", 0)
	if len(received) != 0 {
		t.Errorf("alice's own messages should not surface in her poll, got %+v", received)
	}

	received = svc.Poll(ctx, "bob", 0)
	if len(received) != 2 {
		t.Errorf("bob's poll should see both of alice's messages, got %d", len(received))
	}
}

func TestMessagePollTimesOutWithinBudget(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	if _, err := svc.Create(ctx, "alice", []string{"bob"}, "hi"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	start := time.Now()
	received := svc.Poll(ctx, "alice", time.Now().Unix()+1000)
	elapsed := time.Since(start)

	if len(received) != 0 {
		t.Errorf("expected no messages, got %+v", received)
	}
	if elapsed > time.Second {
		t.Errorf("poll took %v, want within budget (~200ms)", elapsed)
	}
}

func TestMessageDeleteConversationRequiresCreator(t *testing.T) {
	ctx := context.Background()
	svc := newTestMessageService(t)

	id, err := svc.Create(ctx, "alice", []string{"bob"}, "hi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.DeleteConversation(ctx, "bob", id); !errors.Is(err, ErrNotCreator) {
		t.Errorf("DeleteConversation(non-creator) = %v, want ErrNotCreator", err)
	}
	if err := svc.DeleteConversation(ctx, "alice", id); err != nil {
		t.Errorf("DeleteConversation(creator): %v", err)
	}
	if _, err := svc.Read(ctx, "alice", id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Read(deleted conversation) = %v, want ErrConversationNotFound", err)
	}
}
