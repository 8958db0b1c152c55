package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vedran77/v3kn/internal/presence"
)

func newTestFriendService(t *testing.T) (*FriendService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	users.addUser("alice")
	users.addUser("bob")
	users.addUser("carol")

	auth := NewAuthService(users, fakeStorageRepo{}, newTestLogger(t), 1024)
	bus := presence.NewBus(newFakeEventRepo())
	friends := newFakeFriendRepo()
	return NewFriendService(friends, bus, auth, nil, newTestLogger(t)), users
}

func TestFriendAddCreatesOneSidedRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	relation, err := svc.Relation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "request_sent" {
		t.Errorf("alice->bob relation = %q, want request_sent", relation)
	}

	relation, err = svc.Relation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "request_received" {
		t.Errorf("bob->alice relation = %q, want request_received", relation)
	}
}

func TestFriendAddMutualBecomesFriends(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("alice Add bob: %v", err)
	}
	if _, err := svc.Add(ctx, "bob", "alice"); err != nil {
		t.Fatalf("bob Add alice: %v", err)
	}

	relation, err := svc.Relation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "friends" {
		t.Errorf("relation after mutual add = %q, want friends", relation)
	}
}

func TestFriendAddRejectsSelf(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Add(ctx, "alice", "alice"); !errors.Is(err, ErrCannotAddYourself) {
		t.Errorf("Add(self) = %v, want ErrCannotAddYourself", err)
	}
}

func TestFriendAddRejectsUnknownTarget(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Add(ctx, "alice", "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Add(unknown) = %v, want ErrUserNotFound", err)
	}
}

func TestFriendAddToBlockerQueuesSilently(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Block(ctx, "bob", "alice"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := svc.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Add after block: %v", err)
	}

	relation, err := svc.Relation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "blocked" {
		t.Errorf("bob->alice relation = %q, want blocked", relation)
	}
	relation, err = svc.Relation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "request_sent" {
		t.Errorf("alice's outbound request should still be recorded, got %q", relation)
	}
}

func TestFriendRemoveRequiresExistingFriendship(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Remove(ctx, "alice", "bob"); !errors.Is(err, ErrNotFriends) {
		t.Errorf("Remove(non-friend) = %v, want ErrNotFriends", err)
	}
}

func TestFriendCancelRetractsRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Cancel(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	relation, err := svc.Relation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if relation != "none" {
		t.Errorf("relation after cancel = %q, want none", relation)
	}
}

func TestFriendSearchRequiresMinimumLength(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestFriendService(t)

	if _, err := svc.Search(ctx, "alice", "bo"); !errors.Is(err, ErrQueryTooShort) {
		t.Errorf("Search(short query) = %v, want ErrQueryTooShort", err)
	}

	matches, err := svc.Search(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0] != "bob" {
		t.Errorf("Search('bob') = %v, want [bob]", matches)
	}
}
