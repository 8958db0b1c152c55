package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/logging"
)

// fakeUserRepo is an in-memory UserRepository for service-layer tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	table *domain.UserTable
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{table: &domain.UserTable{Users: map[string]*domain.User{}, Tokens: map[string]string{}}}
}

func (r *fakeUserRepo) LoadTable(ctx context.Context) (*domain.UserTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table, nil
}

func (r *fakeUserRepo) SaveTable(ctx context.Context, table *domain.UserTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = table
	return nil
}

func (r *fakeUserRepo) addUser(npid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table.Users[npid] = &domain.User{NPID: npid}
}

// fakeStorageRepo is an in-memory StorageRepository for service-layer tests.
type fakeStorageRepo struct{}

func (fakeStorageRepo) AvatarPath(npid string) string          { return "/tmp/" + npid + "/avatar.png" }
func (fakeStorageRepo) SaveDataDir(npid, titleID string) string { return "/tmp/" + npid + "/save/" + titleID }
func (fakeStorageRepo) TrophyDir(npid, trophyID string) string { return "/tmp/" + npid + "/trophy/" + trophyID }
func (fakeStorageRepo) TrophySummaryPath(npid string) string   { return "/tmp/" + npid + "/trophies.xml" }
func (fakeStorageRepo) TrophyConfDir(trophyID string) string   { return "/tmp/conf/" + trophyID }
func (fakeStorageRepo) EnsureUserDirs(npid string) error       { return nil }
func (fakeStorageRepo) RemoveUser(npid string) error           { return nil }
func (fakeStorageRepo) RenameUser(oldNPID, newNPID string) error { return nil }

// fakeFriendRepo is an in-memory FriendRepository for service-layer tests.
type fakeFriendRepo struct {
	mu    sync.Mutex
	files map[string]*domain.FriendFile
}

func newFakeFriendRepo() *fakeFriendRepo {
	return &fakeFriendRepo{files: map[string]*domain.FriendFile{}}
}

func (r *fakeFriendRepo) Load(ctx context.Context, npid string) (*domain.FriendFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[npid]; ok {
		return f, nil
	}
	return domain.NewFriendFile(), nil
}

func (r *fakeFriendRepo) Save(ctx context.Context, npid string, f *domain.FriendFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[npid] = f
	return nil
}

// fakeEventRepo is an in-memory EventRepository for service-layer tests.
type fakeEventRepo struct {
	mu      sync.Mutex
	journal domain.EventJournal
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{journal: domain.EventJournal{}}
}

func (r *fakeEventRepo) Load(ctx context.Context) (domain.EventJournal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal, nil
}

func (r *fakeEventRepo) Save(ctx context.Context, journal domain.EventJournal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = journal
	return nil
}

// fakeConversationRepo is an in-memory ConversationRepository for
// message-service tests.
type fakeConversationRepo struct {
	mu        sync.Mutex
	metadata  map[string]*domain.ConversationMetadata
	messages  map[string][]domain.Message
	userIndex map[string][]string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		metadata:  map[string]*domain.ConversationMetadata{},
		messages:  map[string][]domain.Message{},
		userIndex: map[string][]string{},
	}
}

func (r *fakeConversationRepo) LoadMetadata(ctx context.Context, id string) (*domain.ConversationMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata[id], nil
}

func (r *fakeConversationRepo) SaveMetadata(ctx context.Context, id string, meta *domain.ConversationMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[id] = meta
	return nil
}

func (r *fakeConversationRepo) DeleteConversation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.metadata, id)
	delete(r.messages, id)
	return nil
}

func (r *fakeConversationRepo) LoadMessages(ctx context.Context, id string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message{}, r.messages[id]...), nil
}

func (r *fakeConversationRepo) SaveMessages(ctx context.Context, id string, msgs []domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[id] = msgs
	return nil
}

func (r *fakeConversationRepo) LoadUserIndex(ctx context.Context, npid string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.userIndex[npid]...), nil
}

func (r *fakeConversationRepo) SaveUserIndex(ctx context.Context, npid string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIndex[npid] = ids
	return nil
}

func newTestLogger(t *testing.T) *logging.Domain {
	t.Helper()
	dir := t.TempDir()
	log, err := logging.NewDomain(filepath.Join(dir, "v3kn.log"), filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("newTestLogger: %v", err)
	}
	return log
}
