package repository

import (
	"context"

	"github.com/vedran77/v3kn/internal/domain"
)

// UserRepository owns v3kn/users.json: the whole user table plus its
// embedded token index is loaded and rewritten in one piece, mirroring
// the reference load_users/save_users pair. Transactional read-modify-
// write sequences (account_mutex in the reference design) are the
// caller's (service layer's) responsibility.
type UserRepository interface {
	LoadTable(ctx context.Context) (*domain.UserTable, error)
	SaveTable(ctx context.Context, table *domain.UserTable) error
}

// FriendRepository owns v3kn/Users/<npid>/friends.json.
type FriendRepository interface {
	Load(ctx context.Context, npid string) (*domain.FriendFile, error)
	Save(ctx context.Context, npid string, f *domain.FriendFile) error
}

// EventRepository owns v3kn/events.json.
type EventRepository interface {
	Load(ctx context.Context) (domain.EventJournal, error)
	Save(ctx context.Context, journal domain.EventJournal) error
}

// ConversationRepository owns v3kn/conversations/<id>/* and each
// participant's per-user conversations.json index.
type ConversationRepository interface {
	LoadMetadata(ctx context.Context, conversationID string) (*domain.ConversationMetadata, error)
	SaveMetadata(ctx context.Context, conversationID string, meta *domain.ConversationMetadata) error
	DeleteConversation(ctx context.Context, conversationID string) error

	LoadMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SaveMessages(ctx context.Context, conversationID string, msgs []domain.Message) error

	LoadUserIndex(ctx context.Context, npid string) ([]string, error)
	SaveUserIndex(ctx context.Context, npid string, ids []string) error
}

// StorageRepository owns per-user save/trophy/avatar blobs and quota.
type StorageRepository interface {
	AvatarPath(npid string) string
	SaveDataDir(npid, titleID string) string
	TrophyDir(npid, trophyID string) string
	TrophySummaryPath(npid string) string
	TrophyConfDir(trophyID string) string
	EnsureUserDirs(npid string) error
	RemoveUser(npid string) error
	RenameUser(oldNPID, newNPID string) error
}
