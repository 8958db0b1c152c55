package jsonfile

import (
	"context"
	"path/filepath"

	"github.com/vedran77/v3kn/internal/domain"
)

// FriendRepo loads/rewrites a single NPID's friends.json whole.
type FriendRepo struct {
	dataDir string
}

func NewFriendRepo(dataDir string) *FriendRepo {
	return &FriendRepo{dataDir: dataDir}
}

func (r *FriendRepo) path(npid string) string {
	return filepath.Join(r.dataDir, "Users", npid, "friends.json")
}

func (r *FriendRepo) Load(ctx context.Context, npid string) (*domain.FriendFile, error) {
	f := domain.NewFriendFile()
	if err := readJSON(r.path(npid), f); err != nil {
		return nil, err
	}
	if f.Friends == nil {
		f.Friends = []domain.FriendSince{}
	}
	if f.FriendRequests.Sent == nil {
		f.FriendRequests.Sent = []domain.SentRef{}
	}
	if f.FriendRequests.Received == nil {
		f.FriendRequests.Received = []domain.ReceivedRef{}
	}
	if f.PlayersBlocked == nil {
		f.PlayersBlocked = []domain.BlockedRef{}
	}
	return f, nil
}

func (r *FriendRepo) Save(ctx context.Context, npid string, f *domain.FriendFile) error {
	return writeJSON(r.path(npid), f)
}
