package jsonfile

import (
	"context"
	"path/filepath"

	"github.com/vedran77/v3kn/internal/domain"
)

// UserRepo loads/rewrites v3kn/users.json whole, per C1's design: a
// single file, no partial writes.
type UserRepo struct {
	path string
}

func NewUserRepo(dataDir string) *UserRepo {
	return &UserRepo{path: filepath.Join(dataDir, "users.json")}
}

func (r *UserRepo) LoadTable(ctx context.Context) (*domain.UserTable, error) {
	table := domain.NewUserTable()
	if err := readJSON(r.path, table); err != nil {
		return nil, err
	}
	if table.Users == nil {
		table.Users = map[string]*domain.User{}
	}
	if table.Tokens == nil {
		table.Tokens = map[string]string{}
	}
	return table, nil
}

func (r *UserRepo) SaveTable(ctx context.Context, table *domain.UserTable) error {
	return writeJSON(r.path, table)
}
