package jsonfile

import (
	"context"
	"path/filepath"

	"github.com/vedran77/v3kn/internal/domain"
)

// EventRepo loads/rewrites the whole event journal (v3kn/events.json).
type EventRepo struct {
	path string
}

func NewEventRepo(dataDir string) *EventRepo {
	return &EventRepo{path: filepath.Join(dataDir, "events.json")}
}

func (r *EventRepo) Load(ctx context.Context) (domain.EventJournal, error) {
	journal := domain.EventJournal{}
	if err := readJSON(r.path, &journal); err != nil {
		return nil, err
	}
	return journal, nil
}

func (r *EventRepo) Save(ctx context.Context, journal domain.EventJournal) error {
	return writeJSON(r.path, journal)
}
