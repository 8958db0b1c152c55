package jsonfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vedran77/v3kn/internal/domain"
)

// ConversationRepo owns v3kn/conversations/<id>/{metadata.json,messages.json}
// and each participant's v3kn/Users/<npid>/conversations.json index.
type ConversationRepo struct {
	dataDir string
}

func NewConversationRepo(dataDir string) *ConversationRepo {
	return &ConversationRepo{dataDir: dataDir}
}

func (r *ConversationRepo) dir(conversationID string) string {
	return filepath.Join(r.dataDir, "conversations", conversationID)
}

func (r *ConversationRepo) LoadMetadata(ctx context.Context, conversationID string) (*domain.ConversationMetadata, error) {
	meta := &domain.ConversationMetadata{}
	if err := readJSON(filepath.Join(r.dir(conversationID), "metadata.json"), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (r *ConversationRepo) SaveMetadata(ctx context.Context, conversationID string, meta *domain.ConversationMetadata) error {
	return writeJSON(filepath.Join(r.dir(conversationID), "metadata.json"), meta)
}

func (r *ConversationRepo) DeleteConversation(ctx context.Context, conversationID string) error {
	return os.RemoveAll(r.dir(conversationID))
}

func (r *ConversationRepo) LoadMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := readJSON(filepath.Join(r.dir(conversationID), "messages.json"), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *ConversationRepo) SaveMessages(ctx context.Context, conversationID string, msgs []domain.Message) error {
	return writeJSON(filepath.Join(r.dir(conversationID), "messages.json"), &msgs)
}

func (r *ConversationRepo) LoadUserIndex(ctx context.Context, npid string) ([]string, error) {
	var ids []string
	if err := readJSON(filepath.Join(r.dataDir, "Users", npid, "conversations.json"), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ConversationRepo) SaveUserIndex(ctx context.Context, npid string, ids []string) error {
	return writeJSON(filepath.Join(r.dataDir, "Users", npid, "conversations.json"), &ids)
}
