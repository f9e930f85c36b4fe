package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages = append(repo.db.messages, &msg)
	return msg, nil
}

func (repo *messageRepository) QueryMessagesByUser(ctx context.Context, userID string) ([]message.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	messages := make([]message.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			messages = append(messages, *msg)
		}
	}
	return messages, nil
}

func (repo *messageRepository) QueryConversation(ctx context.Context, userID, partnerID string) ([]message.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	messages := make([]message.Message, 0)
	for _, msg := range repo.db.messages {
		if (msg.SenderID == userID && msg.ReceiverID == partnerID) ||
			(msg.SenderID == partnerID && msg.ReceiverID == userID) {
			messages = append(messages, *msg)
		}
	}
	return messages, nil
}

func (repo *messageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, msg := range repo.db.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID {
			msg.IsRead = true
		}
	}
	return nil
}

func (repo *messageRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, msg := range repo.db.messages {
		if msg.ReceiverID == receiverID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}
