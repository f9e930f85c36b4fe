package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/message"
)

type messageRow struct {
	ID         string    `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Content    string    `db:"content"`
	CreatedAt  null.Time `db:"created_at"`
	IsRead     bool      `db:"is_read"`
}

func (row messageRow) message() message.Message {
	return message.Message{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt.Time,
		IsRead:     row.IsRead,
	}
}

func messagesFromRows(rows []messageRow) []message.Message {
	messages := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.message())
	}
	return messages
}

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	msg.ID = uuid.New().String()
	query := `
		INSERT INTO message (id, sender_id, receiver_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt, msg.IsRead)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "creating message")
	}
	return msg, nil
}

func (repo messageRepository) QueryMessagesByUser(ctx context.Context, userID string) ([]message.Message, error) {
	var rows []messageRow
	query := `SELECT * FROM message WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return messagesFromRows(rows), nil
}

func (repo messageRepository) QueryConversation(ctx context.Context, userID, partnerID string) ([]message.Message, error) {
	var rows []messageRow
	query := `
		SELECT * FROM message
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, userID, partnerID); err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	return messagesFromRows(rows), nil
}

func (repo messageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string) error {
	query := `UPDATE message SET is_read = TRUE WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read`
	if _, err := repo.db.ExecContext(ctx, query, receiverID, senderID); err != nil {
		return errors.Wrap(err, "marking conversation read")
	}
	return nil
}

func (repo messageRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM message WHERE receiver_id = $1 AND NOT is_read`
	if err := repo.db.GetContext(ctx, &count, query, receiverID); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return count, nil
}
