package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"dm-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	UpdateText(ctx context.Context, messageID, text string) (models.Message, error)
	SetReaction(ctx context.Context, messageID, emoji string) (models.Message, error)
	Delete(ctx context.Context, messageID string) error
	DeleteConversation(ctx context.Context, userA, userB string) (int64, error)
}

const messageColumns = `id, sender_id, receiver_id, text, image, reply_to, edited, COALESCE(reaction, '') AS reaction, created_at`

type messageRow struct {
	ID         string             `db:"id"`
	SenderID   string             `db:"sender_id"`
	ReceiverID string             `db:"receiver_id"`
	Text       string             `db:"text"`
	Image      string             `db:"image"`
	ReplyTo    types.NullJSONText `db:"reply_to"`
	Edited     bool               `db:"edited"`
	Reaction   string             `db:"reaction"`
	CreatedAt  time.Time          `db:"created_at"`
}

func (row messageRow) toModel() (models.Message, error) {
	msg := models.Message{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Text:       row.Text,
		Image:      row.Image,
		Edited:     row.Edited,
		Reaction:   row.Reaction,
		CreatedAt:  row.CreatedAt,
	}
	if row.ReplyTo.Valid && len(row.ReplyTo.JSONText) > 0 {
		var snap models.ReplySnapshot
		if err := row.ReplyTo.Unmarshal(&snap); err != nil {
			return models.Message{}, fmt.Errorf("decode reply snapshot: %w", err)
		}
		msg.ReplyTo = &snap
	}
	return msg, nil
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message. The reply snapshot is stored as a JSON copy.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	var reply types.NullJSONText
	if msg.ReplyTo != nil {
		raw, err := json.Marshal(msg.ReplyTo)
		if err != nil {
			return models.Message{}, fmt.Errorf("encode reply snapshot: %w", err)
		}
		reply = types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
	}

	return r.getOne(ctx, `INSERT INTO messages (sender_id, receiver_id, text, image, reply_to)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, reply)
}

// ListConversation returns the messages of the unordered pair, oldest first.
func (r *MessageRepo) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`, userA, userB)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
}

// UpdateText replaces the text and flags the message edited.
func (r *MessageRepo) UpdateText(ctx context.Context, messageID, text string) (models.Message, error) {
	return r.getOne(ctx, `UPDATE messages SET text=$2, edited=TRUE WHERE id=$1 RETURNING `+messageColumns, messageID, text)
}

// SetReaction overwrites the single reaction slot.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID, emoji string) (models.Message, error) {
	return r.getOne(ctx, `UPDATE messages SET reaction=NULLIF($2, '') WHERE id=$1 RETURNING `+messageColumns, messageID, emoji)
}

// Delete removes one message.
func (r *MessageRepo) Delete(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteConversation removes every message of the unordered pair.
func (r *MessageRepo) DeleteConversation(ctx context.Context, userA, userB string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)`, userA, userB)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MessageRepo) getOne(ctx context.Context, query string, args ...any) (models.Message, error) {
	var row messageRow
	err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel()
}
