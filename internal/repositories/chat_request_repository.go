package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var (
	ErrRequestExists   = errors.New("chat request already sent")
	ErrRequestNotFound = errors.New("chat request not found")
)

// ChatRequestRepository stores pending and accepted chat requests.
type ChatRequestRepository interface {
	Create(ctx context.Context, receiverID, senderID string) (models.ChatRequest, error)
	ListPending(ctx context.Context, receiverID string) ([]models.PendingRequest, error)
	Accept(ctx context.Context, receiverID, senderID string) error
	IsAccepted(ctx context.Context, userA, userB string) (bool, error)
}

// ChatRequestRepo is a sqlx implementation of ChatRequestRepository.
type ChatRequestRepo struct {
	db *sqlx.DB
}

// NewChatRequestRepo constructs a ChatRequestRepo.
func NewChatRequestRepo(db *sqlx.DB) *ChatRequestRepo {
	return &ChatRequestRepo{db: db}
}

// Create records a pending request. A second request from the same sender
// while the first is pending fails with ErrRequestExists.
func (r *ChatRequestRepo) Create(ctx context.Context, receiverID, senderID string) (models.ChatRequest, error) {
	var req models.ChatRequest
	err := r.db.GetContext(ctx, &req, `INSERT INTO chat_requests (receiver_id, sender_id) VALUES ($1, $2)
        ON CONFLICT (receiver_id, sender_id) DO NOTHING
        RETURNING receiver_id, sender_id, created_at`, receiverID, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRequest{}, ErrRequestExists
	}
	return req, err
}

// ListPending returns the receiver's pending requests with sender profiles.
func (r *ChatRequestRepo) ListPending(ctx context.Context, receiverID string) ([]models.PendingRequest, error) {
	var reqs []models.PendingRequest
	err := r.db.SelectContext(ctx, &reqs, `SELECT cr.sender_id, u.full_name, u.profile_pic, cr.created_at
        FROM chat_requests cr JOIN users u ON u.id = cr.sender_id
        WHERE cr.receiver_id=$1
        ORDER BY cr.created_at ASC`, receiverID)
	return reqs, err
}

// Accept consumes the pending request and records the accepted pair.
func (r *ChatRequestRepo) Accept(ctx context.Context, receiverID, senderID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM chat_requests WHERE receiver_id=$1 AND sender_id=$2`, receiverID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRequestNotFound
	}

	low, high := orderedPair(receiverID, senderID)
	if _, err = tx.ExecContext(ctx, `INSERT INTO accepted_chats (user_low, user_high) VALUES ($1, $2)
        ON CONFLICT (user_low, user_high) DO NOTHING`, low, high); err != nil {
		return err
	}
	return tx.Commit()
}

// IsAccepted reports whether a request between the pair was ever accepted.
func (r *ChatRequestRepo) IsAccepted(ctx context.Context, userA, userB string) (bool, error) {
	low, high := orderedPair(userA, userB)
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accepted_chats WHERE user_low=$1 AND user_high=$2)`, low, high)
	return exists, err
}

func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
