package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"dm-service/internal/logging"
)

// Connect opens the database and applies the schema.
func Connect(ctx context.Context, dsn string, log logging.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info(ctx, "database migrations applied", "count", len(migrations))

	return db, nil
}

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            email TEXT NOT NULL UNIQUE,
            full_name TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            profile_pic TEXT NOT NULL DEFAULT '',
            is_verified BOOLEAN NOT NULL DEFAULT FALSE,
            verification_token TEXT,
            verification_token_expires_at TIMESTAMPTZ,
            reset_password_token TEXT,
            reset_password_expires_at TIMESTAMPTZ,
            last_login TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS users_verification_token_idx ON users (verification_token) WHERE verification_token IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS users_reset_token_idx ON users (reset_password_token) WHERE reset_password_token IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS chat_requests (
            receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (receiver_id, sender_id)
        );`,
	`CREATE TABLE IF NOT EXISTS accepted_chats (
            user_low UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            user_high UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            accepted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_low, user_high)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            text TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            reply_to JSONB,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            reaction TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx
            ON messages (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at);`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
