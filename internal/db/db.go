package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS interests (
            id SERIAL PRIMARY KEY,
            slug TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            grouping TEXT NOT NULL DEFAULT '',
            premium BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS user_interests (
            user_id INT NOT NULL,
            interest_slug TEXT NOT NULL REFERENCES interests(slug),
            PRIMARY KEY(user_id, interest_slug)
        );`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
            id SERIAL PRIMARY KEY,
            from_user INT NOT NULL,
            to_user INT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending', 'accepted', 'declined')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (from_user <> to_user)
        );`,
		// One pending request per ordered pair; resolved rows are retained.
		`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_idx
            ON friend_requests (from_user, to_user) WHERE status = 'pending';`,
		`CREATE TABLE IF NOT EXISTS friendships (
            user_id INT NOT NULL,
            friend_id INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(user_id, friend_id)
        );`,
		`CREATE TABLE IF NOT EXISTS threads (
            id SERIAL PRIMARY KEY,
            user1_id INT NOT NULL,
            user2_id INT NOT NULL,
            context_id INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (user1_id < user2_id)
        );`,
		// One contextual thread per (pair, context), one direct thread per pair.
		// Concurrent creators race on these indexes and the loser re-reads.
		`CREATE UNIQUE INDEX IF NOT EXISTS threads_pair_context_idx
            ON threads (user1_id, user2_id, context_id) WHERE context_id IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS threads_pair_direct_idx
            ON threads (user1_id, user2_id) WHERE context_id IS NULL;`,
		`CREATE TABLE IF NOT EXISTS thread_participants (
            thread_id INT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('initiator', 'counterpart')),
            PRIMARY KEY(thread_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            thread_id INT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            kind TEXT NOT NULL
                CHECK (kind IN ('text', 'image', 'audio', 'video', 'location')),
            content TEXT NOT NULL,
            duration_seconds INT,
            size_bytes BIGINT,
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            read_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            deleted_scope TEXT CHECK (deleted_scope IN ('self', 'everyone')),
            deleted_by INT
        );`,
		`CREATE INDEX IF NOT EXISTS messages_thread_created_idx
            ON messages (thread_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS contacts (
            owner_id INT NOT NULL,
            contact_id INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(owner_id, contact_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
