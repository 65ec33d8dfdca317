package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id UUID PRIMARY KEY,
            owner_id BIGINT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS project_members (
            project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            role TEXT NOT NULL DEFAULT 'viewer',
            PRIMARY KEY(project_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS link_intents (
            id BIGSERIAL PRIMARY KEY,
            project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            initiator_id BIGINT NOT NULL,
            token TEXT NOT NULL CONSTRAINT uniq_link_intent_token UNIQUE,
            tg_user_id BIGINT,
            tg_request_id BIGINT,
            chat_id BIGINT,
            status TEXT NOT NULL DEFAULT 'pending',
            expires_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            consumed_at TIMESTAMPTZ
        );`,
		// One pending intent per (project, initiator): the serialization point
		// for concurrent link requests.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pending_intent_per_initiator
            ON link_intents (project_id, initiator_id) WHERE status = 'pending';`,
		`CREATE INDEX IF NOT EXISTS idx_link_intents_tg_user
            ON link_intents (tg_user_id) WHERE status = 'pending';`,
		`CREATE INDEX IF NOT EXISTS idx_link_intents_tg_request
            ON link_intents (tg_request_id) WHERE status = 'pending';`,
		`CREATE TABLE IF NOT EXISTS telegram_chats (
            id BIGSERIAL PRIMARY KEY,
            tg_id BIGINT NOT NULL UNIQUE,
            type TEXT NOT NULL DEFAULT 'supergroup',
            title TEXT NOT NULL DEFAULT '',
            username TEXT NOT NULL DEFAULT '',
            project_id UUID REFERENCES projects(id) ON DELETE SET NULL,
            status TEXT NOT NULL DEFAULT 'pending_rights',
            added_by BIGINT,
            can_invite_users BOOLEAN NOT NULL DEFAULT FALSE,
            join_by_request BOOLEAN NOT NULL DEFAULT FALSE,
            last_synced_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS plans (
            id BIGSERIAL PRIMARY KEY,
            project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            all_channels BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS plan_channels (
            plan_id BIGINT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
            chat_id BIGINT NOT NULL REFERENCES telegram_chats(id) ON DELETE CASCADE,
            PRIMARY KEY(plan_id, chat_id)
        );`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            plan_id BIGINT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'active',
            ends_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id, status);`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
