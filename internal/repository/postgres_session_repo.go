package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mclink/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した認証セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.VerificationSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_sessions (token, discord_user_id, guild_id, mode, consumed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.Token, session.DiscordUserID, session.GuildID, session.Mode, session.Consumed, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification session: %w", err)
	}
	return nil
}

// FindByToken は指定トークンのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.VerificationSession, error) {
	session := &model.VerificationSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, discord_user_id, guild_id, mode, consumed, created_at, notified_at
		 FROM verification_sessions
		 WHERE token = $1`,
		token,
	).Scan(&session.Token, &session.DiscordUserID, &session.GuildID, &session.Mode,
		&session.Consumed, &session.CreatedAt, &session.NotifiedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification session: %w", err)
	}

	return session, nil
}

// ListUnnotified は消費済みかつ未通知のセッションを作成日時の古い順に取得する。
func (r *PostgresSessionRepo) ListUnnotified(ctx context.Context, limit int) ([]*model.VerificationSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token, discord_user_id, guild_id, mode, consumed, created_at, notified_at
		 FROM verification_sessions
		 WHERE consumed = TRUE AND notified_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unnotified sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.VerificationSession
	for rows.Next() {
		session := &model.VerificationSession{}
		if err := rows.Scan(&session.Token, &session.DiscordUserID, &session.GuildID, &session.Mode,
			&session.Consumed, &session.CreatedAt, &session.NotifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return sessions, nil
}

// MarkNotified はセッションの通知完了日時を記録する。
func (r *PostgresSessionRepo) MarkNotified(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE verification_sessions SET notified_at = $2 WHERE token = $1`,
		token, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark session notified: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
