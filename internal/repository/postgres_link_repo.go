package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mclink/internal/model"
)

// PostgresLinkRepo はPostgreSQLを使用したアカウント連携リポジトリ。
type PostgresLinkRepo struct {
	db *sql.DB
}

// NewPostgresLinkRepo はPostgresLinkRepoを生成する。
func NewPostgresLinkRepo(db *sql.DB) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: db}
}

// FindByDiscordUserID は指定DiscordユーザーのAccountLinkを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByDiscordUserID(ctx context.Context, discordUserID string) (*model.AccountLink, error) {
	link := &model.AccountLink{}
	err := r.db.QueryRowContext(ctx,
		`SELECT discord_user_id, minecraft_uuid, minecraft_username, confirmed_at
		 FROM account_links
		 WHERE discord_user_id = $1`,
		discordUserID,
	).Scan(&link.DiscordUserID, &link.MinecraftUUID, &link.MinecraftUsername, &link.ConfirmedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account link: %w", err)
	}

	return link, nil
}

// ConfirmWithSession はアカウント連携の書き込みとセッションの消費を
// 同一トランザクションでコミットする。どちらか一方だけが永続化された状態を残さない。
//
// セッションの消費は条件付きUPDATE（consumed = FALSEの場合のみ）で行い、
// 同一トークンへの並行submitのうち成功できるのは1つだけになる。
// 影響行数が0の場合はErrSessionAlreadyUsedを返す。
// modeがVerifyModeChangeで連携行が存在しない場合はErrLinkNotFoundを返す。
func (r *PostgresLinkRepo) ConfirmWithSession(ctx context.Context, token string, link *model.AccountLink, mode model.VerifyMode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// セッションを条件付きで消費（クレーム）する
	result, err := tx.ExecContext(ctx,
		`UPDATE verification_sessions SET consumed = TRUE WHERE token = $1 AND consumed = FALSE`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to claim session: %w", err)
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get claimed rows: %w", err)
	}
	if claimed == 0 {
		return ErrSessionAlreadyUsed
	}

	// 連携行を書き込む
	if mode == model.VerifyModeChange {
		result, err = tx.ExecContext(ctx,
			`UPDATE account_links
			 SET minecraft_uuid = $2, minecraft_username = $3
			 WHERE discord_user_id = $1`,
			link.DiscordUserID, link.MinecraftUUID, link.MinecraftUsername,
		)
		if err != nil {
			return fmt.Errorf("failed to update account link: %w", err)
		}
		updated, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get updated rows: %w", err)
		}
		if updated == 0 {
			return ErrLinkNotFound
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_links (discord_user_id, minecraft_uuid, minecraft_username, confirmed_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (discord_user_id) DO UPDATE
			 SET minecraft_uuid = EXCLUDED.minecraft_uuid,
			     minecraft_username = EXCLUDED.minecraft_username,
			     confirmed_at = EXCLUDED.confirmed_at`,
			link.DiscordUserID, link.MinecraftUUID, link.MinecraftUsername, link.ConfirmedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert account link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ LinkRepository = (*PostgresLinkRepo)(nil)
