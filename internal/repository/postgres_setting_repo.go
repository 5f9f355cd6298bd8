package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSettingRepo はPostgreSQLを使用したギルド設定リポジトリ。
type PostgresSettingRepo struct {
	db *sql.DB
}

// NewPostgresSettingRepo はPostgresSettingRepoを生成する。
func NewPostgresSettingRepo(db *sql.DB) *PostgresSettingRepo {
	return &PostgresSettingRepo{db: db}
}

// Get は指定ギルドの設定値を取得する。見つからない場合は空文字列を返す。
func (r *PostgresSettingRepo) Get(ctx context.Context, guildID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT setting_value FROM guild_settings WHERE guild_id = $1 AND setting_key = $2`,
		guildID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get guild setting: %w", err)
	}

	return value, nil
}

// Set は設定値を冪等にUPSERTする。
func (r *PostgresSettingRepo) Set(ctx context.Context, guildID, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, setting_key, setting_value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, setting_key) DO UPDATE
		 SET setting_value = EXCLUDED.setting_value`,
		guildID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set guild setting: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingRepository = (*PostgresSettingRepo)(nil)
