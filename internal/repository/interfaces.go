// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/mclink/internal/model"
)

// ErrSessionAlreadyUsed はセッションがすでに消費済みであることを示す。
// 条件付きUPDATEの影響行数が0だった場合に返される。
var ErrSessionAlreadyUsed = errors.New("verification session already consumed")

// ErrLinkNotFound は変更対象のアカウント連携が存在しないことを示す。
var ErrLinkNotFound = errors.New("account link not found")

// SessionRepository は認証セッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.VerificationSession) error

	// FindByToken は指定トークンのセッションを取得する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.VerificationSession, error)

	// ListUnnotified は消費済みかつ未通知のセッションを作成日時の古い順に取得する。
	ListUnnotified(ctx context.Context, limit int) ([]*model.VerificationSession, error)

	// MarkNotified はセッションの通知完了日時を記録する。
	MarkNotified(ctx context.Context, token string, at time.Time) error
}

// LinkRepository はアカウント連携の永続化インターフェース。
type LinkRepository interface {
	// FindByDiscordUserID は指定DiscordユーザーのAccountLinkを取得する。
	// 見つからない場合はnilを返す。
	FindByDiscordUserID(ctx context.Context, discordUserID string) (*model.AccountLink, error)

	// ConfirmWithSession はアカウント連携の書き込みとセッションの消費を
	// 同一トランザクションでコミットする。
	// セッションの消費は「consumed = FALSEの場合のみ」の条件付きUPDATEであり、
	// 影響行数が0の場合はErrSessionAlreadyUsedを返してロールバックする。
	// modeがVerifyModeChangeで連携行が存在しない場合はErrLinkNotFoundを返す。
	ConfirmWithSession(ctx context.Context, token string, link *model.AccountLink, mode model.VerifyMode) error
}

// SettingRepository はギルド設定の永続化インターフェース。
type SettingRepository interface {
	// Get は指定ギルドの設定値を取得する。見つからない場合は空文字列を返す。
	Get(ctx context.Context, guildID, key string) (string, error)

	// Set は設定値を冪等にUPSERTする。
	Set(ctx context.Context, guildID, key, value string) error
}
