// Package model はドメインモデルを定義する。
package model

import "time"

// VerifyMode は認証フローの種別を表す。
type VerifyMode string

const (
	// VerifyModeAuth は初回のアカウント連携を示す。
	VerifyModeAuth VerifyMode = "auth"
	// VerifyModeChange は既存連携のニックネーム変更を示す。
	VerifyModeChange VerifyMode = "change"
)

// ParseVerifyMode は文字列をVerifyModeに変換する。
// 空文字列およびサポート外の値はVerifyModeAuthにフォールバックする。
func ParseVerifyMode(s string) VerifyMode {
	if s == string(VerifyModeChange) {
		return VerifyModeChange
	}
	return VerifyModeAuth
}

// VerificationSession は1回限りのWeb認証セッションを表す。
// トークンをキーとして発行され、認証成功時に消費される。
// 消費されなかったセッションは無期限にPENDINGのまま残る。
type VerificationSession struct {
	Token         string
	DiscordUserID string
	GuildID       string
	Mode          VerifyMode
	Consumed      bool
	CreatedAt     time.Time
	NotifiedAt    *time.Time
}
