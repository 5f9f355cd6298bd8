package model

import "time"

// AccountLink はDiscordユーザーとMinecraftアカウントの連携を表す。
// DiscordユーザーIDごとに最大1行で、再認証は上書き更新となる。
type AccountLink struct {
	DiscordUserID     string
	MinecraftUUID     string
	MinecraftUsername string
	ConfirmedAt       time.Time
}

// GuildSetting はギルドごとのキー/バリュー設定を表す。
type GuildSetting struct {
	GuildID string
	Key     string
	Value   string
}

// ギルド設定のキー
const (
	// SettingLogChannel は認証完了通知の送信先チャンネルID。
	SettingLogChannel = "log_channel"
	// SettingBlockedRole は認証をブロックするロールID。
	SettingBlockedRole = "blocked_role"
)
