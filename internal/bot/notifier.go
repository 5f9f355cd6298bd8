package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/mclink/internal/metrics"
	"github.com/hitoshi/mclink/internal/model"
	"github.com/hitoshi/mclink/internal/repository"
	"golang.org/x/time/rate"
)

// notifyBatchSize は1サイクルで処理する通知の最大件数。
const notifyBatchSize = 20

// EmbedSender はチャンネルへの埋め込み送信に必要なインターフェース。
// *discordgo.Sessionの部分集合として定義する。
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier は認証完了通知のポーリングワーカー。
// 消費済みかつ未通知のセッションを永続ストア経由で検出し、
// ギルドのログチャンネルへ通知を送信する。
// Webサービスとはストア以外の経路で通信しない。
type Notifier struct {
	sessions repository.SessionRepository
	links    repository.LinkRepository
	settings repository.SettingRepository
	sender   EmbedSender
	recorder metrics.Recorder
	logger   *slog.Logger
	limiter  *rate.Limiter
}

// NewNotifier はNotifierを生成する。
// 送信はDiscordのレート制限内に収まるよう毎秒1件にペーシングする。
func NewNotifier(
	sessions repository.SessionRepository,
	links repository.LinkRepository,
	settings repository.SettingRepository,
	sender EmbedSender,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		sessions: sessions,
		links:    links,
		settings: settings,
		sender:   sender,
		recorder: recorder,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Start は指定間隔のティッカーで通知ループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (n *Notifier) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.logger.Info("通知ワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("通知ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := n.RunOnce(ctx); err != nil {
				n.logger.Error("通知サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は未通知セッションを1バッチ処理する。
// 1件の送信失敗はサイクル全体を止めず、次回のポーリングで再試行される。
func (n *Notifier) RunOnce(ctx context.Context) error {
	sessions, err := n.sessions.ListUnnotified(ctx, notifyBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unnotified sessions: %w", err)
	}

	for _, session := range sessions {
		if err := n.notify(ctx, session); err != nil {
			n.logger.Error("認証完了通知の送信に失敗しました",
				slog.String("token", session.Token),
				slog.String("guild_id", session.GuildID),
				slog.String("error", err.Error()),
			)
			continue
		}
	}

	return nil
}

// notify は1件のセッションについて通知を送信し、通知済みとして記録する。
// ログチャンネルが未設定のギルドは送信せず通知済みとして扱う
// （設定されるまで毎サイクル再検出するのを避ける）。
func (n *Notifier) notify(ctx context.Context, session *model.VerificationSession) error {
	channelID, err := n.settings.Get(ctx, session.GuildID, model.SettingLogChannel)
	if err != nil {
		return fmt.Errorf("failed to load log channel setting: %w", err)
	}

	if channelID != "" {
		link, err := n.links.FindByDiscordUserID(ctx, session.DiscordUserID)
		if err != nil {
			return fmt.Errorf("failed to load account link: %w", err)
		}
		if link == nil {
			return fmt.Errorf("consumed session has no account link: %s", session.Token)
		}

		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		embed := buildNotificationEmbed(session, link)
		if _, err := n.sender.ChannelMessageSendEmbed(channelID, embed); err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
		n.recorder.RecordNotificationSent()
	}

	if err := n.sessions.MarkNotified(ctx, session.Token, time.Now()); err != nil {
		return fmt.Errorf("failed to mark session notified: %w", err)
	}

	return nil
}

// buildNotificationEmbed は認証完了通知の埋め込みを構築する。
func buildNotificationEmbed(session *model.VerificationSession, link *model.AccountLink) *discordgo.MessageEmbed {
	title := "認証が完了しました"
	color := 0x00ff00
	if session.Mode == model.VerifyModeChange {
		title = "ニックネームが変更されました"
		color = 0xffaa00
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Discordユーザー", Value: fmt.Sprintf("<@%s>", link.DiscordUserID), Inline: true},
			{Name: "Minecraftニックネーム", Value: link.MinecraftUsername, Inline: true},
			{Name: "UUID", Value: link.MinecraftUUID},
		},
		Timestamp: link.ConfirmedAt.Format(time.RFC3339),
	}
}
