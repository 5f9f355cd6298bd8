// Package bot はDiscord側のサービスを提供する。
// 認証メニューの設置、認証リンクの発行、設定コマンド、認証完了通知を含む。
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/mclink/internal/model"
	"github.com/hitoshi/mclink/internal/repository"
)

// ボタンのカスタムID
const (
	customIDAuth   = "mclink_auth"
	customIDChange = "mclink_change"
)

// VerifyStarter は認証セッションの発行に必要なインターフェース。
// verify.Serviceの部分集合として定義する。
type VerifyStarter interface {
	// StartVerification は認証セッションを発行し、認証ページのURLを返す。
	StartVerification(ctx context.Context, discordUserID, guildID string, mode model.VerifyMode) (string, error)
	// HasLink は指定Discordユーザーにアカウント連携が存在するかを返す。
	HasLink(ctx context.Context, discordUserID string) (bool, error)
}

// Bot はDiscordゲートウェイに接続し、コマンドとボタン操作を処理する。
type Bot struct {
	session  *discordgo.Session
	verify   VerifyStarter
	settings repository.SettingRepository
	prefix   string
	logger   *slog.Logger
}

// New はBotを生成する。tokenはDiscordのBotトークンを指定する。
func New(token string, verify VerifyStarter, settings repository.SettingRepository, prefix string, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	b := &Bot{
		session:  session,
		verify:   verify,
		settings: settings,
		prefix:   prefix,
		logger:   logger,
	}

	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMembers

	return b, nil
}

// Start はDiscordゲートウェイへの接続を開く。
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.logger.Info("discord bot connected")
	return nil
}

// Stop はDiscordゲートウェイへの接続を閉じる。
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Session は通知送信用に内部のdiscordgoセッションを返す。
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// onMessageCreate はプレフィックスコマンドを処理する。
// 対応コマンド: authmenu、authset logchannel <#channel>
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}

	args := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "authmenu":
		b.handleAuthMenu(s, m)
	case "authset":
		b.handleAuthSet(s, m, args[1:])
	}
}

// handleAuthMenu は認証メニューの埋め込みとボタンを設置する。管理者のみ実行できる。
func (b *Bot) handleAuthMenu(s *discordgo.Session, m *discordgo.MessageCreate) {
	if !isAdmin(m.Member) {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Minecraftサーバー認証",
		Description: "Minecraftアカウントを連携するには、下の**連携する**ボタンを押して認証を完了してください。",
		Color:       0x00ff00,
	}

	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embed: embed,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "マインクラフト認証",
						Style:    discordgo.PrimaryButton,
						CustomID: customIDAuth,
						Emoji:    &discordgo.ComponentEmoji{Name: "⛏️"},
					},
					discordgo.Button{
						Label:    "ニックネーム変更",
						Style:    discordgo.SecondaryButton,
						CustomID: customIDChange,
						Emoji:    &discordgo.ComponentEmoji{Name: "✏️"},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Error("failed to post auth menu",
			slog.String("channel_id", m.ChannelID),
			slog.String("error", err.Error()),
		)
	}
}

// handleAuthSet はギルド設定コマンドを処理する。管理者のみ実行できる。
// 使用法: authset logchannel <#channel> | authset blockedrole <@&role>
func (b *Bot) handleAuthSet(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if !isAdmin(m.Member) {
		return
	}
	if len(args) < 1 {
		b.reply(s, m.ChannelID, "使用法: "+b.prefix+"authset logchannel <#チャンネル> | "+b.prefix+"authset blockedrole <@&ロール>")
		return
	}

	switch args[0] {
	case "logchannel":
		if len(args) < 2 {
			b.reply(s, m.ChannelID, "ログチャンネルをメンションしてください。")
			return
		}
		channelID := parseChannelMention(args[1])
		if channelID == "" {
			b.reply(s, m.ChannelID, "有効なチャンネルではありません。")
			return
		}
		if err := b.settings.Set(context.Background(), m.GuildID, model.SettingLogChannel, channelID); err != nil {
			b.logger.Error("failed to save log channel setting",
				slog.String("guild_id", m.GuildID),
				slog.String("error", err.Error()),
			)
			b.reply(s, m.ChannelID, "設定の保存に失敗しました。")
			return
		}
		b.reply(s, m.ChannelID, "ログチャンネルを <#"+channelID+"> に設定しました。")
	case "blockedrole":
		if len(args) < 2 {
			b.reply(s, m.ChannelID, "ブロックするロールをメンションしてください。")
			return
		}
		roleID := parseRoleMention(args[1])
		if roleID == "" {
			b.reply(s, m.ChannelID, "有効なロールではありません。")
			return
		}
		if err := b.settings.Set(context.Background(), m.GuildID, model.SettingBlockedRole, roleID); err != nil {
			b.logger.Error("failed to save blocked role setting",
				slog.String("guild_id", m.GuildID),
				slog.String("error", err.Error()),
			)
			b.reply(s, m.ChannelID, "設定の保存に失敗しました。")
			return
		}
		b.reply(s, m.ChannelID, "認証をブロックするロールを <@&"+roleID+"> に設定しました。")
	default:
		b.reply(s, m.ChannelID, "不明な設定です: "+args[0])
	}
}

// onInteractionCreate は認証メニューのボタン押下を処理する。
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		return
	}

	ctx := context.Background()
	userID := i.Member.User.ID

	switch i.MessageComponentData().CustomID {
	case customIDAuth:
		b.handleAuthButton(ctx, s, i, userID)
	case customIDChange:
		b.handleChangeButton(ctx, s, i, userID)
	}
}

// handleAuthButton は初回連携のボタン押下を処理する。
// ブロックロール保持者と連携済みユーザーは拒否する。
func (b *Bot) handleAuthButton(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	blockedRole, err := b.settings.Get(ctx, i.GuildID, model.SettingBlockedRole)
	if err != nil {
		b.logger.Error("failed to load blocked role setting", slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "サーバーエラーが発生しました。しばらく待ってから再度お試しください。")
		return
	}
	if blockedRole != "" && hasRole(i.Member, blockedRole) {
		b.respondEphemeral(s, i, "認証がブロックされているユーザーです。")
		return
	}

	linked, err := b.verify.HasLink(ctx, userID)
	if err != nil {
		b.logger.Error("failed to check existing link", slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "サーバーエラーが発生しました。しばらく待ってから再度お試しください。")
		return
	}
	if linked {
		b.respondEphemeral(s, i, "すでに認証が完了しているユーザーです。")
		return
	}

	verifyURL, err := b.verify.StartVerification(ctx, userID, i.GuildID, model.VerifyModeAuth)
	if err != nil {
		b.logger.Error("failed to start verification", slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "認証リンクの発行に失敗しました。")
		return
	}

	b.respondEphemeralEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "マインクラフト認証リンク",
		Description: fmt.Sprintf("下のリンクから認証を完了してください。\n\n[**認証ページを開く**](%s)", verifyURL),
		Color:       0x00ff00,
	})
}

// handleChangeButton はニックネーム変更のボタン押下を処理する。連携済みユーザーのみ使用できる。
func (b *Bot) handleChangeButton(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	verifyURL, err := b.verify.StartVerification(ctx, userID, i.GuildID, model.VerifyModeChange)
	if err != nil {
		var verr *model.VerifyError
		if errors.As(err, &verr) && verr.Code == model.ErrCodeNoExistingLink {
			b.respondEphemeral(s, i, "認証がまだ完了していません。先に連携ボタンから認証してください。")
			return
		}
		b.logger.Error("failed to start change verification", slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "変更リンクの発行に失敗しました。")
		return
	}

	b.respondEphemeralEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "ニックネーム変更リンク",
		Description: fmt.Sprintf("下のリンクからニックネームを変更してください。\n\n[**変更ページを開く**](%s)", verifyURL),
		Color:       0xffaa00,
	})
}

// respondEphemeral は本人にのみ見えるテキスト応答を返す。
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

// respondEphemeralEmbed は本人にのみ見える埋め込み応答を返す。
func (b *Bot) respondEphemeralEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

// reply はチャンネルにテキストメッセージを送信する。
func (b *Bot) reply(s *discordgo.Session, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		b.logger.Error("failed to send message",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
	}
}

// isAdmin はメンバーが管理者権限を持つかを返す。
func isAdmin(member *discordgo.Member) bool {
	return member != nil && member.Permissions&discordgo.PermissionAdministrator != 0
}

// hasRole はメンバーが指定ロールを持つかを返す。
func hasRole(member *discordgo.Member, roleID string) bool {
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// parseChannelMention は<#123>形式のメンションからチャンネルIDを取り出す。
// メンション形式でない場合は数字のみの入力をそのまま受け付ける。
func parseChannelMention(s string) string {
	return parseSnowflake(strings.TrimSuffix(strings.TrimPrefix(s, "<#"), ">"))
}

// parseRoleMention は<@&123>形式のメンションからロールIDを取り出す。
// メンション形式でない場合は数字のみの入力をそのまま受け付ける。
func parseRoleMention(s string) string {
	return parseSnowflake(strings.TrimSuffix(strings.TrimPrefix(s, "<@&"), ">"))
}

func parseSnowflake(s string) string {
	if s == "" {
		return ""
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return s
}
