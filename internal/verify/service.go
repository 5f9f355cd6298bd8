// Package verify はアカウント連携の認証フローを提供する。
// セッション発行、トークン検証、Mojang照会、連携コミットのオーケストレーションを行う。
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mclink/internal/metrics"
	"github.com/hitoshi/mclink/internal/model"
	"github.com/hitoshi/mclink/internal/mojang"
	"github.com/hitoshi/mclink/internal/repository"
)

// AccountResolver はニックネームからMinecraftプロフィールを照会するインターフェース。
// mojang.Clientの部分集合として定義する。
type AccountResolver interface {
	// Resolve はニックネームを照会する。アカウントが存在しない場合は (nil, nil) を返す。
	Resolve(ctx context.Context, username string) (*mojang.Profile, error)
}

// Service は認証フローのビジネスロジックを提供する。
type Service struct {
	sessionRepo repository.SessionRepository
	linkRepo    repository.LinkRepository
	resolver    AccountResolver
	recorder    metrics.Recorder
	baseURL     string
}

// NewService はServiceを生成する。
func NewService(
	sessionRepo repository.SessionRepository,
	linkRepo repository.LinkRepository,
	resolver AccountResolver,
	recorder metrics.Recorder,
	baseURL string,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		linkRepo:    linkRepo,
		resolver:    resolver,
		recorder:    recorder,
		baseURL:     baseURL,
	}
}

// StartVerification は新しい認証セッションを発行し、認証ページのURLを返す。
// modeがVerifyModeChangeの場合は既存のアカウント連携が必要で、
// 存在しない場合はNO_EXISTING_LINKエラーを返す。
func (s *Service) StartVerification(ctx context.Context, discordUserID, guildID string, mode model.VerifyMode) (string, error) {
	if mode == model.VerifyModeChange {
		link, err := s.linkRepo.FindByDiscordUserID(ctx, discordUserID)
		if err != nil {
			return "", fmt.Errorf("failed to check existing link: %w", err)
		}
		if link == nil {
			return "", model.NewNoExistingLinkError()
		}
	}

	session := &model.VerificationSession{
		Token:         uuid.New().String(),
		DiscordUserID: discordUserID,
		GuildID:       guildID,
		Mode:          mode,
		Consumed:      false,
		CreatedAt:     time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create verification session: %w", err)
	}

	slog.Info("verification session created",
		slog.String("discord_user_id", discordUserID),
		slog.String("guild_id", guildID),
		slog.String("mode", string(mode)),
	)

	verifyURL := fmt.Sprintf("%s/verify/%s", s.baseURL, session.Token)
	if mode == model.VerifyModeChange {
		verifyURL += "?mode=change"
	}
	return verifyURL, nil
}

// GetSession はトークンからセッションを取得する。見つからない場合はnilを返す。
// 認証ページの表示判定に使用する。
func (s *Service) GetSession(ctx context.Context, token string) (*model.VerificationSession, error) {
	return s.sessionRepo.FindByToken(ctx, token)
}

// GetLink は指定DiscordユーザーのAccountLinkを取得する。見つからない場合はnilを返す。
func (s *Service) GetLink(ctx context.Context, discordUserID string) (*model.AccountLink, error) {
	return s.linkRepo.FindByDiscordUserID(ctx, discordUserID)
}

// HasLink は指定Discordユーザーにアカウント連携が存在するかを返す。
func (s *Service) HasLink(ctx context.Context, discordUserID string) (bool, error) {
	link, err := s.linkRepo.FindByDiscordUserID(ctx, discordUserID)
	if err != nil {
		return false, err
	}
	return link != nil, nil
}

// Submit はトークンとニックネームを検証し、アカウント連携をコミットする。
//
// 状態遷移:
//   - トークン不明 → INVALID_SESSION
//   - 消費済みセッション → ALREADY_USED
//   - Mojang照会で未検出 → UNKNOWN_USERNAME（セッションは消費されず再入力できる）
//   - changeモードで連携なし → NO_EXISTING_LINK（書き込みなし）
//   - 成功 → 連携の書き込みとセッション消費を1トランザクションでコミット
//
// ドメイン上の失敗は*model.VerifyErrorとして返り、
// それ以外のエラーはインフラ障害を示す。
func (s *Service) Submit(ctx context.Context, token, username string, mode model.VerifyMode) error {
	// 1. セッションの検証
	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find verification session: %w", err)
	}
	if session == nil {
		return s.fail(model.NewInvalidSessionError())
	}
	if session.Consumed {
		return s.fail(model.NewAlreadyUsedError())
	}

	// 2. Mojang照会
	start := time.Now()
	profile, err := s.resolver.Resolve(ctx, username)
	s.recorder.RecordLookupLatency(time.Since(start))
	if err != nil {
		// 照会先の障害も未検出として扱う（ユーザーには再入力を促す）
		slog.Warn("account lookup failed, treating as unknown username",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return s.fail(model.NewUnknownUsernameError(username))
	}
	if profile == nil {
		return s.fail(model.NewUnknownUsernameError(username))
	}

	// 3. 連携のコミット（セッション消費と同一トランザクション）
	link := &model.AccountLink{
		DiscordUserID:     session.DiscordUserID,
		MinecraftUUID:     profile.ID,
		MinecraftUsername: profile.Name,
		ConfirmedAt:       time.Now(),
	}

	if err := s.linkRepo.ConfirmWithSession(ctx, token, link, mode); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyUsed) {
			// 並行submitのクレーム競合に敗れた側
			return s.fail(model.NewAlreadyUsedError())
		}
		if errors.Is(err, repository.ErrLinkNotFound) {
			return s.fail(model.NewNoExistingLinkError())
		}
		return fmt.Errorf("failed to confirm account link: %w", err)
	}

	s.recorder.RecordVerifySuccess(string(mode))
	slog.Info("account link confirmed",
		slog.String("discord_user_id", session.DiscordUserID),
		slog.String("minecraft_uuid", profile.ID),
		slog.String("minecraft_username", profile.Name),
		slog.String("mode", string(mode)),
	)

	return nil
}

// fail は失敗メトリクスを記録してドメインエラーをそのまま返す。
func (s *Service) fail(verr *model.VerifyError) error {
	s.recorder.RecordVerifyFailure(verr.Code)
	return verr
}
