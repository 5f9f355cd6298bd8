package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/mclink/internal/model"
)

// PostgresLinkRepoがLinkRepositoryインターフェースを満たすことを検証
func TestPostgresLinkRepo_ImplementsInterface(t *testing.T) {
	var _ LinkRepository = (*PostgresLinkRepo)(nil)
}

// NewPostgresLinkRepoが正しく初期化されることを検証
func TestNewPostgresLinkRepo_Initializes(t *testing.T) {
	repo := NewPostgresLinkRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// AccountLinkモデルのフィールドが正しく構築されることを検証
func TestPostgresLinkRepo_LinkModel_Fields(t *testing.T) {
	now := time.Now()
	link := &model.AccountLink{
		DiscordUserID:     "123456789012345678",
		MinecraftUUID:     "069a79f444e94726a5befca90e38aaf5",
		MinecraftUsername: "Notch",
		ConfirmedAt:       now,
	}

	if link.DiscordUserID != "123456789012345678" {
		t.Errorf("link.DiscordUserID = %q", link.DiscordUserID)
	}
	if link.MinecraftUUID != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("link.MinecraftUUID = %q", link.MinecraftUUID)
	}
	if link.MinecraftUsername != "Notch" {
		t.Errorf("link.MinecraftUsername = %q", link.MinecraftUsername)
	}
}

// セッション消費の競合を表すセンチネルエラーが区別できることを検証
func TestSentinelErrors_Distinct(t *testing.T) {
	if ErrSessionAlreadyUsed == ErrLinkNotFound {
		t.Fatal("センチネルエラーは別の値であるべき")
	}
	if ErrSessionAlreadyUsed.Error() == "" || ErrLinkNotFound.Error() == "" {
		t.Fatal("センチネルエラーにはメッセージが必要")
	}
}
