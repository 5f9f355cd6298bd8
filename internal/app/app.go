// Package app はアプリケーションの初期化と起動モードの振り分けを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/mclink/internal/bot"
	"github.com/hitoshi/mclink/internal/config"
	"github.com/hitoshi/mclink/internal/database"
	"github.com/hitoshi/mclink/internal/handler"
	"github.com/hitoshi/mclink/internal/logger"
	"github.com/hitoshi/mclink/internal/metrics"
	"github.com/hitoshi/mclink/internal/mojang"
	"github.com/hitoshi/mclink/internal/repository"
	"github.com/hitoshi/mclink/internal/verify"
	"github.com/hitoshi/mclink/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandBot:
		return runBot(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWeb認証サーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	mojangClient := mojang.NewClient(
		&http.Client{Timeout: cfg.LookupTimeout},
		slog.Default(),
		cfg.MojangAPIURL,
	)
	verifyService := verify.NewService(sessionRepo, linkRepo, mojangClient, collector, cfg.BaseURL)

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		VerifyService:   verifyService,
		HealthChecker:   db,
		Logger:          slog.Default(),
		MetricsGatherer: registry,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("verification server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down verification server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("verification server stopped gracefully")
	return nil
}

// runBot はDiscord Botモードで起動する。
// DB接続を開き、Botと通知ワーカー、クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runBot(cfg *config.Config) error {
	if cfg.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required for bot mode")
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (bot)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)
	settingRepo := repository.NewPostgresSettingRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	mojangClient := mojang.NewClient(
		&http.Client{Timeout: cfg.LookupTimeout},
		slog.Default(),
		cfg.MojangAPIURL,
	)
	verifyService := verify.NewService(sessionRepo, linkRepo, mojangClient, collector, cfg.BaseURL)

	// 5. Botの初期化と接続
	discordBot, err := bot.New(cfg.DiscordBotToken, verifyService, settingRepo, cfg.CommandPrefix, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	if err := discordBot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	defer discordBot.Stop()

	// 6. 通知ワーカーの初期化
	notifier := bot.NewNotifier(
		sessionRepo, linkRepo, settingRepo,
		discordBot.Session(), collector, slog.Default(),
	)

	// 7. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.SessionRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down bot...")
		cancel()
	}()

	slog.Info("bot starting",
		slog.Duration("notify_interval", cfg.NotifyInterval),
		slog.Int("session_retention_days", cfg.SessionRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 通知ワーカーをメインgoroutineで実行（ブロッキング）
	notifier.Start(ctx, cfg.NotifyInterval)

	slog.Info("bot stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
