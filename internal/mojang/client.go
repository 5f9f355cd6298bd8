// Package mojang はMojangプロフィールAPIによるMinecraftアカウント照会を提供する。
package mojang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// defaultBaseURL はMojangプロフィールAPIのベースURL。
const defaultBaseURL = "https://api.mojang.com"

// Profile はMojangが返す正規のアカウント情報を表す。
// Nameは大文字小文字を正規化した表記で、入力ニックネームと異なる場合がある。
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client はMojangプロフィールAPIのクライアント。
// ニックネームからUUIDと正規表記を1回のGETで取得する。リトライやキャッシュは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はMojangの本番エンドポイントを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// Resolve はニックネームからMinecraftプロフィールを照会する。
// アカウントが存在しない場合（404または204）は (nil, nil) を返す。
// 通信エラーおよびその他の非2xxステータスはエラーとして返す
// （存在しないニックネームとの区別は呼び出し元が判断する）。
func (c *Client) Resolve(ctx context.Context, username string) (*Profile, error) {
	reqURL := fmt.Sprintf("%s/users/profiles/minecraft/%s", c.baseURL, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "mclink/1.0 account linker")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("MojangAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	// 存在しないニックネームは404（旧APIでは204）で返る
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("MojangAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("MojangAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		c.logger.Error("MojangAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if profile.ID == "" {
		return nil, fmt.Errorf("MojangAPIのレスポンスにidが含まれていません")
	}

	return &profile, nil
}
