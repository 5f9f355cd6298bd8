package model

import "fmt"

// VerifyError は認証フローの統一エラーフォーマットを表す。
// Web側に表示する原因カテゴリと対処方法を含む。
type VerifyError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: session, lookup, link, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *VerifyError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidSession  = "INVALID_SESSION"
	ErrCodeAlreadyUsed     = "ALREADY_USED"
	ErrCodeUnknownUsername = "UNKNOWN_USERNAME"
	ErrCodeNoExistingLink  = "NO_EXISTING_LINK"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidSessionError は無効なトークンに対するエラーを生成する。
func NewInvalidSessionError() *VerifyError {
	return &VerifyError{
		Code:     ErrCodeInvalidSession,
		Message:  "有効な認証セッションではありません。",
		Category: "session",
		Action:   "Discordから新しい認証リンクを発行してください。",
	}
}

// NewAlreadyUsedError は消費済みセッションに対するエラーを生成する。
func NewAlreadyUsedError() *VerifyError {
	return &VerifyError{
		Code:     ErrCodeAlreadyUsed,
		Message:  "この認証リンクはすでに使用されています。",
		Category: "session",
		Action:   "再認証する場合はDiscordから新しいリンクを発行してください。",
	}
}

// NewUnknownUsernameError は存在しないMinecraftニックネームに対するエラーを生成する。
// セッションは消費されないため、同じリンクで再入力できる。
func NewUnknownUsernameError(username string) *VerifyError {
	return &VerifyError{
		Code:     ErrCodeUnknownUsername,
		Message:  fmt.Sprintf("存在しないMinecraftニックネームです: %s", username),
		Category: "lookup",
		Action:   "ニックネームのスペルを確認して再度入力してください。",
	}
}

// NewNoExistingLinkError は連携のないユーザーの変更フローに対するエラーを生成する。
func NewNoExistingLinkError() *VerifyError {
	return &VerifyError{
		Code:     ErrCodeNoExistingLink,
		Message:  "アカウント連携がまだ完了していません。",
		Category: "link",
		Action:   "まず認証フローでアカウント連携を完了してください。",
	}
}

// NewInvalidRequestError は解析できないリクエストボディに対するエラーを生成する。
func NewInvalidRequestError() *VerifyError {
	return &VerifyError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInternalError は内部エラーの統一レスポンスを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *VerifyError {
	return &VerifyError{
		Code:     ErrCodeInternal,
		Message:  "サーバーエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
