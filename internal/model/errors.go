// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, conflict, expired, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryExpired    = "expired"
	CategoryAuth       = "auth"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeMissingFields       = "MISSING_FIELDS"
	ErrCodeOutsidePeriod       = "OUTSIDE_PERIOD"
	ErrCodeAlreadyMarked       = "ALREADY_MARKED"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired      = "SESSION_EXPIRED"
	ErrCodeCodeNotFound        = "CODE_NOT_FOUND"
	ErrCodeCodeAmbiguous       = "CODE_AMBIGUOUS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeNoRecords           = "NO_RECORDS"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeAccountExists       = "ACCOUNT_EXISTS"
	ErrCodeSessionCreateFailed = "SESSION_CREATE_FAILED"
	ErrCodeSignupFailed        = "SIGNUP_FAILED"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewMissingFieldsError は必須項目が欠けている場合のエラーを生成する。
func NewMissingFieldsError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("Missing required fields: %v", fields),
		Category: CategoryValidation,
		Action:   "必須項目を入力してから再度送信してください。",
	}
}

// NewOutsidePeriodError は時限外に出席登録しようとした場合のエラーを生成する。
func NewOutsidePeriodError() *APIError {
	return &APIError{
		Code:     ErrCodeOutsidePeriod,
		Message:  "Attendance can only be marked during a class period",
		Category: CategoryValidation,
		Action:   "授業時間内に再度お試しください。",
	}
}

// NewAlreadyMarkedError は同一時限で既に出席済みの場合のエラーを生成する。
func NewAlreadyMarkedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMarked,
		Message:  "Attendance already marked",
		Category: CategoryConflict,
		Action:   "この時限の出席は既に記録されています。",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("Session not found: %s", sessionID),
		Category: CategoryNotFound,
		Action:   "QRコードを読み直すか、教員に新しいセッションの発行を依頼してください。",
	}
}

// NewSessionExpiredError はセッションの有効期限が切れている場合のエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Session has expired. Attendance cannot be marked",
		Category: CategoryExpired,
		Action:   "教員に新しいセッションの発行を依頼してください。",
	}
}

// NewCodeNotFoundError は有効なセッションに一致するOTPがない場合のエラーを生成する。
func NewCodeNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeNotFound,
		Message:  "Invalid OTP",
		Category: CategoryNotFound,
		Action:   "OTPを確認してください。有効期限が切れている可能性があります。",
	}
}

// NewCodeAmbiguousError は同じOTPを持つ有効なセッションが複数ある場合のエラーを生成する。
func NewCodeAmbiguousError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeAmbiguous,
		Message:  "OTP matches more than one active session",
		Category: CategoryConflict,
		Action:   "QRコードを読み取って出席を登録してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: CategoryNotFound,
		Action:   "ログインし直してください。",
	}
}

// NewNoRecordsError は出席記録が1件もない場合のエラーを生成する。
func NewNoRecordsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoRecords,
		Message:  "No attendance records found",
		Category: CategoryNotFound,
		Action:   "出席が記録されるまでお待ちください。",
	}
}

// NewInvalidCredentialsError はログイン情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: CategoryAuth,
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewInvalidRoleError は未定義の役割が指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Invalid role: %s", role),
		Category: CategoryValidation,
		Action:   "役割には student または faculty を指定してください。",
	}
}

// NewAccountExistsError は同じメールアドレスのアカウントが既に存在する場合のエラーを生成する。
func NewAccountExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExists,
		Message:  "An account with this email already exists",
		Category: CategoryConflict,
		Action:   "ログイン画面からサインインしてください。",
	}
}

// NewSessionCreateFailedError はセッション作成に失敗した場合のエラーを生成する。
func NewSessionCreateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionCreateFailed,
		Message:  "Failed to create session",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSignupFailedError はアカウント作成に失敗した場合のエラーを生成する。
func NewSignupFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignupFailed,
		Message:  "Signup failed",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPersistenceError は永続化層の障害を表すエラーを生成する。
func NewPersistenceError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  fmt.Sprintf("Failed to %s", operation),
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: CategoryValidation,
		Action:   "リクエスト形式を確認してください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later",
		Category: CategorySystem,
		Action:   "指定された時間待ってから再度お試しください。",
	}
}

// NewInternalError は分類されない内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
