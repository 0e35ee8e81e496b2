package model

import "time"

// Session は教員が発行する時間制限付きの出席セッションを表す。
// 作成後は変更されず、削除もされない。有効期限は読み取り時にのみ判定する。
type Session struct {
	ID        string
	FacultyID string
	Code      string // 6桁の数字コード（OTP）
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsLive は指定時刻にセッションが有効かどうかを返す。
// 有効期限ちょうどの時刻は有効とみなす。
func (s *Session) IsLive(at time.Time) bool {
	return !at.After(s.ExpiresAt)
}
