// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleStudent は出席を記録する学生。
	RoleStudent Role = "student"
	// RoleFaculty は出席セッションを発行する教員。
	RoleFaculty Role = "faculty"
)

// Valid は定義済みの役割かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュで、平文パスワードは保持しない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
