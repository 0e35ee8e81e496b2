package model

import "time"

// AttendanceRecord は1件の出席記録を表す。
// PeriodStartとPeriodLabelは記録時点の時限枠で、
// (StudentID, PeriodStart) の一意制約により同一時限の二重記録を防ぐ。
type AttendanceRecord struct {
	ID          string
	SessionID   string
	StudentID   string
	Timestamp   time.Time
	PeriodStart time.Time
	PeriodLabel string
}

// CheckIn は学生の出席履歴1件を表す。セッションの発行教員を含む。
type CheckIn struct {
	SessionID   string
	FacultyID   string
	Timestamp   time.Time
	PeriodLabel string
}

// RosterEntry はセッションごとの出席者一覧の1行を表す。
type RosterEntry struct {
	StudentID   string
	StudentName string
	FacultyID   string
	Timestamp   time.Time
	PeriodLabel string
}

// Summary は学生の出席集計を表す。
type Summary struct {
	Present    int
	Absent     int
	Total      int
	Percentage int
}
