package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/qrattend/internal/attendance"
	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
)

// sinceLayout は集計開始日の指定形式。
const sinceLayout = "2006-01-02"

// AttendanceRecorderInterface は出席登録に必要なサービスインターフェース。
type AttendanceRecorderInterface interface {
	MarkNow(ctx context.Context, sessionID, studentID string) (*attendance.Mark, error)
}

// AttendanceReporterInterface は出席集計と出席者一覧に必要なサービスインターフェース。
type AttendanceReporterInterface interface {
	Summarize(ctx context.Context, studentID string, since time.Time) (*attendance.Report, error)
	Roster(ctx context.Context, sessionID string) ([]model.RosterEntry, error)
}

// AttendanceHandler は出席登録・出席履歴・出席者一覧のHTTPハンドラー。
type AttendanceHandler struct {
	recorder AttendanceRecorderInterface
	reporter AttendanceReporterInterface
	periods  *period.Table
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(
	recorder AttendanceRecorderInterface,
	reporter AttendanceReporterInterface,
	periods *period.Table,
) *AttendanceHandler {
	return &AttendanceHandler{
		recorder: recorder,
		reporter: reporter,
		periods:  periods,
	}
}

type markAttendanceRequest struct {
	SessionID string `json:"sessionId"`
	StudentID string `json:"studentId"`
}

type markAttendanceResponse struct {
	Message   string    `json:"message"`
	StudentID string    `json:"studentId"`
	SessionID string    `json:"sessionId"`
	Period    string    `json:"period"`
	Timestamp time.Time `json:"timestamp"`
}

type getAttendanceRequest struct {
	ID    string `json:"id"`
	Since string `json:"since"`
}

type checkInResponse struct {
	SessionID string    `json:"session_id"`
	FacultyID string    `json:"faculty_id"`
	Timestamp time.Time `json:"timestamp"`
	Period    string    `json:"period"`
}

type summaryResponse struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type getAttendanceResponse struct {
	Username string            `json:"username"`
	Records  []checkInResponse `json:"records"`
	Summary  summaryResponse   `json:"summary"`
}

type rosterRequest struct {
	SessionID string `json:"session_id"`
}

type rosterEntryResponse struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Timestamp   time.Time `json:"timestamp"`
	FacultyID   string    `json:"faculty_id"`
	Period      string    `json:"period"`
}

// MarkAttendance は学生の出席を現在時刻で登録する。
// POST /mark-attendance
func (h *AttendanceHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	mark, err := h.recorder.MarkNow(r.Context(), strings.TrimSpace(req.SessionID), strings.TrimSpace(req.StudentID))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, markAttendanceResponse{
		Message:   "Attendance marked successfully",
		StudentID: mark.StudentID,
		SessionID: mark.SessionID,
		Period:    mark.Period.Label,
		Timestamp: mark.Timestamp,
	})
}

// GetAttendance は学生の出席履歴と出席率を返す。
// sinceを指定した場合はその日の0時（学校のタイムゾーン）以降の記録に限る。
// POST /get-attendance
func (h *AttendanceHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	var req getAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	since, err := h.parseSince(req.Since)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	report, err := h.reporter.Summarize(r.Context(), req.ID, since)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(report.Records) == 0 {
		handleServiceError(w, model.NewNoRecordsError())
		return
	}

	records := make([]checkInResponse, 0, len(report.Records))
	for _, c := range report.Records {
		records = append(records, checkInResponse{
			SessionID: c.SessionID,
			FacultyID: c.FacultyID,
			Timestamp: c.Timestamp,
			Period:    c.PeriodLabel,
		})
	}

	writeJSON(w, http.StatusOK, getAttendanceResponse{
		Username: report.Username,
		Records:  records,
		Summary: summaryResponse{
			Present:    report.Summary.Present,
			Absent:     report.Summary.Absent,
			Total:      report.Summary.Total,
			Percentage: report.Summary.Percentage,
		},
	})
}

// AdminAttendanceRecords はセッションの出席者一覧を記録時刻の昇順で返す。
// POST /admin-attendance-records
func (h *AttendanceHandler) AdminAttendanceRecords(w http.ResponseWriter, r *http.Request) {
	var req rosterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	entries, err := h.reporter.Roster(r.Context(), req.SessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(entries) == 0 {
		handleServiceError(w, model.NewNoRecordsError())
		return
	}

	resp := make([]rosterEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, rosterEntryResponse{
			StudentID:   e.StudentID,
			StudentName: e.StudentName,
			Timestamp:   e.Timestamp,
			FacultyID:   e.FacultyID,
			Period:      e.PeriodLabel,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseSince はYYYY-MM-DD形式の日付を時限表のタイムゾーンの0時に変換する。
// 空文字列は全期間を表すゼロ値を返す。
func (h *AttendanceHandler) parseSince(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	since, err := time.ParseInLocation(sinceLayout, value, h.periods.Location())
	if err != nil {
		return time.Time{}, model.NewInvalidRequestError("since must be formatted as YYYY-MM-DD")
	}
	return since, nil
}
