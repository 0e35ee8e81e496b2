package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/session"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Create(ctx context.Context, facultyID string) (*session.Created, error)
	ResolveByCode(ctx context.Context, code string) (*model.Session, error)
}

// SessionHandler は出席セッションの発行とOTP照会のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	FacultyID string `json:"facultyId"`
}

type createSessionResponse struct {
	SessionID string    `json:"sessionId"`
	QRCode    string    `json:"qrCode"`
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

type verifyOTPResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateSession は出席セッションを発行し、QRコードとOTPを返す。
// POST /create-session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), req.FacultyID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID: created.Session.ID,
		QRCode:    created.QRCode,
		OTP:       created.Session.Code,
		ExpiresAt: created.Session.ExpiresAt,
	})
}

// VerifyOTP は有効なセッションの中からOTPに一致するセッションIDを返す。
// POST /verify-otp
func (h *SessionHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	sess, err := h.service.ResolveByCode(r.Context(), req.OTP)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyOTPResponse{SessionID: sess.ID})
}
