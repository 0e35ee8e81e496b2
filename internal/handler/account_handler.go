package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/qrattend/internal/account"
	"github.com/hitoshi/qrattend/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	CheckUser(ctx context.Context, email string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Signup(ctx context.Context, in account.SignupInput) (*model.User, error)
}

// AccountHandler はアカウント照会・ログイン・サインアップのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

type checkUserRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// userResponse はクライアントが保持するユーザー情報。パスワードハッシュは含めない。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type checkUserResponse struct {
	Exists bool `json:"exists"`
	*userResponse
}

type loginResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user,omitempty"`
	Message string        `json:"message,omitempty"`
	Code    string        `json:"code,omitempty"`
}

type signupResponse struct {
	Message string        `json:"message"`
	User    *userResponse `json:"user"`
}

// CheckUser はメールアドレスのアカウントが存在するかを返す。
// POST /check-user
func (h *AccountHandler) CheckUser(w http.ResponseWriter, r *http.Request) {
	var req checkUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.CheckUser(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckUserResponse(user))
}

// ManualLogin はメールアドレスとパスワードでログインする。
// 失敗時も {success:false, message} の形で返す。
// POST /manual-login
func (h *AccountHandler) ManualLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, mapAPIErrorToHTTPStatus(apiErr), loginResponse{
			Success: false,
			Message: apiErr.Message,
			Code:    apiErr.Code,
		})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    toUserResponse(user),
	})
}

// Signup はアカウントを作成する。
// POST /signup
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), account.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		Message: "User created successfully",
		User:    toUserResponse(user),
	})
}

func toUserResponse(user *model.User) *userResponse {
	return &userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	}
}

func toCheckUserResponse(user *model.User) checkUserResponse {
	if user == nil {
		return checkUserResponse{Exists: false}
	}
	return checkUserResponse{Exists: true, userResponse: toUserResponse(user)}
}
