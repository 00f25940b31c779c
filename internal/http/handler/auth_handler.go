package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/http/middleware"
	"github.com/ticketdesk/auth-service/internal/http/response"
	"github.com/ticketdesk/auth-service/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return false
	}
	return true
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.auth.Register(service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": user})
}

type loginRequest struct {
	// Identifier accepts a username or an email address.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.auth.Login(req.Identifier, req.Password, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"access_token":  res.Pair.AccessToken,
		"refresh_token": res.Pair.RefreshToken,
		"token_type":    res.Pair.TokenType,
		"expires_in":    res.Pair.ExpiresIn,
		"user":          res.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := h.auth.Refresh(req.RefreshToken, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, pair)
}

type logoutRequest struct {
	// RefreshToken is optional. Absent, every session the user holds ends.
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req logoutRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := h.auth.Logout(user, req.RefreshToken, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(user, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.auth.ForgotPassword(req.Email, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Identical response whether or not the email is registered.
	response.JSON(w, r, http.StatusAccepted, map[string]string{
		"status": "if the address is registered, a reset email is on its way",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(req.Token, req.NewPassword, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_reset"})
}

func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	return currentUser(h.auth, w, r)
}
