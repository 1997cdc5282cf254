package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
	"github.com/oksasatya/go-expense-split/pkg/response"
)

type AuthHandler struct {
	Svc     *application.IdentityService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *application.IdentityService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type signUpRequest struct {
	Username        string  `json:"username" binding:"required,username"`
	Email           string  `json:"email" binding:"required,email,max=254"`
	Password        string  `json:"password" binding:"required"`
	ConfirmPassword string  `json:"confirm_password" binding:"required"`
	College         string  `json:"college" binding:"required,max=255"`
	Semester        flexInt `json:"semester" binding:"semester"`
	PaymentMethod   string  `json:"payment_method" binding:"omitempty,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type verifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password"`
}

// SignUp POST /api/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	u, err := h.Svc.SignUp(c.Request.Context(), application.SignUpInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		College:         req.College,
		Semester:        int(req.Semester),
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"college":     u.College,
		"semester":    u.Semester,
		"is_verified": u.IsVerified,
	}, "account created, check your email for the verification code", nil)
}

// Login POST /api/login
// Issues a bearer token pair and a session cookie; either works on protected routes.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if res.Session != nil {
		h.Cookies.SetSession(c, res.Session.ID, res.SessionExpiry)
	}
	h.Cookies.SetRefresh(c, res.RefreshToken, res.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"username":               res.User.Username,
		"college":                res.User.College,
		"semester":               res.User.Semester,
		"default_payment_method": res.User.DefaultPaymentMethod,
		"token":                  res.AccessToken,
		"refresh_token":          res.RefreshToken,
	}, "login successful", map[string]any{
		"access_expires_at":  res.AccessTokenExpiry,
		"refresh_expires_at": res.RefreshTokenExpiry,
	})
}

// VerifyCode POST /api/verify_code
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Svc.VerifyCode(c.Request.Context(), req.Email, req.Code); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResendCode POST /api/resend_code
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Svc.ResendCode(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "verification code sent", nil)
}

// Refresh POST /api/token/refresh
// The refresh token is read from the body, then from the refresh_token cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badPayload(c, err)
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie("refresh_token")
	}
	if token == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	access, exp, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": access}, "token refreshed", map[string]any{"access_expires_at": exp})
}

// Logout POST /api/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	sid, _ := c.Cookie(helpers.SessionCookieName)
	if u := middleware.CurrentUser(c); u != nil && u.Method == application.AuthSession {
		sid = u.SessionID
	}
	if err := h.Svc.Logout(c.Request.Context(), sid); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// RequestPasswordReset POST /api/password/reset
// Always answers 200 so callers cannot tell which emails are registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"requested": true}, "if the email is registered, a reset link has been sent", nil)
}

// ConfirmPasswordReset POST /api/password/reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
