package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-expense-split/internal/container"
	handlers "github.com/oksasatya/go-expense-split/internal/interface/http"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
)

// AuthModule registers account routes.
// Public: signup, login, verify_code, resend_code, token/refresh, password/reset(/confirm)
// Protected: logout
type AuthModule struct {
	Handler *handlers.AuthHandler
	Auth    middleware.Authenticator
}

func NewAuthModule(h *handlers.AuthHandler, auth middleware.Authenticator) *AuthModule {
	return &AuthModule{Handler: h, Auth: auth}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	credentialLimit := container.GetConfig().ResendCodeRateLimit

	signupLimiter := middleware.RateLimit(rdb, 20, time.Minute, middleware.KeyByIP(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	verifyLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resendLimiter := middleware.RateLimit(rdb, credentialLimit, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(rdb, credentialLimit, time.Minute, middleware.KeyByIPAndPath(), nil)
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/signup", signupLimiter, m.Handler.SignUp)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/verify_code", verifyLimiter, m.Handler.VerifyCode)
	rg.POST("/resend_code", resendLimiter, m.Handler.ResendCode)
	rg.POST("/token/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/password/reset", resetLimiter, m.Handler.RequestPasswordReset)
	rg.POST("/password/reset/confirm", verifyLimiter, m.Handler.ConfirmPasswordReset)

	rg.POST("/logout", middleware.Auth(m.Auth, container.GetLogger()), m.Handler.Logout)
}
