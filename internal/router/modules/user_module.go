package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-expense-split/internal/container"
	handlers "github.com/oksasatya/go-expense-split/internal/interface/http"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
)

type UserModule struct {
	Handler *handlers.UserHandler
	Auth    middleware.Authenticator
}

func NewUserModule(h *handlers.UserHandler, auth middleware.Authenticator) *UserModule {
	return &UserModule{Handler: h, Auth: auth}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rg.GET("/users/search",
		middleware.Auth(m.Auth, container.GetLogger()),
		middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByUserID(), nil),
		m.Handler.Search,
	)
}
