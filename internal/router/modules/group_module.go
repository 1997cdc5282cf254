package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-expense-split/internal/container"
	handlers "github.com/oksasatya/go-expense-split/internal/interface/http"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
)

type GroupModule struct {
	Handler *handlers.GroupHandler
	Auth    middleware.Authenticator
}

func NewGroupModule(h *handlers.GroupHandler, auth middleware.Authenticator) *GroupModule {
	return &GroupModule{Handler: h, Auth: auth}
}

func (m *GroupModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(
		middleware.Auth(m.Auth, container.GetLogger()),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/categories", m.Handler.Categories)
		auth.GET("/groups", m.Handler.List)
		auth.POST("/groups", m.Handler.Create)
		auth.GET("/groups/:id", m.Handler.Details)
		auth.POST("/groups/:id/add_member", m.Handler.AddMember)
	}
}
