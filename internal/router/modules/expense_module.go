package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-expense-split/internal/container"
	handlers "github.com/oksasatya/go-expense-split/internal/interface/http"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
)

// ExpenseModule registers expense creation and settlement routes.
type ExpenseModule struct {
	Handler *handlers.ExpenseHandler
	Auth    middleware.Authenticator
}

func NewExpenseModule(h *handlers.ExpenseHandler, auth middleware.Authenticator) *ExpenseModule {
	return &ExpenseModule{Handler: h, Auth: auth}
}

func (m *ExpenseModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(
		middleware.Auth(m.Auth, container.GetLogger()),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/expenses/:groupId", m.Handler.Add)
		auth.PATCH("/settlements/:id", m.Handler.UpdateSettlement)
		auth.GET("/settlements/:username", m.Handler.ListSettlements)
	}
}
