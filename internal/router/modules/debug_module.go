package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
)

type DebugModule struct {
	rdb       *redis.Client
	perMinute int
}

func NewDebugModule(rdb *redis.Client, perMinute int) *DebugModule {
	return &DebugModule{rdb: rdb, perMinute: perMinute}
}

// Register exposes expvar to private networks; loopback callers skip the rate limit.
func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(m.rdb, m.perMinute, time.Minute, middleware.KeyByIP(), middleware.AllowLoopback())
	rg.GET("/debug/vars", middleware.PrivateOnly(), rl, gin.WrapH(expvar.Handler()))
}
