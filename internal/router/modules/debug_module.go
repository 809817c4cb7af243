package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/miskit/backoffice/internal/container"
	"github.com/miskit/backoffice/internal/interface/middleware"
)

type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// Public expvar metrics, rate-limited per IP; private callers bypass.
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}
