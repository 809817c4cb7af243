package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/miskit/backoffice/internal/container"
	"github.com/miskit/backoffice/internal/domain/entity"
	handlers "github.com/miskit/backoffice/internal/interface/http"
	"github.com/miskit/backoffice/internal/interface/middleware"
	"github.com/miskit/backoffice/pkg/helpers"
)

// UserModule wires the user-management routes under /api/user. All routes
// require a resolved identity; delete and search additionally require the
// administrator role, enforced by a route-level guard consulted before the
// handler runs.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	user := rg.Group("/user")
	user.Use(middleware.Auth(container.GetRedis(), m.JWT))
	user.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUser(), nil))

	adminOnly := middleware.RequireRoles(entity.RoleAdministrator)

	user.POST("", m.Handler.Add)
	user.PUT("", m.Handler.AdminUpdate)
	user.POST("/list", m.Handler.List)
	user.POST("/avatar", m.Handler.UploadAvatar)
	user.GET("/search", adminOnly, m.Handler.Search)
	user.GET("/:userId", m.Handler.Get)
	user.PUT("/:userId", m.Handler.SelfUpdate)
	user.DELETE("/:userId", adminOnly, m.Handler.Delete)
	user.PUT("/password/:userId", m.Handler.ChangePassword)
}
