package router

import (
	"github.com/miskit/backoffice/internal/application"
	"github.com/miskit/backoffice/internal/container"
	handlers "github.com/miskit/backoffice/internal/interface/http"
	pginfra "github.com/miskit/backoffice/internal/infrastructure/postgres"
	"github.com/miskit/backoffice/internal/router/modules"
)

func buildService() *application.Service {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())
	return application.NewService(
		repo,
		container.GetJWT(),
		container.GetAvatarStore(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetRabbitPub(),
		container.GetES(),
		cfg.ESUsersIndex,
		cfg.DefaultPassword,
	)
}

// InitModules wires all application modules into the router registry.
// Called once during startup.
func InitModules(r *Registry) {
	svc := buildService()
	logger := container.GetLogger()
	cfg := container.GetConfig()

	userHandler := handlers.NewUserHandler(svc, logger)
	authHandler := handlers.NewAuthHandler(svc, logger, cfg.CookieDomain, cfg.CookieSecure)

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
