// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/internal/http/handlers"
	"voyago/internal/http/middleware"
	"voyago/internal/infra"
	"voyago/internal/service"
	"voyago/internal/usage"
)

type RouterDeps struct {
	Planner   handlers.Planner
	Generator *service.Generator
	Usage     *usage.Service      // nil disables quota and logging
	Verifier  infra.TokenVerifier // nil falls back to dev auth
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	authn := middleware.DevAuth()
	if deps.Verifier != nil {
		authn = middleware.Auth(deps.Verifier)
	}

	planHandler := handlers.NewPlanHandler(deps.Planner, deps.Generator, deps.Usage)
	api := r.Group("/api", authn)
	api.POST("/plans/generate", planHandler.Generate)
	api.POST("/plans/generate/legacy", planHandler.GenerateLegacy)
	api.POST("/plans/generate/stream", planHandler.GenerateStream)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
