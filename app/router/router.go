package router

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/ironroggers/ops-tracker/app/controllers"
	"github.com/ironroggers/ops-tracker/app/middleware"
	internalmw "github.com/ironroggers/ops-tracker/internal/middleware"
	"github.com/ironroggers/ops-tracker/internal/repository"
)

// Dependencies 路由需要的服务
type Dependencies struct {
	DeepAnalysis controllers.DeepAnalyzer
	Links        repository.DocumentLinkRepository
	Manager      *internalmw.MiddlewareManager
	Metrics      http.Handler
}

// Init registers all routes. Must be called after bootstrap.
func Init(deps Dependencies) {
	web.InsertFilter("/*", web.BeforeRouter, middleware.RequestIDMiddleware)
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")

	health := &controllers.HealthController{Manager: deps.Manager}
	web.Router("/health", health, "get:Health")
	web.Router("/ready", health, "get:Ready")

	web.Router("/api/deep-analysis", &controllers.DeepAnalysisController{
		Service: deps.DeepAnalysis,
		Links:   deps.Links,
	}, "post:Analyze")

	if deps.Metrics != nil {
		web.Handler("/metrics", deps.Metrics)
	}
}
