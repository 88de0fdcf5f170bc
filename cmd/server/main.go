package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/ironroggers/ops-tracker/app/bootstrap"
	"github.com/ironroggers/ops-tracker/app/router"
	"github.com/ironroggers/ops-tracker/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	deps := router.Dependencies{
		DeepAnalysis: app.DeepAnalysis,
		Links:        app.Links,
		Manager:      app.Manager,
	}
	if app.Config.Prometheus.Enabled {
		deps.Metrics = app.Metrics
	}
	router.Init(deps)

	// 配置Beego全局设置
	web.BConfig.AppName = "Deep Analysis Service"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(app.Config.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	logger.Info("Starting Deep Analysis Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
