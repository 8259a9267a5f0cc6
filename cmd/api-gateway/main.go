package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grading-api/api/swagger"
	"github.com/noah-isme/sma-grading-api/internal/app"
	"github.com/noah-isme/sma-grading-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-grading-api/internal/middleware"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	"github.com/noah-isme/sma-grading-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grading-api/pkg/middleware/requestid"
)

// @title SMA Grading API
// @version 1.0.0
// @description Exam grading, cohort ranking and progress trends
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise application", zap.Error(err))
	}
	defer application.Close() //nolint:errcheck

	application.Precompute.Start(ctx)
	defer application.Precompute.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(application.Metrics))

	checks := map[string]handler.Pinger{"postgres": application.DB}
	if application.Redis != nil {
		checks["redis"] = handler.PingFunc(application.Cache.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(application.Metrics, checks)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	gradingHandler := handler.NewGradingHandler(application.Grading, application.Exports, application.Precompute)
	gradingHandler.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
