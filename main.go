package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BeepPager/global"
	"BeepPager/global/config"
	"BeepPager/logger"
	"BeepPager/middleware"
	"BeepPager/service/chat"
	"BeepPager/service/chat/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("[main] load config", zap.Error(err))
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := global.ConfigAll(ctx, cfg)
	if err != nil {
		logger.Error("[main] configure backends", zap.Error(err))
		os.Exit(1)
	}
	defer stack.Close()

	srv := chat.NewServer(stack.Options...)
	handlers.RegisterAll(srv.Disp())

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.AccessLog(), middleware.Origin(cfg.AllowedOrigins))
	srv.Routes(r)

	hs := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("[main] BeepPager listening on %s", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("[main] http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown; srv.Close ends them
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[main] http shutdown", zap.Error(err))
	}
	srv.Close()
}
