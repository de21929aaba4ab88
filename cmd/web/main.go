package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/AlzNews/internal/config"
	"github.com/LJTian/AlzNews/internal/controller"
	"github.com/LJTian/AlzNews/internal/logging"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"github.com/LJTian/AlzNews/internal/scheduler"
	"github.com/LJTian/AlzNews/internal/session"
	"github.com/LJTian/AlzNews/internal/storage"
	"github.com/LJTian/AlzNews/internal/web"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, logger)
	if err != nil {
		logger.Fatal("init store failed", zap.Error(err))
	}
	defer store.Close()

	client := newsapi.NewClient(cfg.BackendURL,
		newsapi.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		newsapi.WithLogger(logger),
	)
	fetcher := storage.NewCachedFetcher(client, store, cfg.PageCacheTTL)

	sessions := session.NewManager(fetcher, store, session.Options{
		TTL:    cfg.SessionTTL,
		Logger: logger,
		Controller: controller.Options{
			Debounce:       cfg.Debounce,
			RequestTimeout: cfg.RequestTimeout,
		},
	})
	defer sessions.Close()

	s, err := scheduler.New([]scheduler.Job{
		scheduler.WarmDefaultPage(cfg.WarmCronSpec, fetcher, logger),
		scheduler.PruneSessions(cfg.PruneCronSpec, sessions, logger),
	}, logger)
	if err != nil {
		logger.Fatal("init scheduler failed", zap.Error(err))
	}
	s.Start()
	defer s.Stop()

	engine := web.NewServer(sessions, web.Options{
		Sources:       cfg.NewsSources,
		BasicAuthUser: cfg.BasicAuthUser,
		BasicAuthPass: cfg.BasicAuthPass,
		Logger:        logger,
	}).Engine()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting web server", zap.String("addr", srv.Addr), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server exit", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// SSE 连接会一直挂着，先关闭会话让事件流退出
	sessions.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
