// 本地开发用的文章接口 mock，实现与真实后端相同的请求/响应约定
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/LJTian/AlzNews/internal/config"
	"github.com/LJTian/AlzNews/internal/logging"
	"github.com/LJTian/AlzNews/internal/mockapi"
	"go.uber.org/zap"
)

const seedSize = 57

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

	data := mockapi.SeedDataset(seedSize)
	if cfg.MockDataset != "" {
		data, err = mockapi.LoadDataset(cfg.MockDataset)
		if err != nil {
			logger.Fatal("load mock dataset failed", zap.String("path", cfg.MockDataset), zap.Error(err))
		}
	}

	addr := ":" + cfg.MockPort
	logger.Info("starting mock news api",
		zap.String("addr", addr),
		zap.Int("articles", data.Len()),
		zap.Strings("sources", data.Sources()),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mockapi.NewServer(data).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("mock api exit", zap.Error(err))
	}
}
