package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealdesk/internal/crmmirror"
	"dealdesk/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	fixtures, err := crmmirror.LoadFixtures(cfg.Mirror.Fixtures)
	if err != nil {
		logger.Fatal("load fixtures failed", zap.String("path", cfg.Mirror.Fixtures), zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	srv := crmmirror.NewServer(fixtures)

	logger.Info("crm-mirror listening",
		zap.String("addr", cfg.Mirror.Addr),
		zap.String("fixtures", cfg.Mirror.Fixtures),
		zap.Int("deals", len(fixtures.Deals)))
	if err := http.ListenAndServe(cfg.Mirror.Addr, srv.Handler()); err != nil {
		logger.Fatal("crm-mirror stopped", zap.Error(err))
	}
}
