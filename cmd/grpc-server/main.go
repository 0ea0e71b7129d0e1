package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dealdesk/internal/app"
	"dealdesk/internal/grpcserver"
	"dealdesk/pkg/utils"
)

// grpc-server runs only the gRPC surface, for deployments that keep the HTTP
// API elsewhere.
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

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("init app failed", zap.Error(err))
	}
	defer a.Close()

	listener, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	srv := grpcserver.NewGRPCServer(grpcserver.NewServer(a.Tracker), logger.Named("grpc"), &a.Tokens)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.Stringer("signal", sig))
		srv.GracefulStop()
	}()

	logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
	if err := srv.Serve(listener); err != nil {
		logger.Error("grpc server stopped", zap.Error(err))
	}
}
