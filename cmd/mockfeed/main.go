package main

import (
	"context"
	"os/signal"
	"syscall"

	"orderbookfeed/config"
	"orderbookfeed/internal/mockfeed"
	"orderbookfeed/logger"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	server := mockfeed.New(cfg.MockFeed.Interval, log.Named("mockfeed"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down mock feed")
		if err := server.Shutdown(); err != nil {
			log.Warn("mock feed forced to shutdown", zap.Error(err))
		}
	}()

	log.Info("mock feed listening", zap.String("addr", cfg.MockFeed.Addr), zap.Duration("interval", cfg.MockFeed.Interval))
	if err := server.Listen(cfg.MockFeed.Addr); err != nil {
		log.Fatal("mock feed server error", zap.Error(err))
	}
}
