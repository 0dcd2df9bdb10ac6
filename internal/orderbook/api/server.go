package api

import (
	"context"
	"time"

	"orderbookfeed/internal/orderbook/job"
	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/pkg/feed"
	"orderbookfeed/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const historyLimit = 10

// LiveSource is the read side of the snapshot cache.
type LiveSource interface {
	GetAll() []memorystore.Snapshot
	Len() int
}

// FeedStatus reports the supervisor connection state.
type FeedStatus interface {
	State() feed.State
}

// JobRunner runs one fetch-and-store round.
type JobRunner interface {
	Run(ctx context.Context) (job.JobResult, error)
}

type Deps struct {
	Live       LiveSource
	Feed       FeedStatus
	Store      storage.Store
	Job        JobRunner
	CronSecret string
	JobTimeout time.Duration
}

type FiberServer struct {
	*fiber.App

	deps   Deps
	logger *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *FiberServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.JobTimeout <= 0 {
		deps.JobTimeout = 60 * time.Second
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "orderbookfeed",
			AppName:               "orderbookfeed",
			DisableStartupMessage: true,
		}),
		deps:   deps,
		logger: logger,
	}
	server.RegisterFiberRoutes()

	return server
}

func (s *FiberServer) RegisterFiberRoutes() {
	s.Get("/healthz", s.healthHandler)

	api := s.Group("/api")
	api.Get("/orderbook", s.orderBookHandler)
	api.Get("/orderbook/history", s.historyHandler)
	api.Get("/orderbook/history/:coin", s.historyByCoinHandler)
	api.Get("/cron/fetch-orderbook", s.cronFetchHandler)
}
