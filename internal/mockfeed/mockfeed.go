// Package mockfeed serves fake order book frames over a websocket, standing in for an
// exchange during local development.
package mockfeed

import (
	"math/rand"
	"sync"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	Exchange        = "MockExchange"
	DefaultInterval = 500 * time.Millisecond
)

// Coins is the round-robin order frames are emitted in.
var Coins = []string{"BTC/USD", "ETH/USD", "DOGE/USD", "XRP/USD", "LTC/USD"}

var startPrices = map[string]float64{
	"BTC/USD":  95000,
	"ETH/USD":  3500,
	"DOGE/USD": 0.35,
	"XRP/USD":  2.5,
	"LTC/USD":  105,
}

var (
	bidQuantities = [5]float64{1.5, 2.0, 1.8, 2.5, 3.0}
	askQuantities = [5]float64{1.2, 1.8, 2.1, 1.9, 2.7}
)

type FiberServer struct {
	*fiber.App

	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	prices map[string]float64
	rnd    func() float64
}

func New(interval time.Duration, logger *zap.Logger) *FiberServer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prices := make(map[string]float64, len(startPrices))
	for coin, p := range startPrices {
		prices[coin] = p
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "orderbookfeed-mock",
			AppName:               "orderbookfeed-mock",
			DisableStartupMessage: true,
		}),
		interval: interval,
		logger:   logger,
		prices:   prices,
		rnd:      rand.Float64,
	}
	server.RegisterFiberRoutes()

	return server
}

func (s *FiberServer) RegisterFiberRoutes() {
	s.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.Get("/", websocket.New(s.stream))
}

// stream sends one frame per interval until the client goes away.
func (s *FiberServer) stream(c *websocket.Conn) {
	log := s.logger.With(zap.String("remote", c.RemoteAddr().String()))
	log.Info("client connected")
	defer log.Info("client disconnected")

	// The client never sends anything; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	coinIndex := 0
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			coin := Coins[coinIndex]
			coinIndex = (coinIndex + 1) % len(Coins)

			if err := c.WriteJSON(s.NextSnapshot(coin)); err != nil {
				log.Warn("write failed", zap.String("coin", coin), zap.Error(err))
				return
			}
			log.Debug("sent", zap.String("coin", coin))
		}
	}
}

// NextSnapshot builds a frame around the current price of coin, then nudges that price.
func (s *FiberServer) NextSnapshot(coin string) memorystore.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.prices[coin]
	snap := memorystore.Snapshot{
		Exchange:  Exchange,
		Symbol:    coin,
		Timestamp: time.Now().UnixMilli(),
		Bids:      make([]memorystore.PriceLevel, 0, len(bidQuantities)),
		Asks:      make([]memorystore.PriceLevel, 0, len(askQuantities)),
	}
	for i := range bidQuantities {
		offset := float64(10 * (i + 1))
		// Low priced coins would go negative on the bid side.
		snap.Bids = append(snap.Bids, memorystore.PriceLevel{max(price-offset, 0), bidQuantities[i]})
		snap.Asks = append(snap.Asks, memorystore.PriceLevel{price + offset, askQuantities[i]})
	}

	s.prices[coin] = price * (1 + (s.rnd()-0.5)*0.0002)
	return snap
}
