package api

import (
	"context"
	"crypto/subtle"
	"net/url"
	"strings"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/pkg/storage"
	"orderbookfeed/pkg/storage/postgres"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HistoryEntry is one stored snapshot as returned by the history endpoints.
type HistoryEntry struct {
	ID        string                   `json:"id"`
	Timestamp int64                    `json:"timestamp"`
	Exchange  string                   `json:"exchange"`
	Coin      string                   `json:"coin"`
	Bids      []memorystore.PriceLevel `json:"bids"`
	Asks      []memorystore.PriceLevel `json:"asks"`
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	state := "disabled"
	if s.deps.Feed != nil {
		state = s.deps.Feed.State().String()
	}
	return c.JSON(fiber.Map{
		"feed":   state,
		"cached": s.deps.Live.Len(),
	})
}

// orderBookHandler returns the latest snapshot per symbol and records each one in history.
func (s *FiberServer) orderBookHandler(c *fiber.Ctx) error {
	all := s.deps.Live.GetAll()

	if len(all) > 0 && s.deps.Store != nil {
		saved := storage.SaveSnapshots(c.UserContext(), s.deps.Store, all, s.logger)
		s.logger.Debug("live snapshots stored", zap.Int("saved", saved), zap.Int("total", len(all)))
	}

	return c.JSON(all)
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	records, err := s.deps.Store.RecentSnapshots(c.UserContext(), historyLimit)
	if err != nil {
		s.logger.Error("failed to query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to query history"})
	}
	return c.JSON(toHistory(records))
}

func (s *FiberServer) historyByCoinHandler(c *fiber.Ctx) error {
	coin, err := url.PathUnescape(c.Params("coin"))
	if err != nil || strings.TrimSpace(coin) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid coin"})
	}

	records, err := s.deps.Store.RecentSnapshotsByCoin(c.UserContext(), coin, historyLimit)
	if err != nil {
		s.logger.Error("failed to query history", zap.String("coin", coin), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to query history"})
	}
	return c.JSON(toHistory(records))
}

// cronFetchHandler runs the fetch job for an external scheduler holding the shared secret.
func (s *FiberServer) cronFetchHandler(c *fiber.Ctx) error {
	if !s.authorized(c.Get(fiber.HeaderAuthorization)) {
		return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.deps.JobTimeout)
	defer cancel()

	res, err := s.deps.Job.Run(ctx)
	if err != nil {
		s.logger.Error("cron job failed", zap.String("run_id", res.RunID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	s.logger.Info("cron completed",
		zap.String("run_id", res.RunID.String()),
		zap.Int("saved", res.Saved),
		zap.Int("fetched", res.Fetched),
	)
	return c.JSON(fiber.Map{
		"success":      true,
		"coinsUpdated": res.Saved,
		"totalRecords": res.TotalRecords,
		"deleted":      res.Deleted,
		"timestamp":    res.FinishedAt.Format(time.RFC3339Nano),
	})
}

// authorized compares the bearer token with the configured secret. An empty secret rejects all.
func (s *FiberServer) authorized(header string) bool {
	if s.deps.CronSecret == "" {
		return false
	}
	want := "Bearer " + s.deps.CronSecret
	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}

func toHistory(records []postgres.SnapshotRecord) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		snap := r.Snapshot()
		out = append(out, HistoryEntry{
			ID:        r.ID.String(),
			Timestamp: snap.Timestamp,
			Exchange:  snap.Exchange,
			Coin:      snap.Symbol,
			Bids:      snap.Bids,
			Asks:      snap.Asks,
		})
	}
	return out
}
