package memorystore

import "time"

// PriceLevel is one (price, quantity) pair of book depth.
// It marshals as a two-element JSON array, matching the feed wire format.
type PriceLevel [2]float64

// Price returns the level price.
func (l PriceLevel) Price() float64 { return l[0] }

// Quantity returns the quantity resting at the level.
func (l PriceLevel) Quantity() float64 { return l[1] }

// Snapshot represents one symbol's order book state at one instant, as produced by the feed.
// A Snapshot is treated as immutable once constructed: stores replace entries, they never
// modify Bids or Asks in place.
type Snapshot struct {
	Exchange  string       `json:"exchange"`  // Data source identifier (e.g., "MockExchange")
	Symbol    string       `json:"coin"`      // Traded pair (e.g., "BTC/USD")
	Timestamp int64        `json:"timestamp"` // Producer time (in milliseconds since epoch)
	Bids      []PriceLevel `json:"bids"`      // Buy-side depth, best bid first
	Asks      []PriceLevel `json:"asks"`      // Sell-side depth, best ask first
}

// Time returns the producer timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}
