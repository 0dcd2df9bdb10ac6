package stream

// Frame represents one inbound feed message carrying a full order book snapshot.
// Pointer fields distinguish a missing key from a zero value.
type Frame struct {
	Timestamp *float64     `json:"timestamp"` // Producer time (in milliseconds since epoch), may carry a fraction
	Exchange  *string      `json:"exchange"`  // Data source identifier
	Coin      *string      `json:"coin"`      // Symbol identifier, e.g., "BTC/USD"
	Bids      *[][]float64 `json:"bids"`      // [[price, qty], ...], best bid first
	Asks      *[][]float64 `json:"asks"`      // [[price, qty], ...], best ask first
}
