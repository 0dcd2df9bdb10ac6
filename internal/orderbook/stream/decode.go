package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"orderbookfeed/internal/orderbook/memorystore"
)

// ErrMalformedFrame is returned by DecodeFrame for any frame that is not a valid snapshot.
var ErrMalformedFrame = errors.New("malformed frame")

// DecodeFrame parses one feed message into a Snapshot.
// Missing required fields, non-pair levels and negative or non-finite numbers are rejected.
// A fractional timestamp is truncated to whole milliseconds.
// Empty bid or ask arrays are accepted.
func DecodeFrame(msg []byte) (memorystore.Snapshot, error) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return memorystore.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case f.Timestamp == nil:
		return memorystore.Snapshot{}, fmt.Errorf("%w: missing timestamp", ErrMalformedFrame)
	case f.Exchange == nil:
		return memorystore.Snapshot{}, fmt.Errorf("%w: missing exchange", ErrMalformedFrame)
	case f.Coin == nil || *f.Coin == "":
		return memorystore.Snapshot{}, fmt.Errorf("%w: missing coin", ErrMalformedFrame)
	case f.Bids == nil:
		return memorystore.Snapshot{}, fmt.Errorf("%w: missing bids", ErrMalformedFrame)
	case f.Asks == nil:
		return memorystore.Snapshot{}, fmt.Errorf("%w: missing asks", ErrMalformedFrame)
	}

	ts := *f.Timestamp
	if ts < 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return memorystore.Snapshot{}, fmt.Errorf("%w: invalid timestamp %v", ErrMalformedFrame, ts)
	}

	bids, err := toLevels(*f.Bids)
	if err != nil {
		return memorystore.Snapshot{}, fmt.Errorf("%w: bids: %v", ErrMalformedFrame, err)
	}
	asks, err := toLevels(*f.Asks)
	if err != nil {
		return memorystore.Snapshot{}, fmt.Errorf("%w: asks: %v", ErrMalformedFrame, err)
	}

	return memorystore.Snapshot{
		Exchange:  *f.Exchange,
		Symbol:    *f.Coin,
		Timestamp: int64(math.Trunc(ts)),
		Bids:      bids,
		Asks:      asks,
	}, nil
}

func toLevels(raw [][]float64) ([]memorystore.PriceLevel, error) {
	out := make([]memorystore.PriceLevel, 0, len(raw))
	for i, row := range raw {
		if len(row) != 2 {
			return nil, fmt.Errorf("level %d: want [price, qty], got %d values", i, len(row))
		}
		for _, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("level %d: invalid value %v", i, v)
			}
		}
		out = append(out, memorystore.PriceLevel{row[0], row[1]})
	}
	return out, nil
}
