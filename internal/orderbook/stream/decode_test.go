package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFrame = `{"timestamp":1700000000000,"exchange":"MockExchange","coin":"BTC/USD",
	"bids":[[94990,1.5],[94980,2]],"asks":[[95010,1.2],[95020,1.8]]}`

// go test -v --run TestDecodeFrame
func TestDecodeFrame(t *testing.T) {
	snap, err := DecodeFrame([]byte(validFrame))
	require.NoError(t, err)

	assert.Equal(t, "MockExchange", snap.Exchange)
	assert.Equal(t, "BTC/USD", snap.Symbol)
	assert.Equal(t, int64(1700000000000), snap.Timestamp)
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 2)
	assert.Equal(t, 94990.0, snap.Bids[0].Price())
	assert.Equal(t, 1.5, snap.Bids[0].Quantity())
	assert.Equal(t, 95010.0, snap.Asks[0].Price())
}

// go test -v --run TestDecodeFrameEmptyDepth
func TestDecodeFrameEmptyDepth(t *testing.T) {
	snap, err := DecodeFrame([]byte(`{"timestamp":1,"exchange":"X","coin":"ETH/USD","bids":[],"asks":[]}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

// go test -v --run TestDecodeFrameFractionalTimestamp
func TestDecodeFrameFractionalTimestamp(t *testing.T) {
	cases := map[string]string{
		"trailing fraction": `1700000000000.0`,
		"exponent":          `1.7e12`,
		"sub-millisecond":   `1700000000000.987`,
	}

	for name, ts := range cases {
		t.Run(name, func(t *testing.T) {
			raw := `{"timestamp":` + ts + `,"exchange":"X","coin":"BTC/USD","bids":[[1,1]],"asks":[[2,1]]}`
			snap, err := DecodeFrame([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, int64(1700000000000), snap.Timestamp)
		})
	}
}

// go test -v --run TestDecodeFrameMalformed
func TestDecodeFrameMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"timestamp":`,
		"missing bids":    `{"timestamp":1,"exchange":"X","coin":"BTC/USD","asks":[[1,1]]}`,
		"null asks":       `{"timestamp":1,"exchange":"X","coin":"BTC/USD","bids":[[1,1]],"asks":null}`,
		"missing coin":    `{"timestamp":1,"exchange":"X","bids":[[1,1]],"asks":[[1,1]]}`,
		"missing ts":      `{"exchange":"X","coin":"BTC/USD","bids":[[1,1]],"asks":[[1,1]]}`,
		"missing exch":    `{"timestamp":1,"coin":"BTC/USD","bids":[[1,1]],"asks":[[1,1]]}`,
		"negative ts":     `{"timestamp":-5,"exchange":"X","coin":"BTC/USD","bids":[[1,1]],"asks":[[1,1]]}`,
		"string ts":       `{"timestamp":"1","exchange":"X","coin":"BTC/USD","bids":[[1,1]],"asks":[[1,1]]}`,
		"short level":     `{"timestamp":1,"exchange":"X","coin":"BTC/USD","bids":[[1]],"asks":[[1,1]]}`,
		"negative price":  `{"timestamp":1,"exchange":"X","coin":"BTC/USD","bids":[[-1,1]],"asks":[[1,1]]}`,
		"string quantity": `{"timestamp":1,"exchange":"X","coin":"BTC/USD","bids":[[1,"1"]],"asks":[[1,1]]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)
		})
	}
}
