package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHeaders struct {
	failures int32
	calls    atomic.Int32
	time     uint64
}

func (f *fakeHeaders) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if number != nil {
		return nil, errors.New("only the latest header is served")
	}
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("node unavailable")
	}
	return &types.Header{Time: f.time}, nil
}

func TestClockRetriesLatestHeader(t *testing.T) {
	headers := &fakeHeaders{failures: 2, time: 1_700_000_000}
	clock := NewClock(headers, 3, time.Millisecond, nil)

	now, err := clock.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), now)
	assert.Equal(t, int32(3), headers.calls.Load())
}

func TestClockGivesUp(t *testing.T) {
	headers := &fakeHeaders{failures: 10}
	clock := NewClock(headers, 1, time.Millisecond, nil)

	_, err := clock.Now(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latest header failed after 2 attempts")
	assert.Equal(t, int32(2), headers.calls.Load())
}

func TestRetrierLogsAttemptsAndStopsOnCancel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRetrier(5, time.Millisecond, zap.New(core))

	calls := 0
	err := r.do(context.Background(), "block number", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("node unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, int64(2), logs.All()[1].ContextMap()["attempt"])

	calls = 0
	err = r.do(context.Background(), "cancelled call", func(context.Context) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// fakeToken answers ERC20 view calls. A nil symbol reply makes the string
// call fail so the bytes32 fallback is used.
type fakeToken struct {
	decimals uint8
	symbol   interface{}
	name     string
	calls    atomic.Int32
}

func (f *fakeToken) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	codecs, _ := loadMetadataCodecs()
	stringABI, bytes32ABI := codecs.text, codecs.bytes32

	selector := msg.Data[:4]
	switch {
	case bytes.Equal(selector, stringABI.Methods["decimals"].ID):
		return stringABI.Methods["decimals"].Outputs.Pack(f.decimals)
	case bytes.Equal(selector, stringABI.Methods["symbol"].ID):
		switch s := f.symbol.(type) {
		case string:
			return stringABI.Methods["symbol"].Outputs.Pack(s)
		case [32]byte:
			return bytes32ABI.Methods["symbol"].Outputs.Pack(s)
		}
		return nil, errors.New("execution reverted")
	case bytes.Equal(selector, stringABI.Methods["name"].ID):
		return stringABI.Methods["name"].Outputs.Pack(f.name)
	}
	return nil, errors.New("unknown selector")
}

func TestFetchTokenMeta(t *testing.T) {
	resolver := NewTokenResolver(&fakeToken{decimals: 6, symbol: "USDC", name: "USD Coin"}, nil)

	meta, err := resolver.Resolve(context.Background(), "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, "USD Coin", meta.Name)
}

func TestFetchTokenMetaBytes32Symbol(t *testing.T) {
	var sym [32]byte
	copy(sym[:], "MKR")
	token := &fakeToken{decimals: 18, symbol: sym, name: "Maker"}

	codecs, err := loadMetadataCodecs()
	require.NoError(t, err)
	stringABI := codecs.text
	// A bytes32 reply does not decode as a string, so the fallback ABI is used.
	_, err = stringABI.Unpack("symbol", mustPack(t, sym))
	require.Error(t, err)

	resolver := NewTokenResolver(token, nil)
	meta, err := resolver.Resolve(context.Background(), "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, "MKR", meta.Symbol)
}

func mustPack(t *testing.T, v [32]byte) []byte {
	t.Helper()
	codecs, err := loadMetadataCodecs()
	require.NoError(t, err)
	out, err := codecs.bytes32.Methods["symbol"].Outputs.Pack(v)
	require.NoError(t, err)
	return out
}

func TestTokenResolverCachesAndRejectsNonEVM(t *testing.T) {
	token := &fakeToken{decimals: 9, symbol: "SOL", name: "Wrapped SOL"}
	resolver := NewTokenResolver(token, nil)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	first := token.calls.Load()
	_, err = resolver.Resolve(ctx, "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, first, token.calls.Load())

	_, err = resolver.Resolve(ctx, "So11111111111111111111111111111111111111112")
	assert.ErrorIs(t, err, ErrNotEVMAsset)
}

func TestClientChainID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_chainId" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x38",
		})
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())
}
