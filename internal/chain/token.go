package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"launchpad/internal/model"
)

// ErrNotEVMAsset is returned when metadata is requested for an asset that is
// not an EVM contract address.
var ErrNotEVMAsset = errors.New("asset is not an EVM contract address")

// erc20MetadataJSON declares the ERC20 metadata getters with the text
// outputs typed as %[1]s. Older tokens return bytes32 instead of string.
const erc20MetadataJSON = `[
  {"name": "decimals", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"type": "uint8"}]},
  {"name": "symbol", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"type": "%[1]s"}]},
  {"name": "name", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"type": "%[1]s"}]}
]`

type metadataCodecs struct {
	text    abi.ABI
	bytes32 abi.ABI
}

var loadMetadataCodecs = sync.OnceValues(func() (metadataCodecs, error) {
	var codecs metadataCodecs
	var err error
	if codecs.text, err = abi.JSON(strings.NewReader(fmt.Sprintf(erc20MetadataJSON, "string"))); err != nil {
		return codecs, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	if codecs.bytes32, err = abi.JSON(strings.NewReader(fmt.Sprintf(erc20MetadataJSON, "bytes32"))); err != nil {
		return codecs, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	return codecs, nil
})

// FetchTokenMeta loads token metadata via ERC20 calls. Symbol and name fall
// back to bytes32 encodings and are left empty when both fail.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	codecs, err := loadMetadataCodecs()
	if err != nil {
		return meta, err
	}
	stringABI, bytes32ABI := codecs.text, codecs.bytes32

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("unpack %s: empty result", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// TokenResolver resolves and caches asset metadata.
type TokenResolver struct {
	caller ContractCaller
	logger *zap.Logger

	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

// NewTokenResolver creates a resolver backed by caller.
func NewTokenResolver(caller ContractCaller, logger *zap.Logger) *TokenResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenResolver{caller: caller, logger: logger, data: make(map[common.Address]model.TokenMeta)}
}

// Resolve returns metadata for an EVM asset address.
func (r *TokenResolver) Resolve(ctx context.Context, asset string) (model.TokenMeta, error) {
	if !common.IsHexAddress(asset) {
		return model.TokenMeta{}, fmt.Errorf("%w: %s", ErrNotEVMAsset, asset)
	}
	token := common.HexToAddress(asset)

	r.mu.RLock()
	meta, ok := r.data[token]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		return meta, err
	}
	r.mu.Lock()
	r.data[token] = meta
	r.mu.Unlock()
	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
