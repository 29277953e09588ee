// Package identity normalizes the account identities a pool deals with.
//
// Two address families are accepted: EVM hex addresses (20 bytes, 0x-prefixed)
// and Solana public keys (32 bytes, base58). Normalized values are used as
// storage keys and ledger account names, so two spellings of the same address
// always resolve to the same record.
package identity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Kind is the address family of an identity.
type Kind string

const (
	KindEVM    Kind = "evm"
	KindSolana Kind = "solana"
)

const solanaKeyLen = 32

// Parse validates an identity and returns its canonical form.
func Parse(input string) (string, Kind, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("identity is empty")
	}
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		if !common.IsHexAddress(input) {
			return "", "", fmt.Errorf("invalid address: %s", input)
		}
		return common.HexToAddress(input).Hex(), KindEVM, nil
	}

	decoded, err := base58.Decode(input)
	if err != nil {
		return "", "", fmt.Errorf("invalid public key %s: %w", input, err)
	}
	if len(decoded) != solanaKeyLen {
		return "", "", fmt.Errorf("invalid public key length %d: %s", len(decoded), input)
	}
	return base58.Encode(decoded), KindSolana, nil
}

// Normalize is Parse without the kind.
func Normalize(input string) (string, error) {
	id, _, err := Parse(input)
	return id, err
}

// MustNormalize panics on invalid input. Intended for fixtures and constants.
func MustNormalize(input string) string {
	id, err := Normalize(input)
	if err != nil {
		panic(err)
	}
	return id
}
