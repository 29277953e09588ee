package identity

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DefaultProgramID is the program address pool custody accounts are derived under.
const DefaultProgramID = "9J1kWYcd3EK9LWxLGkETJvMWQQKkywZVGT43xGfta6Rv"

const (
	maxSeedLen = 32
	pdaMarker  = "ProgramDerivedAddress"
)

// DerivePDA derives a program derived address: the first sha256 over
// seeds|bump|program|marker, walking bump down from 255, that is not a
// valid ed25519 point. Such an address has no private key, so only the
// program can authorize movements out of it.
func DerivePDA(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := base58.Decode(programID)
	if err != nil || len(program) != solanaKeyLen {
		return "", 0, fmt.Errorf("invalid program id: %s", programID)
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLen {
			return "", 0, fmt.Errorf("seed exceeds %d bytes", maxSeedLen)
		}
	}

	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, program...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}
	return "", 0, fmt.Errorf("no viable bump seed")
}

// CustodyAddress returns the ledger account that holds a pool's contributions
// and its asset inventory.
func CustodyAddress(programID, poolID string) (string, error) {
	poolSeed := sha256.Sum256([]byte(poolID))
	addr, _, err := DerivePDA([][]byte{[]byte("custody"), poolSeed[:]}, programID)
	if err != nil {
		return "", fmt.Errorf("derive custody for pool %s: %w", poolID, err)
	}
	return addr, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
