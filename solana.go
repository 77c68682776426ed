package txdecode

import (
	"fmt"

	"github.com/ModChain/base58"
)

// SolanaKey is a 32-byte public key used to identify accounts on the Solana
// network. Block hashes share the same shape and reuse this type.
type SolanaKey [32]byte

// Native programs recognized by the transfer interpreter.
var (
	// SolanaSystemProgram owns user accounts and facilitates basic SOL transfers.
	SolanaSystemProgram = mustParseSolanaKey("11111111111111111111111111111111")
	// SolanaTokenProgram is the SPL Token program.
	SolanaTokenProgram = mustParseSolanaKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	// SolanaToken2022Program is the Token-2022 program, a superset of the SPL
	// Token program.
	SolanaToken2022Program = mustParseSolanaKey("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

func mustParseSolanaKey(s string) SolanaKey {
	k, err := ParseSolanaKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseSolanaKey parses a base58-encoded string into a SolanaKey.
func ParseSolanaKey(s string) (SolanaKey, error) {
	buf, err := base58.Bitcoin.Decode(s)
	if err != nil {
		return SolanaKey{}, fmt.Errorf("failed to decode solana key: %w", err)
	}
	if len(buf) != 32 {
		return SolanaKey{}, fmt.Errorf("invalid solana key: expected 32 bytes, got %d", len(buf))
	}
	var k SolanaKey
	copy(k[:], buf)
	return k, nil
}

// String returns the base58 encoding of the key.
func (k SolanaKey) String() string {
	return base58.Bitcoin.Encode(k[:])
}

// IsZero reports whether the key is all zeros.
func (k SolanaKey) IsZero() bool {
	return k == SolanaKey{}
}
