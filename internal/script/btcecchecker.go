package script

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// BTCECChecker is a concrete SignatureChecker backed by btcec's DER
// signature parsing and ECDSA verification. It hashes subscript with a
// single SHA-256 pass before verification, a simplified stand-in for the
// full SIGHASH procedure (transaction-aware hashing is outside this
// package's scope and left to callers that need production-grade
// signature checking).
type BTCECChecker struct{}

func (BTCECChecker) CheckSig(signature, pubKey, subscript []byte) bool {
	if len(signature) == 0 {
		return false
	}
	// Trailing sighash-type byte, stripped before DER parsing.
	sig, err := ecdsa.ParseDERSignature(signature[:len(signature)-1])
	if err != nil {
		return false
	}
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	hash := sha256.Sum256(subscript)
	return sig.Verify(hash[:], key)
}
