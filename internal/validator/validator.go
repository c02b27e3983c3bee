// Package validator checks incoming block headers against the current
// chain tip: proof-of-work, chain linkage, and difficulty retargeting
// including the testnet 20-minute exception.
package validator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/keato/chainpeer/internal/chain"
	"github.com/keato/chainpeer/internal/wire"
)

// ErrBlockRejected is returned by Validate for any failed check. It wraps
// a more specific reason accessible via errors.Is.
var ErrBlockRejected = errors.New("validator: block rejected")

// Specific rejection reasons, all wrapping ErrBlockRejected.
var (
	ErrBadPrevHash = fmt.Errorf("%w: prev_block_hash mismatch", ErrBlockRejected)
	ErrBadPoW      = fmt.Errorf("%w: hash exceeds target", ErrBlockRejected)
)

// RetargetInterval is the height modulus at which mainnet-rule difficulty
// is recomputed.
const RetargetInterval = 2016

// TargetTimespan is the intended span, in seconds, of one retarget window
// (14 days).
const TargetTimespan = 14 * 24 * 60 * 60

// TestnetMaxSpacing is the testnet 20-minute rule threshold, in seconds.
const TestnetMaxSpacing = 1200

// MaxBits is the loosest allowed packed target, 0x1D00FFFF.
const MaxBits uint32 = 0x1D00FFFF

// MaxTarget is the target corresponding to MaxBits.
func MaxTarget() *big.Int {
	return BitsToTarget(MaxBits)
}

// BitsToTarget expands a packed 32-bit target into its big.Int form.
// bits == 0 yields a zero target, which no positive hash ever satisfies —
// the chosen behavior for the "bits of 0" edge case.
func BitsToTarget(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := bits & 0x00FFFFFF
	target := new(big.Int).SetUint64(uint64(mantissa))
	if exponent <= 3 {
		shift := 8 * (3 - int(exponent))
		target.Rsh(target, uint(shift))
		return target
	}
	shift := 8 * (int(exponent) - 3)
	target.Lsh(target, uint(shift))
	return target
}

// TargetToBits packs a big.Int target down to its 32-bit compact form,
// keeping the three most significant mantissa bytes and an exponent, and
// shifting right one byte (bumping the exponent) whenever the high
// mantissa byte's sign bit would otherwise be set.
func TargetToBits(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}
	b := target.Bytes()
	exponent := len(b)
	var mantissa uint32
	switch {
	case len(b) >= 3:
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	case len(b) == 2:
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8
	case len(b) == 1:
		mantissa = uint32(b[0]) << 16
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// BlockHash is the double-SHA-256 of the 6 fixed header fields, in digest
// byte order (Hash32.String gives the byte-reversed display form).
func BlockHash(b wire.Block) wire.Hash32 {
	return chain.BlockHash(b)
}

// hashToBig treats a Hash32 as a little-endian 256-bit integer, the
// orientation proof-of-work comparisons are done in.
func hashToBig(h wire.Hash32) *big.Int {
	rev := make([]byte, 32)
	for i, b := range h {
		rev[31-i] = b
	}
	return new(big.Int).SetBytes(rev)
}

// Validate checks incoming against prev, the current chain tip, using
// store to walk back for retarget-window boundaries. It returns nil on
// acceptance or an error wrapping ErrBlockRejected.
func Validate(ctx context.Context, store chain.BlockStore, incoming wire.Block, prev chain.StoredBlock, testnet bool) error {
	prevHash := BlockHash(prev.Header)
	if incoming.PrevBlock != prevHash {
		return ErrBadPrevHash
	}

	height := prev.Height + 1
	target, err := expectedTarget(ctx, store, incoming, prev, height, testnet)
	if err != nil {
		return err
	}

	bits := TargetToBits(target)
	if incoming.Bits != bits {
		return ErrBadPoW
	}

	hash := BlockHash(incoming)
	if hashToBig(hash).Cmp(target) > 0 {
		return ErrBadPoW
	}
	return nil
}

// expectedTarget computes the target this block must meet: a fresh
// retarget at a 2016-block boundary, the testnet 20-minute exception off
// boundary, or inheritance of the most recent non-max target otherwise.
func expectedTarget(ctx context.Context, store chain.BlockStore, incoming wire.Block, prev chain.StoredBlock, height uint32, testnet bool) (*big.Int, error) {
	if height%RetargetInterval == 0 {
		return retarget(ctx, store, prev, height)
	}

	if testnet && incoming.Timestamp > prev.Header.Timestamp &&
		incoming.Timestamp-prev.Header.Timestamp > TestnetMaxSpacing {
		return MaxTarget(), nil
	}

	return lastNonMaxTarget(ctx, store, prev, height)
}

// retarget recomputes the target at a 2016-block boundary by comparing
// the timespan of the just-completed window against TargetTimespan,
// clamped to a factor of four either way.
func retarget(ctx context.Context, store chain.BlockStore, prev chain.StoredBlock, height uint32) (*big.Int, error) {
	firstHeight := height - RetargetInterval
	first, err := store.ByHeight(ctx, firstHeight)
	if err != nil {
		return nil, fmt.Errorf("validator: retarget window lookup: %w", err)
	}

	timespan := int64(prev.Header.Timestamp) - int64(first.Header.Timestamp)
	if timespan < TargetTimespan/4 {
		timespan = TargetTimespan / 4
	}
	if timespan > TargetTimespan*4 {
		timespan = TargetTimespan * 4
	}

	prevTarget := BitsToTarget(prev.Header.Bits)
	newTarget := new(big.Int).Mul(prevTarget, big.NewInt(timespan))
	newTarget.Div(newTarget, big.NewInt(TargetTimespan))

	if newTarget.Cmp(MaxTarget()) > 0 {
		return MaxTarget(), nil
	}
	return newTarget, nil
}

// lastNonMaxTarget walks back to the most recent retarget boundary at or
// before height and returns the target that applied there, the value a
// non-boundary, non-exception block must inherit.
func lastNonMaxTarget(ctx context.Context, store chain.BlockStore, prev chain.StoredBlock, height uint32) (*big.Int, error) {
	boundary := (height / RetargetInterval) * RetargetInterval
	if boundary == 0 {
		return BitsToTarget(prev.Header.Bits), nil
	}
	// The block at the boundary height carries the target that has held
	// since that retarget; prev itself may be mid-window.
	b, err := store.ByHeight(ctx, boundary)
	if err != nil {
		return BitsToTarget(prev.Header.Bits), nil
	}
	return BitsToTarget(b.Header.Bits), nil
}
