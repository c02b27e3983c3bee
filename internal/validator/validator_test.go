package validator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/keato/chainpeer/internal/chain"
	"github.com/keato/chainpeer/internal/wire"
)

func TestBitsToTargetRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, MaxBits}
	for _, bits := range cases {
		target := BitsToTarget(bits)
		got := TargetToBits(target)
		if got != bits {
			t.Fatalf("bits %08x round-tripped to %08x", bits, got)
		}
	}
}

func TestBitsToTargetZero(t *testing.T) {
	target := BitsToTarget(0)
	if target.Sign() != 0 {
		t.Fatalf("expected zero target for bits=0, got %v", target)
	}
}

func TestTargetToBitsSignBitBump(t *testing.T) {
	// A target whose top mantissa byte would set the 0x80 bit must shift
	// down and bump the exponent, per the packed format's sign convention.
	target := new(big.Int).Lsh(big.NewInt(0xFFFFFF), 232)
	bits := TargetToBits(target)
	if bits != 0x2100ffff {
		t.Fatalf("got %08x want %08x", bits, 0x2100ffff)
	}
}

func TestValidateRejectsBadPrevHash(t *testing.T) {
	store := chain.NewMemStore()
	prev := chain.StoredBlock{Header: wire.Block{Version: 1, Bits: 0x1d00ffff}, Height: 0}
	incoming := wire.Block{Version: 1, PrevBlock: wire.Hash32{0xFF}, Bits: 0x1d00ffff}

	err := Validate(context.Background(), store, incoming, prev, false)
	if !errors.Is(err, ErrBlockRejected) {
		t.Fatalf("got %v want ErrBlockRejected", err)
	}
}

func TestValidateRejectsBitsMismatch(t *testing.T) {
	store := chain.NewMemStore()
	prevHeader := wire.Block{Version: 1, Bits: 0x1d00ffff}
	prev := chain.StoredBlock{Header: prevHeader, Height: 0, Hash: chain.BlockHash(prevHeader)}

	incoming := wire.Block{
		Version:   1,
		PrevBlock: prev.Hash,
		Bits:      0x1d00fffe, // doesn't match inherited target
	}

	err := Validate(context.Background(), store, incoming, prev, false)
	if !errors.Is(err, ErrBlockRejected) {
		t.Fatalf("got %v want ErrBlockRejected", err)
	}
}

func TestValidateAcceptsLowDifficultyBlock(t *testing.T) {
	const bits = 0x2100ffff
	store := chain.NewMemStore()

	prevHeader := wire.Block{Version: 1, Timestamp: 100, Bits: bits, Nonce: 0}
	prevHash := chain.BlockHash(prevHeader)
	prev := chain.StoredBlock{Header: prevHeader, Height: 0, Hash: prevHash}

	incoming := wire.Block{
		Version:    1,
		PrevBlock:  prevHash,
		MerkleRoot: wire.Hash32{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		Timestamp:  200,
		Bits:       bits,
		Nonce:      0,
	}

	if err := Validate(context.Background(), store, incoming, prev, false); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestValidateRetargetClampsToFactorOfFour(t *testing.T) {
	ctx := context.Background()
	store := chain.NewMemStore()

	startBits := uint32(0x1d00ffff)
	first := chain.StoredBlock{
		Header: wire.Block{Version: 1, Timestamp: 0, Bits: startBits},
		Height: 0,
	}
	if err := store.Append(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A window that finished instantly (timespan near zero) must clamp to
	// TargetTimespan/4, not shrink the target by the full ratio.
	prevHeader := wire.Block{Version: 1, Timestamp: 1, Bits: startBits}
	prev := chain.StoredBlock{Header: prevHeader, Height: RetargetInterval - 1}

	target, err := retarget(ctx, store, prev, RetargetInterval)
	if err != nil {
		t.Fatal(err)
	}

	startTarget := BitsToTarget(startBits)
	minTarget := new(big.Int).Div(startTarget, big.NewInt(4))
	if target.Cmp(minTarget) < 0 {
		t.Fatalf("retargeted target %v fell below the 4x clamp floor %v", target, minTarget)
	}
}

func TestValidateTestnetMaxSpacingException(t *testing.T) {
	ctx := context.Background()
	store := chain.NewMemStore()

	prevHeader := wire.Block{Version: 1, Timestamp: 1000, Bits: 0x1d00ffff}
	prev := chain.StoredBlock{Header: prevHeader, Height: 5}

	incoming := wire.Block{
		Version:   1,
		Timestamp: 1000 + TestnetMaxSpacing + 1,
	}

	target, err := expectedTarget(ctx, store, incoming, prev, 6, true)
	if err != nil {
		t.Fatal(err)
	}
	if target.Cmp(MaxTarget()) != 0 {
		t.Fatalf("expected max target under the testnet spacing exception, got %v", target)
	}
}
