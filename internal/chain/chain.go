// Package chain maintains the locally accepted header chain: storage of
// accepted blocks indexed by height and hash, and the block-locator
// algorithm used to ask a peer for what comes next.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/keato/chainpeer/internal/wire"
)

// ErrNotFound is returned by BlockStore lookups that miss.
var ErrNotFound = errors.New("chain: block not found")

// StoredBlock is an accepted header plus the chain position it occupies.
// StoredBlock keeps the persisted row distinct from the wire Block value;
// conversion happens explicitly at Append.
type StoredBlock struct {
	Header wire.Block
	Height uint32
	Hash   wire.Hash32
}

// BlockHash computes the double-SHA-256 of a header's 6 fixed fields.
func BlockHash(h wire.Block) wire.Hash32 {
	first := sha256.Sum256(h.HeaderBytes())
	second := sha256.Sum256(first[:])
	var out wire.Hash32
	copy(out[:], second[:])
	return out
}

// hashFromHex parses the conventional byte-reversed display hex of a hash
// back into its internal byte order.
func hashFromHex(s string) wire.Hash32 {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("chain: invalid genesis hash literal " + s)
	}
	var h wire.Hash32
	for i := range b {
		h[i] = b[len(b)-1-i]
	}
	return h
}

// TestnetGenesis is the testnet genesis header/height pair every testnet
// chain bootstraps from.
var TestnetGenesis = StoredBlock{
	Header: wire.Block{
		Version:    1,
		PrevBlock:  wire.Hash32{},
		MerkleRoot: hashFromHex("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Timestamp:  1296688602,
		Bits:       486604799,
		Nonce:      414098458,
	},
	Height: 0,
	Hash:   hashFromHex("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
}

// BlockStore is the storage-agnostic interface the validator and sync
// controller depend on. internal/store provides a Postgres-backed
// implementation; MemStore below backs tests and offline use.
type BlockStore interface {
	// ByHash returns the stored block with the given hash, or ErrNotFound.
	ByHash(ctx context.Context, hash wire.Hash32) (StoredBlock, error)
	// ByHeight returns the stored block at the given height, or ErrNotFound.
	ByHeight(ctx context.Context, height uint32) (StoredBlock, error)
	// Latest returns the highest-height stored block, or ErrNotFound if the
	// store is empty.
	Latest(ctx context.Context) (StoredBlock, error)
	// Append records a new tip. The caller is responsible for having
	// validated it first.
	Append(ctx context.Context, b StoredBlock) error
}

// MemStore is an in-memory BlockStore keyed by height, safe for concurrent
// use. It has no persistence and is meant for tests and standalone runs
// without a configured database.
type MemStore struct {
	mu       sync.RWMutex
	byHeight map[uint32]StoredBlock
	byHash   map[wire.Hash32]StoredBlock
	tip      uint32
	hasTip   bool
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		byHeight: make(map[uint32]StoredBlock),
		byHash:   make(map[wire.Hash32]StoredBlock),
	}
}

func (m *MemStore) ByHash(_ context.Context, hash wire.Hash32) (StoredBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byHash[hash]
	if !ok {
		return StoredBlock{}, ErrNotFound
	}
	return b, nil
}

func (m *MemStore) ByHeight(_ context.Context, height uint32) (StoredBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byHeight[height]
	if !ok {
		return StoredBlock{}, ErrNotFound
	}
	return b, nil
}

func (m *MemStore) Latest(_ context.Context) (StoredBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasTip {
		return StoredBlock{}, ErrNotFound
	}
	return m.byHeight[m.tip], nil
}

func (m *MemStore) Append(_ context.Context, b StoredBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHeight[b.Height] = b
	m.byHash[b.Hash] = b
	if !m.hasTip || b.Height > m.tip {
		m.tip = b.Height
		m.hasTip = true
	}
	return nil
}

// Locator builds a block-locator hash list from the chain tip backward:
// the 11 most recent hashes (tip down to tip-10), then exponentially larger
// steps, ending at genesis. Grounded on original_source/pitcoin/sync.py's
// Synchronizer.get_locator_blocks.
func Locator(ctx context.Context, store BlockStore, tipHeight uint32) ([]wire.Hash32, error) {
	var hashes []wire.Hash32
	step := uint32(1)
	height := tipHeight
	for {
		b, err := store.ByHeight(ctx, height)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, err
		}
		hashes = append(hashes, b.Hash)
		if height == 0 {
			break
		}
		if len(hashes) > 10 {
			step *= 2
		}
		if height < step {
			height = 0
		} else {
			height -= step
		}
	}
	return hashes, nil
}
