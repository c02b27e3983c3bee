// Package sync drives the post-handshake catch-up pipeline: getblocks,
// inv, getdata, block, validated and appended one at a time.
package sync

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/keato/chainpeer/internal/chain"
	"github.com/keato/chainpeer/internal/metrics"
	"github.com/keato/chainpeer/internal/script"
	"github.com/keato/chainpeer/internal/session"
	"github.com/keato/chainpeer/internal/validator"
	"github.com/keato/chainpeer/internal/wire"
	"github.com/rs/zerolog"
)

// Controller drives getblocks/inv/getdata/block against one session and
// block store. A single Controller is meant to be used from the one
// goroutine that owns its session.
type Controller struct {
	store       chain.BlockStore
	log         zerolog.Logger
	testnet     bool
	addrParams  *chaincfg.Params
	lastExpected wire.Hash32
	haveExpected bool
	seenBlocks  map[wire.Hash32]bool
}

// New creates a Controller backed by store. network selects both the
// validator's retargeting rule set (mainnet vs. everything else) and the
// chain parameters used to decode addresses out of accepted blocks for
// logging.
func New(store chain.BlockStore, network string, log zerolog.Logger) *Controller {
	return &Controller{
		store:      store,
		log:        log,
		testnet:    network != "bitcoin",
		addrParams: script.ChaincfgParams(network),
		seenBlocks: make(map[wire.Hash32]bool),
	}
}

// Callbacks returns the session.Callbacks wiring this controller's
// handlers to inv/block/notfound, plus an OnHandshake that kicks off the
// first getblocks.
func (c *Controller) Callbacks() session.Callbacks {
	return session.Callbacks{
		OnHandshake: c.onHandshake,
		Handlers: map[string]session.Handler{
			wire.CmdInv:      c.handleInv,
			wire.CmdBlock:    c.handleBlock,
			wire.CmdNotFound: c.handleNotFound,
		},
	}
}

func (c *Controller) onHandshake(s *session.Session) {
	ctx := context.Background()
	if err := c.sendGetBlocks(ctx, s); err != nil {
		c.log.Debug().Err(err).Msg("initial getblocks failed")
	}
}

func (c *Controller) sendGetBlocks(ctx context.Context, s *session.Session) error {
	tip, err := c.store.Latest(ctx)
	if err != nil {
		if !errors.Is(err, chain.ErrNotFound) {
			return err
		}
		tip = chain.TestnetGenesis
	}

	locatorHashes, err := chain.Locator(ctx, c.store, tip.Height)
	if err != nil {
		return err
	}

	return s.Send(wire.CmdGetBlocks, wire.GetBlocks{
		Version:  uint32(wire.ProtocolVersion),
		Locator:  locatorHashes,
		HashStop: wire.Hash32{},
	})
}

func (c *Controller) handleInv(s *session.Session, msg interface{}) error {
	inv, ok := msg.(wire.Inv)
	if !ok {
		return nil
	}
	if len(inv.Inventory) == 0 {
		return nil
	}

	var want []wire.Inventory
	for _, entry := range inv.Inventory {
		if entry.Type != wire.InvBlock {
			continue
		}
		metrics.InvBlockAnnouncements.Inc()
		if c.seenBlocks[entry.Hash] {
			continue
		}
		want = append(want, entry)
	}
	if len(want) == 0 {
		return nil
	}

	c.lastExpected = want[len(want)-1].Hash
	c.haveExpected = true
	return s.Send(wire.CmdGetData, wire.GetData{Inventory: want})
}

func (c *Controller) handleBlock(s *session.Session, msg interface{}) error {
	ctx := context.Background()
	block, ok := msg.(wire.Block)
	if !ok {
		return nil
	}
	metrics.BlocksReceived.Inc()

	tip, err := c.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			tip = chain.TestnetGenesis
		} else {
			return err
		}
	}

	if err := validator.Validate(ctx, c.store, block, tip, c.testnet); err != nil {
		metrics.BlocksRejected.WithLabelValues(rejectReason(err)).Inc()
		c.log.Debug().Err(err).Msg("block rejected")
		return nil
	}
	metrics.BlocksAccepted.Inc()

	hash := chain.BlockHash(block)
	stored := chain.StoredBlock{Header: block, Height: tip.Height + 1, Hash: hash}
	if err := c.store.Append(ctx, stored); err != nil {
		return err
	}
	c.seenBlocks[hash] = true
	metrics.ChainHeight.Set(float64(stored.Height))
	c.logBlockAddress(stored)

	if c.haveExpected && hash == c.lastExpected {
		c.haveExpected = false
		return c.sendGetBlocks(ctx, s)
	}
	return nil
}

// rejectReason maps a validator error to a stable metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, validator.ErrBadPrevHash):
		return "bad_prev_hash"
	case errors.Is(err, validator.ErrBadPoW):
		return "bad_pow"
	default:
		return "other"
	}
}

// logBlockAddress enriches the accepted-block log line with the first
// decodable output address, for operators correlating chain activity
// against known addresses.
func (c *Controller) logBlockAddress(b chain.StoredBlock) {
	for _, tx := range b.Header.Transactions {
		for _, out := range tx.TxOut {
			addr, err := script.ExtractAddress(out.PkScript, c.addrParams)
			if err != nil {
				continue
			}
			c.log.Debug().
				Str("hash", b.Hash.String()).
				Uint32("height", b.Height).
				Str("address", addr).
				Msg("block accepted")
			return
		}
	}
	c.log.Debug().Str("hash", b.Hash.String()).Uint32("height", b.Height).Msg("block accepted")
}

func (c *Controller) handleNotFound(s *session.Session, msg interface{}) error {
	nf, ok := msg.(wire.NotFound)
	if !ok {
		return nil
	}
	c.log.Debug().Int("count", len(nf.Inventory)).Msg("notfound")
	return nil
}
