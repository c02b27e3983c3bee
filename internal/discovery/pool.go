// Package discovery bootstraps the address pool: a bitnodes.io snapshot
// fetch feeding an append-only Pool of candidate endpoints, with the
// failure-backoff/blacklist bookkeeping needed to avoid hammering dead
// peers during sync.
package discovery

import (
	"fmt"
	"sync"
	"time"
)

const (
	failBackoff      = 5 * time.Minute
	disconnectWindow = 2 * time.Minute
	maxStrikes       = 2
)

// Node is one candidate peer endpoint.
type Node struct {
	Address   string
	Port      int
	Version   int
	UserAgent string
}

// Addr returns the address:port string used to dial this node.
func (n *Node) Addr() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

// Pool holds candidate peer endpoints discovered via bootstrap. It is
// append-only while bootstrap is populating it and read-only once sync
// starts pulling nodes from it, guarded throughout by a mutex so a
// late-arriving bootstrap result can never race a read.
type Pool struct {
	mu             sync.Mutex
	nodes          []*Node
	failed         map[string]time.Time
	strikes        map[string]int
	lastDisconnect map[string]time.Time
	blacklist      map[string]bool
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{
		failed:         make(map[string]time.Time),
		strikes:        make(map[string]int),
		lastDisconnect: make(map[string]time.Time),
		blacklist:      make(map[string]bool),
	}
}

// Add appends nodes to the pool. Safe to call repeatedly as bootstrap
// results trickle in.
func (p *Pool) Add(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = append(p.nodes, nodes...)
}

// Len reports how many nodes are currently in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Next returns the first node that is not blacklisted and not within its
// failure backoff window.
func (p *Pool) Next() (*Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for _, node := range p.nodes {
		addr := node.Addr()
		if p.blacklist[addr] {
			continue
		}
		if lastFail, failed := p.failed[addr]; failed && now.Sub(lastFail) < failBackoff {
			continue
		}
		return node, true
	}
	return nil, false
}

// MarkFailed records a dial or handshake failure against addr, putting it
// into its backoff window.
func (p *Pool) MarkFailed(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[addr] = time.Now()
}

// MarkDisconnect tracks rapid reconnect/disconnect cycles and blacklists a
// peer once it accumulates maxStrikes within disconnectWindow of each
// other.
func (p *Pool) MarkDisconnect(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if lastDc, ok := p.lastDisconnect[addr]; ok && now.Sub(lastDc) < disconnectWindow {
		p.strikes[addr]++
		if p.strikes[addr] >= maxStrikes {
			p.blacklist[addr] = true
		}
	} else {
		p.strikes[addr] = 1
	}
	p.lastDisconnect[addr] = now
	p.failed[addr] = now
}
