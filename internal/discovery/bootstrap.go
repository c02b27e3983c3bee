package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	bitnodesAPI    = "https://bitnodes.io/api/v1/snapshots/latest/"
	bootstrapWait  = 40 * time.Second
	seedRetryCool  = 10 * time.Second
	maxBootstrapTr = 3
)

// FetchNodes retrieves the current snapshot of reachable IPv4 nodes from
// bitnodes.io. .onion and IPv6 entries are skipped since this peer only
// dials IPv4.
func FetchNodes(ctx context.Context) ([]*Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bitnodesAPI, nil)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	for attempt := 0; attempt < 3; attempt++ {
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("bitnodes GET failed: %w", err)
		}
		if resp.StatusCode == http.StatusOK {
			break
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			backoff := time.Duration(attempt+1) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return nil, fmt.Errorf("unexpected status from bitnodes: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitnodes failed after retries, status: %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	var payload struct {
		Nodes map[string][]interface{} `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding bitnodes snapshot: %w", err)
	}

	var nodes []*Node
	for addrPort, data := range payload.Nodes {
		if len(data) < 2 || strings.HasPrefix(addrPort, "[") || strings.HasSuffix(addrPort, ".onion") {
			continue
		}
		parts := strings.Split(addrPort, ":")
		if len(parts) != 2 {
			continue
		}
		ip := net.ParseIP(parts[0])
		if ip == nil || ip.To4() == nil {
			continue
		}
		var port int
		if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
			continue
		}

		node := &Node{Address: parts[0], Port: port}
		if v, ok := data[0].(float64); ok {
			node.Version = int(v)
		}
		if v, ok := data[1].(string); ok {
			node.UserAgent = v
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Bootstrap populates pool from one or more seed sources, bounded by a
// 40-second timeout rather than the two-thread/sentinel design the
// original bootstrapper used: a single context.WithTimeout race between
// the fetch and the deadline, with a cooldown between seed attempts if
// the first yields nothing.
func Bootstrap(ctx context.Context, pool *Pool, log zerolog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < maxBootstrapTr; attempt++ {
		bctx, cancel := context.WithTimeout(ctx, bootstrapWait)
		nodes, err := FetchNodes(bctx)
		cancel()

		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("bootstrap seed fetch failed")
		} else if len(nodes) > 0 {
			pool.Add(nodes)
			log.Info().Int("count", len(nodes)).Msg("bootstrap populated address pool")
			return nil
		}

		select {
		case <-time.After(seedRetryCool):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if lastErr != nil {
		return fmt.Errorf("bootstrap exhausted retries: %w", lastErr)
	}
	return fmt.Errorf("bootstrap exhausted retries: no nodes returned")
}
