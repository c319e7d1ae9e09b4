// Package positions implements the per-protocol position reader registry:
// a uniform read_positions(wallet, chain) contract over Aave v3,
// Compound v3, Spark, Lido, EtherFi, Morpho, Pendle and EigenLayer, with an
// indexer-first, RPC-fallback duality and a short-TTL cache over the
// merged result.
package positions

import (
	"context"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/cache"
)

// Kind enumerates the closed set of position kinds per spec §3.
type Kind string

const (
	KindSupply Kind = "supply"
	KindBorrow Kind = "borrow"
	KindStake  Kind = "stake"
	KindLP     Kind = "lp"
	KindVault  Kind = "vault"
)

// Reward is one accrued reward entry attached to a Position.
type Reward struct {
	Token      common.Address
	Symbol     string
	AmountRaw  *big.Int
	AmountUSD  *float64
}

// Position is one on-chain position a wallet holds in a protocol.
type Position struct {
	Protocol   string
	ChainID    int64
	Kind       Kind
	Token      common.Address
	Symbol     string
	BalanceRaw *big.Int
	Balance    float64
	BalanceUSD *float64
	APY        *float64
	Rewards    []Reward
	Metadata   map[string]string
}

// Adapter is the uniform per-protocol contract: ReadPositions for one
// chain, ReadAllPositions fanning out across every chain the adapter
// supports.
type Adapter interface {
	Protocol() string
	SupportedChains() []int64
	ReadPositions(ctx context.Context, wallet common.Address, chainID int64) ([]Position, error)
}

// ReadAllPositions is a default fan-out helper adapters can embed or call
// directly; it is not part of the Adapter interface itself. It and the
// Registry both read chains one after another; neither fans out in
// parallel.
func ReadAllPositions(ctx context.Context, a Adapter, wallet common.Address) ([]Position, error) {
	var out []Position
	for _, chainID := range a.SupportedChains() {
		positions, err := a.ReadPositions(ctx, wallet, chainID)
		if err != nil {
			// Per-protocol read failures are dropped, not surfaced, per
			// coreerr.KindPositionReadFailed's recoverable policy.
			continue
		}
		out = append(out, positions...)
	}
	return out, nil
}

// Registry fans out across every registered adapter and caches the union
// at (wallet, sorted(chains)) for ~2 minutes, per spec §4.H.
type Registry struct {
	adapters []Adapter
	cache    *cache.TTL
	ttl      time.Duration
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters, cache: cache.New(), ttl: 2 * time.Minute}
}

func cacheKey(wallet common.Address, chains []int64) string {
	sorted := append([]int64{}, chains...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	key := wallet.Hex()
	for _, c := range sorted {
		key += ":" + strconv.FormatInt(c, 10)
	}
	return key
}

// ReadPositions returns the union of every adapter's positions for wallet
// across the given chains, using the cached value when fresh.
func (r *Registry) ReadPositions(ctx context.Context, wallet common.Address, chains []int64) []Position {
	key := cacheKey(wallet, chains)
	if cached, ok := r.cache.Get(key); ok {
		if positions, ok := cached.([]Position); ok {
			return positions
		}
	}

	chainSet := make(map[int64]bool, len(chains))
	for _, c := range chains {
		chainSet[c] = true
	}

	var all []Position
	for _, adapter := range r.adapters {
		for _, chainID := range adapter.SupportedChains() {
			if !chainSet[chainID] {
				continue
			}
			positions, err := adapter.ReadPositions(ctx, wallet, chainID)
			if err != nil {
				continue
			}
			all = append(all, positions...)
		}
	}

	r.cache.Set(key, all, r.ttl)
	return all
}
