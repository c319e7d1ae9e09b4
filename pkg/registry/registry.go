// Package registry holds the chain/protocol/asset tables the rest of the
// pipeline reads from. It is read-only once populated (by DefaultSeed or
// configs.LoadRegistrySeed, via AddChain/AddProtocol): the teacher's
// configs.Config played the same role for a single DEX deployment
// (blackhole.go's ccm map[string]ContractClient), generalised here to a
// multi-chain, multi-protocol table.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// ProtocolCategory classifies a Protocol per spec §3.
type ProtocolCategory string

const (
	CategoryStaking    ProtocolCategory = "staking"
	CategoryLending    ProtocolCategory = "lending"
	CategoryRestaking  ProtocolCategory = "restaking"
	CategoryYield      ProtocolCategory = "yield"
	CategoryDEX        ProtocolCategory = "dex"
)

// Multicall3Address is deployed at the same address on every supported
// chain.
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// Chain describes one supported network.
type Chain struct {
	ID             int64
	Name           string
	WrappedNative  common.Address
	MulticallAddr  common.Address
	NativePriceUSD float64 // static fallback price; a live feed would replace this
}

// Asset is a symbolic token handle. Equality is by (ChainID, Address); the
// zero address is the sentinel for the chain-native coin.
type Asset struct {
	ChainID     int64
	Address     common.Address
	Symbol      string
	Decimals    uint8
	PriceFeedID string
}

// IsNative reports whether the asset represents the chain-native coin.
func (a Asset) IsNative() bool { return a.Address == (common.Address{}) }

func (a Asset) Equal(o Asset) bool {
	return a.ChainID == o.ChainID && a.Address == o.Address
}

// Protocol describes one integrated money-market/staking protocol.
type Protocol struct {
	ID               string
	Category         ProtocolCategory
	SupportedChains  []int64
	RiskScore        float64 // 0-100
	Contracts        map[int64]map[string]common.Address // chainID -> contractName -> address
}

// ContractAddress looks up a named contract for a protocol on a chain.
func (p Protocol) ContractAddress(chainID int64, name string) (common.Address, bool) {
	byChain, ok := p.Contracts[chainID]
	if !ok {
		return common.Address{}, false
	}
	addr, ok := byChain[name]
	return addr, ok
}

// GasCosts are the builder's flat per-action gas estimates, per spec §4.E.
type GasCosts struct {
	Approve uint64
	Stake   uint64
	Wrap    uint64
	Supply  uint64
	Borrow  uint64
}

// DefaultGasCosts matches the spec's stated defaults exactly (Open Question
// 1: no per-market calibration is introduced).
var DefaultGasCosts = GasCosts{
	Approve: 50_000,
	Stake:   180_000,
	Wrap:    100_000,
	Supply:  300_000,
	Borrow:  350_000,
}

// WrapRatio gives the conservative post-wrap balance fraction used by the
// builder when a dynamic (wrapped) asset's true amount isn't known until
// execution time. Per Open Question 2, this is a registry-level constant
// rather than an on-chain exchange-rate read. Below 10 ETH the ratio steps
// down by a further 1%, per spec §4.E: small amounts get the more
// conservative bound since there is less room to absorb a bad estimate.
// wrappedSymbol is the symbol of the wrapped token produced (weETH, wstETH).
func WrapRatio(wrappedSymbol string, amountEth float64) float64 {
	buffer := 0.0
	if amountEth < 10 {
		buffer = 0.01
	}
	switch wrappedSymbol {
	case "weETH":
		return 0.85 - buffer
	case "wstETH":
		return 0.79 - buffer
	default:
		return 1.0
	}
}

// Registry is the read-only, process-lifetime table of chains/protocols.
type Registry struct {
	chains    map[int64]Chain
	protocols map[string]Protocol
}

// New builds an empty registry; use AddChain/AddProtocol (or DefaultSeed)
// to populate chains/protocols.
func New() *Registry {
	return &Registry{
		chains:    make(map[int64]Chain),
		protocols: make(map[string]Protocol),
	}
}

func (r *Registry) AddChain(c Chain) {
	r.chains[c.ID] = c
}

func (r *Registry) AddProtocol(p Protocol) {
	r.protocols[p.ID] = p
}

func (r *Registry) Chain(id int64) (Chain, error) {
	c, ok := r.chains[id]
	if !ok {
		return Chain{}, fmt.Errorf("unsupported chain %d", id)
	}
	return c, nil
}

func (r *Registry) Protocol(id string) (Protocol, error) {
	p, ok := r.protocols[id]
	if !ok {
		return Protocol{}, fmt.Errorf("unknown protocol %q", id)
	}
	return p, nil
}

// AssumedGasPriceGwei stands in for a live gas oracle. Dynamic oracle
// selection is explicitly out of scope (spec §1 Non-goals), so both the
// simulator's gas_cost_usd and the builder's estimated_total_gas_usd price
// gas at this fixed, documented rate rather than leaving it unconverted.
const AssumedGasPriceGwei = 30.0

// GasCostUSD converts a gas-unit total into USD using AssumedGasPriceGwei
// and the chain's native price — the one conversion helper both the
// simulator and the builder call, so they never duplicate the lookup.
func (r *Registry) GasCostUSD(chainID int64, gasUnits uint64) float64 {
	gasCostNative := float64(gasUnits) * AssumedGasPriceGwei * 1e9 / 1e18
	return gasCostNative * r.NativePriceUSD(chainID)
}

// NativePriceUSD is the gas-to-USD conversion helper shared by the
// simulator (gas_cost_usd) and the builder (estimated_total_gas_usd), so
// neither duplicates a price lookup.
func (r *Registry) NativePriceUSD(chainID int64) float64 {
	c, err := r.Chain(chainID)
	if err != nil {
		log.Warn().Int64("chain_id", chainID).Msg("native price requested for unknown chain")
		return 0
	}
	return c.NativePriceUSD
}

// Chains returns the full set of supported chain ids, for fan-out reads.
func (r *Registry) Chains() []int64 {
	ids := make([]int64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	return ids
}
