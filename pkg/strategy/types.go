// Package strategy implements the typed strategy graph: nodes, edges,
// validation, topological ordering and loop detection/classification.
// Node variants are a closed tagged union (interface + one struct per
// variant), matching the teacher's closed-set-of-param-structs style in
// types.go (MintParams, UnstakeParams, ...) rather than open polymorphism.
package strategy

import (
	"math/big"

	"github.com/blackhole-labs/stratplan/pkg/registry"
)

// NodeType enumerates the closed set of strategy node variants.
type NodeType string

const (
	NodeInput    NodeType = "input"
	NodeStake    NodeType = "stake"
	NodeLend     NodeType = "lend"
	NodeBorrow   NodeType = "borrow"
	NodeSwap     NodeType = "swap"
	NodeAutoWrap NodeType = "auto_wrap"
)

// Node is the tagged-union interface every strategy block satisfies.
// Matching must be exhaustive via a type switch on Type(); node() is an
// unexported marker so no external package can add a new variant.
type Node interface {
	ID() string
	Label() string
	Type() NodeType
	Configured() bool
	Valid() bool
	node()
}

// Base carries the fields every node variant owns, per spec §3.
type Base struct {
	NodeID       string
	NodeLabel    string
	IsConfigured bool
	IsValid      bool
}

func (b Base) ID() string      { return b.NodeID }
func (b Base) Label() string   { return b.NodeLabel }
func (b Base) Configured() bool { return b.IsConfigured }
func (b Base) Valid() bool     { return b.IsValid }
func (b Base) node()           {}

// InputNode is the strategy's entry point: a fixed amount of one asset.
type InputNode struct {
	Base
	Asset  registry.Asset
	Amount *big.Int
}

func (InputNode) Type() NodeType { return NodeInput }

// StakeNode stakes InAsset for OutAsset at a given protocol (e.g. Lido,
// EtherFi).
type StakeNode struct {
	Base
	Protocol string
	InAsset  registry.Asset
	OutAsset registry.Asset
	APY      *float64
}

func (StakeNode) Type() NodeType { return NodeStake }

// LendNode supplies an asset to a money-market protocol as collateral.
// Asset is nil until the optimiser annotates this node with a dynamic
// (post-wrap) asset (see pkg/route); while nil, the asset is taken from
// the predecessor block.
type LendNode struct {
	Base
	Protocol             string
	Chain                int64
	Asset                *registry.Asset
	SupplyAPY            *float64
	MaxLTV               float64
	LiquidationThreshold float64
}

func (LendNode) Type() NodeType { return NodeLend }

// BorrowNode draws debt against a preceding Lend node's collateral.
type BorrowNode struct {
	Base
	Protocol   string
	Asset      registry.Asset
	LTVPercent float64
	BorrowAPY  *float64
}

func (BorrowNode) Type() NodeType { return NodeBorrow }

// SwapNode exchanges From for To with a maximum allowed slippage.
type SwapNode struct {
	Base
	From        registry.Asset
	To          registry.Asset
	SlippageBps int
}

func (SwapNode) Type() NodeType { return NodeSwap }

// WrapDirection is wrap or unwrap, matching spec §4.C.
type WrapDirection string

const (
	DirectionWrap   WrapDirection = "wrap"
	DirectionUnwrap WrapDirection = "unwrap"
)

// WrapStep names the conversion an AutoWrapNode performs.
type WrapStep struct {
	From      registry.Asset
	To        registry.Asset
	Protocol  string
	Direction WrapDirection
}

// AutoWrapNode is inserted by the route optimiser (never authored by hand)
// between a producer and a consumer whose assets are incompatible.
type AutoWrapNode struct {
	Base
	From     registry.Asset
	To       registry.Asset
	WrapStep WrapStep
}

func (AutoWrapNode) Type() NodeType { return NodeAutoWrap }

// Edge is a directed strategy edge carrying a flow percentage.
type Edge struct {
	ID          string
	SourceID    string
	TargetID    string
	FlowPercent float64
}

// Strategy is a process-local edit buffer; per spec §3 it does not persist
// inside the CORE.
type Strategy struct {
	ID        string
	Blocks    []Node
	Edges     []Edge
	CreatedAt int64 // ms since epoch
	UpdatedAt int64
}

// BlockByID finds a node by id, or nil if absent.
func (s *Strategy) BlockByID(id string) Node {
	for _, b := range s.Blocks {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

// OutgoingEdges returns edges whose source is the given node id, in their
// original slice order (edge order is significant for determinism).
func (s *Strategy) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.SourceID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns edges whose target is the given node id.
func (s *Strategy) IncomingEdges(nodeID string) []Edge {
	var in []Edge
	for _, e := range s.Edges {
		if e.TargetID == nodeID {
			in = append(in, e)
		}
	}
	return in
}
