// Package route implements the optimiser that inserts wrap/unwrap steps
// where a producer's emitted token is incompatible with a consumer's
// expected input, e.g. stETH -> wstETH before an Aave v3 supply.
package route

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

// wrapEntry is one row of the static TOKEN_WRAPPERS table.
type wrapEntry struct {
	From      registry.Asset
	To        registry.Asset
	Protocol  string
	Direction strategy.WrapDirection
}

// tokenWrappers enumerates the convertible pairs spec §4.C names:
// stETH<->wstETH (Lido), eETH<->weETH (EtherFi).
var tokenWrappers = []wrapEntry{
	{From: registry.StETH(), To: registry.WstETH(), Protocol: "lido", Direction: strategy.DirectionWrap},
	{From: registry.WstETH(), To: registry.StETH(), Protocol: "lido", Direction: strategy.DirectionUnwrap},
	{From: registry.EETH(), To: registry.WeETH(), Protocol: "etherfi", Direction: strategy.DirectionWrap},
	{From: registry.WeETH(), To: registry.EETH(), Protocol: "etherfi", Direction: strategy.DirectionUnwrap},
}

// wrapRequiredLendProtocols lists lending protocols that only accept the
// wrapped (non-rebasing) variant of a liquid-staking token as collateral.
var wrapRequiredLendProtocols = map[string]bool{
	"aave-v3": true,
}

func findWrap(fromSymbol string) (wrapEntry, bool) {
	for _, w := range tokenWrappers {
		if w.From.Symbol == fromSymbol && w.Direction == strategy.DirectionWrap {
			return w, true
		}
	}
	return wrapEntry{}, false
}

// Incompatibility records one edge whose emitted/accepted assets mismatch,
// along with the wrap step that resolves it.
type Incompatibility struct {
	EdgeID   string
	FromID   string
	ToID     string
	WrapStep strategy.WrapStep
}

// emittedAsset returns the asset a node hands to its successors, or the
// zero Asset if the node has no single well-defined output (e.g. Borrow,
// whose output is a distinct borrowed asset unrelated to the edge it sits
// on downstream of).
func emittedAsset(n strategy.Node) (registry.Asset, bool) {
	switch v := n.(type) {
	case strategy.InputNode:
		return v.Asset, true
	case strategy.StakeNode:
		return v.OutAsset, true
	case strategy.AutoWrapNode:
		return v.To, true
	case strategy.SwapNode:
		return v.To, true
	}
	return registry.Asset{}, false
}

// AnalyzeRouteCompatibility walks every edge and reports the incompatible
// ones, i.e. those whose target is a Lend node at a wrap-required protocol
// still expecting the raw (un-wrapped) LST.
func AnalyzeRouteCompatibility(s *strategy.Strategy) []Incompatibility {
	var out []Incompatibility
	for _, e := range s.Edges {
		src := s.BlockByID(e.SourceID)
		dst := s.BlockByID(e.TargetID)
		if src == nil || dst == nil {
			continue
		}
		emitted, ok := emittedAsset(src)
		if !ok {
			continue
		}
		lend, isLend := dst.(strategy.LendNode)
		if !isLend {
			continue
		}
		if lend.Asset != nil {
			// Already resolved by a prior optimisation pass: idempotent no-op.
			continue
		}
		if !wrapRequiredLendProtocols[lend.Protocol] {
			continue
		}
		wrap, needsWrap := findWrap(emitted.Symbol)
		if !needsWrap {
			continue
		}
		out = append(out, Incompatibility{
			EdgeID: e.ID,
			FromID: e.SourceID,
			ToID:   e.TargetID,
			WrapStep: strategy.WrapStep{
				From:      wrap.From,
				To:        wrap.To,
				Protocol:  wrap.Protocol,
				Direction: wrap.Direction,
			},
		})
	}
	return out
}

// OptimizeStrategy rewrites the graph in place: each incompatible edge
// u->v becomes u->w->v with a fresh AutoWrap node w, and the downstream
// Lend node is annotated with the dynamic (post-wrap) asset. Auto-wrap
// nodes are never removed by later edits, and rerunning this function is a
// no-op once every incompatibility has been resolved (Testable Property 4).
func OptimizeStrategy(s *strategy.Strategy) (insertedCount int, err error) {
	incompatibilities := AnalyzeRouteCompatibility(s)
	for _, inc := range incompatibilities {
		wrapNodeID := fmt.Sprintf("autowrap-%s", uuid.NewString())
		wrapNode := strategy.AutoWrapNode{
			Base: strategy.Base{
				NodeID:       wrapNodeID,
				NodeLabel:    fmt.Sprintf("%s -> %s (%s)", inc.WrapStep.From.Symbol, inc.WrapStep.To.Symbol, inc.WrapStep.Protocol),
				IsConfigured: true,
				IsValid:      true,
			},
			From:     inc.WrapStep.From,
			To:       inc.WrapStep.To,
			WrapStep: inc.WrapStep,
		}
		s.Blocks = append(s.Blocks, wrapNode)

		for i, e := range s.Edges {
			if e.ID == inc.EdgeID {
				s.Edges[i].TargetID = wrapNodeID
				s.Edges = append(s.Edges, strategy.Edge{
					ID:          fmt.Sprintf("edge-%s", uuid.NewString()),
					SourceID:    wrapNodeID,
					TargetID:    inc.ToID,
					FlowPercent: e.FlowPercent,
				})
				break
			}
		}

		for i, b := range s.Blocks {
			if b.ID() == inc.ToID {
				if lend, ok := b.(strategy.LendNode); ok {
					asset := inc.WrapStep.To
					lend.Asset = &asset
					s.Blocks[i] = lend
				}
				break
			}
		}

		insertedCount++
	}
	return insertedCount, nil
}
