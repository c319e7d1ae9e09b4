package strategy

import "fmt"

// allowedPredecessors lists, per node type, the predecessor node types that
// satisfy its "reached from" requirement (spec §4.B: "a Borrow must be
// reached from a Lend"). Input has no predecessor requirement. AutoWrap
// accepts anything, since the optimiser inserts it between whatever producer
// and consumer it bridges.
var allowedPredecessors = map[NodeType]map[NodeType]bool{
	NodeStake:    {NodeInput: true, NodeAutoWrap: true, NodeSwap: true},
	NodeLend:     {NodeInput: true, NodeStake: true, NodeAutoWrap: true, NodeSwap: true},
	NodeBorrow:   {NodeLend: true},
	NodeSwap:     {NodeInput: true, NodeStake: true, NodeLend: true, NodeBorrow: true, NodeAutoWrap: true, NodeSwap: true},
	NodeAutoWrap: {NodeInput: true, NodeStake: true, NodeLend: true, NodeBorrow: true, NodeSwap: true, NodeAutoWrap: true},
}

// ValidationResult is the {errors[], warnings[]} pair spec §4.B's validate
// contract returns.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks a strategy against the rules in spec §4.B, in order:
// exactly one Input, per-variant parameter constraints, required incoming
// edge types, duplicate edges and edges to missing blocks, the
// outgoing-flow-percent budget, and orphan nodes.
func Validate(s *Strategy) ValidationResult {
	var result ValidationResult

	inputCount := 0
	for _, b := range s.Blocks {
		if b.Type() == NodeInput {
			inputCount++
		}
	}
	if inputCount == 0 {
		result.Errors = append(result.Errors, "strategy needs an Input block")
	} else if inputCount > 1 {
		result.Errors = append(result.Errors, "strategy must contain exactly one Input block")
	}

	for _, b := range s.Blocks {
		result.Errors = append(result.Errors, validateParams(b)...)
	}

	if len(s.Blocks) > 1 {
		for _, b := range s.Blocks {
			if b.Type() == NodeInput {
				continue
			}
			if !hasAllowedPredecessor(s, b) {
				result.Errors = append(result.Errors, fmt.Sprintf(
					"block %q (%s) is not reached from a required predecessor type", b.ID(), b.Type()))
			}
		}
	}

	seenPairs := make(map[[2]string]bool)
	for _, e := range s.Edges {
		key := [2]string{e.SourceID, e.TargetID}
		if seenPairs[key] {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"duplicate edge %s -> %s", e.SourceID, e.TargetID))
		}
		seenPairs[key] = true
		if s.BlockByID(e.SourceID) == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("edge %q references missing source %q", e.ID, e.SourceID))
		}
		if s.BlockByID(e.TargetID) == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("edge %q references missing target %q", e.ID, e.TargetID))
		}
	}

	for _, b := range s.Blocks {
		if b.Type() == NodeInput {
			continue
		}
		sum := 0.0
		for _, e := range s.OutgoingEdges(b.ID()) {
			sum += e.FlowPercent
		}
		if sum > 100 {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"block %q's outgoing flow percent sums to %.2f, exceeding 100", b.ID(), sum))
		}
	}

	if len(s.Blocks) > 1 {
		for _, b := range s.Blocks {
			if len(s.IncomingEdges(b.ID())) == 0 && len(s.OutgoingEdges(b.ID())) == 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("block %q is orphaned", b.ID()))
			}
		}
	}

	return result
}

func hasAllowedPredecessor(s *Strategy, b Node) bool {
	allowed := allowedPredecessors[b.Type()]
	if allowed == nil {
		return true
	}
	for _, e := range s.IncomingEdges(b.ID()) {
		src := s.BlockByID(e.SourceID)
		if src == nil {
			continue
		}
		if allowed[src.Type()] {
			return true
		}
	}
	return false
}

func validateParams(b Node) []string {
	var errs []string
	switch n := b.(type) {
	case InputNode:
		if n.Amount == nil || n.Amount.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("input block %q: amount must be positive", n.ID()))
		}
	case BorrowNode:
		if n.LTVPercent <= 0 || n.LTVPercent >= 100 {
			errs = append(errs, fmt.Sprintf("borrow block %q: ltv_percent must be in (0,100), got %.2f", n.ID(), n.LTVPercent))
		}
	case LendNode:
		if n.MaxLTV < 0 || n.MaxLTV >= 100 {
			errs = append(errs, fmt.Sprintf("lend block %q: max_ltv must be in [0,100), got %.2f", n.ID(), n.MaxLTV))
		}
		if n.LiquidationThreshold < 0 || n.LiquidationThreshold > 1 {
			errs = append(errs, fmt.Sprintf("lend block %q: liquidation_threshold must be in [0,1], got %.2f", n.ID(), n.LiquidationThreshold))
		}
	case SwapNode:
		if n.SlippageBps < 0 || n.SlippageBps > 10_000 {
			errs = append(errs, fmt.Sprintf("swap block %q: slippage_bps must be in [0,10000], got %d", n.ID(), n.SlippageBps))
		}
	}
	return errs
}
