package route

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

// s2Strategy builds spec scenario S2: Input{ETH,1} -> Stake{etherfi} ->
// Lend{aave-v3}, with the Lend node's Asset left nil so the optimiser must
// insert an eETH -> weETH auto-wrap before it.
func s2Strategy() *strategy.Strategy {
	input := strategy.InputNode{
		Base:   strategy.Base{NodeID: "input-1", IsConfigured: true, IsValid: true},
		Asset:  registry.ETH(),
		Amount: big.NewInt(1e18),
	}
	stake := strategy.StakeNode{
		Base:     strategy.Base{NodeID: "stake-1", IsConfigured: true, IsValid: true},
		Protocol: "etherfi",
		InAsset:  registry.ETH(),
		OutAsset: registry.EETH(),
	}
	lend := strategy.LendNode{
		Base:     strategy.Base{NodeID: "lend-1", IsConfigured: true, IsValid: true},
		Protocol: "aave-v3",
		Chain:    registry.MainnetChainID,
		MaxLTV:   80,
	}
	return &strategy.Strategy{
		ID:     "s2",
		Blocks: []strategy.Node{input, stake, lend},
		Edges: []strategy.Edge{
			{ID: "e1", SourceID: "input-1", TargetID: "stake-1", FlowPercent: 100},
			{ID: "e2", SourceID: "stake-1", TargetID: "lend-1", FlowPercent: 100},
		},
	}
}

func TestAnalyzeRouteCompatibilityFindsEEthMismatch(t *testing.T) {
	s := s2Strategy()
	incompatibilities := AnalyzeRouteCompatibility(s)
	require.Len(t, incompatibilities, 1)
	assert.Equal(t, "e2", incompatibilities[0].EdgeID)
	assert.Equal(t, "eETH", incompatibilities[0].WrapStep.From.Symbol)
	assert.Equal(t, "weETH", incompatibilities[0].WrapStep.To.Symbol)
	assert.Equal(t, strategy.DirectionWrap, incompatibilities[0].WrapStep.Direction)
}

func TestOptimizeStrategyInsertsAutoWrap(t *testing.T) {
	s := s2Strategy()
	inserted, err := OptimizeStrategy(s)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	var wrapNode strategy.Node
	for _, b := range s.Blocks {
		if b.Type() == strategy.NodeAutoWrap {
			wrapNode = b
		}
	}
	require.NotNil(t, wrapNode)

	lend := s.BlockByID("lend-1").(strategy.LendNode)
	require.NotNil(t, lend.Asset)
	assert.Equal(t, "weETH", lend.Asset.Symbol)

	// the stake->lend edge was rewired through the new wrap node
	var throughWrap bool
	for _, e := range s.Edges {
		if e.SourceID == "stake-1" && e.TargetID == wrapNode.ID() {
			throughWrap = true
		}
	}
	assert.True(t, throughWrap)
}

// Testable Property 4: rerunning the optimiser once every incompatibility
// is resolved is a no-op.
func TestOptimizeStrategyIsIdempotent(t *testing.T) {
	s := s2Strategy()
	first, err := OptimizeStrategy(s)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	blocksAfterFirst := len(s.Blocks)
	edgesAfterFirst := len(s.Edges)

	second, err := OptimizeStrategy(s)
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Equal(t, blocksAfterFirst, len(s.Blocks))
	assert.Equal(t, edgesAfterFirst, len(s.Edges))
}

// S1: a conservative LST-only strategy (Lido, no lending) never triggers
// the wrap-required path since plain staking doesn't demand the wrapped
// variant downstream.
func TestOptimizeStrategyConservativeLSTNoWrapNeeded(t *testing.T) {
	input := strategy.InputNode{Base: strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	stake := strategy.StakeNode{Base: strategy.Base{NodeID: "stake", IsConfigured: true, IsValid: true}, Protocol: "lido", InAsset: registry.ETH(), OutAsset: registry.StETH()}
	s := &strategy.Strategy{
		Blocks: []strategy.Node{input, stake},
		Edges:  []strategy.Edge{{ID: "e1", SourceID: "in", TargetID: "stake", FlowPercent: 100}},
	}
	inserted, err := OptimizeStrategy(s)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Len(t, s.Blocks, 2)
}
