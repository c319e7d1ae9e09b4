package simulate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

func apyPtr(v float64) *float64 { return &v }

// S1: conservative LST, 1 ETH staked via Lido at 3.5% APY, no lending.
func TestSimulateConservativeLST(t *testing.T) {
	reg := registry.DefaultSeed()
	input := strategy.InputNode{
		Base:   strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true},
		Asset:  registry.ETH(),
		Amount: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	}
	stake := strategy.StakeNode{
		Base:     strategy.Base{NodeID: "stake", IsConfigured: true, IsValid: true},
		Protocol: "lido",
		InAsset:  registry.ETH(),
		OutAsset: registry.StETH(),
		APY:      apyPtr(3.5),
	}
	s := &strategy.Strategy{
		Blocks: []strategy.Node{input, stake},
		Edges:  []strategy.Edge{{ID: "e1", SourceID: "in", TargetID: "stake", FlowPercent: 100}},
	}

	result := Simulate(s, reg)
	require.True(t, result.IsValid)
	assert.InDelta(t, 3000, result.InitialValue, 1e-6)
	assert.InDelta(t, 3.5, result.GrossAPY, 1e-9)
	assert.Equal(t, 1.0, result.Leverage)
	assert.Equal(t, RiskLow, result.RiskLevel)
	assert.Nil(t, result.HealthFactor)
}

func TestSimulateRejectsNonLeverageCycle(t *testing.T) {
	reg := registry.DefaultSeed()
	in := strategy.InputNode{Base: strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	a := strategy.SwapNode{Base: strategy.Base{NodeID: "a", IsConfigured: true, IsValid: true}}
	b := strategy.SwapNode{Base: strategy.Base{NodeID: "b", IsConfigured: true, IsValid: true}}
	s := &strategy.Strategy{
		Blocks: []strategy.Node{in, a, b},
		Edges: []strategy.Edge{
			{ID: "e0", SourceID: "in", TargetID: "a", FlowPercent: 100},
			{ID: "e1", SourceID: "a", TargetID: "b", FlowPercent: 100},
			{ID: "e2", SourceID: "b", TargetID: "a", FlowPercent: 100},
		},
	}
	result := Simulate(s, reg)
	assert.False(t, result.IsValid)
	assert.Equal(t, "Strategy contains cycles", result.Error)
}

func TestSimulateInvalidStrategyFailsFast(t *testing.T) {
	reg := registry.DefaultSeed()
	s := &strategy.Strategy{Blocks: []strategy.Node{}}
	result := Simulate(s, reg)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Error, "Input block")
}

// TestSimulateSurfacesActualValidationError checks that Simulate's failure
// message reflects the real validation error rather than a hardcoded
// missing-input message, so a multi-Input strategy isn't mislabeled.
func TestSimulateSurfacesActualValidationError(t *testing.T) {
	reg := registry.DefaultSeed()
	a := strategy.InputNode{Base: strategy.Base{NodeID: "a", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	b := strategy.InputNode{Base: strategy.Base{NodeID: "b", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	s := &strategy.Strategy{Blocks: []strategy.Node{a, b}}

	result := Simulate(s, reg)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Error, "exactly one Input block")
	assert.NotContains(t, result.Error, "strategy needs an Input block")
}

// A leverage loop (Stake -> Lend -> Borrow -> Stake) is unrolled by removing
// its closing edge rather than rejected outright.
func TestSimulateUnrollsLeverageLoop(t *testing.T) {
	reg := registry.DefaultSeed()
	input := strategy.InputNode{
		Base:   strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true},
		Asset:  registry.ETH(),
		Amount: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	}
	stake := strategy.StakeNode{Base: strategy.Base{NodeID: "stake", IsConfigured: true, IsValid: true}, Protocol: "etherfi", InAsset: registry.ETH(), OutAsset: registry.EETH(), APY: apyPtr(3)}
	lend := strategy.LendNode{Base: strategy.Base{NodeID: "lend", IsConfigured: true, IsValid: true}, Protocol: "aave-v3", Chain: registry.MainnetChainID, MaxLTV: 80, LiquidationThreshold: 0.825, SupplyAPY: apyPtr(2)}
	borrow := strategy.BorrowNode{Base: strategy.Base{NodeID: "borrow", IsConfigured: true, IsValid: true}, Protocol: "aave-v3", Asset: registry.ETH(), LTVPercent: 70, BorrowAPY: apyPtr(4)}
	s := &strategy.Strategy{
		Blocks: []strategy.Node{input, stake, lend, borrow},
		Edges: []strategy.Edge{
			{ID: "e1", SourceID: "in", TargetID: "stake", FlowPercent: 100},
			{ID: "e2", SourceID: "stake", TargetID: "lend", FlowPercent: 100},
			{ID: "e3", SourceID: "lend", TargetID: "borrow", FlowPercent: 100},
			{ID: "e4", SourceID: "borrow", TargetID: "stake", FlowPercent: 100},
		},
	}
	result := Simulate(s, reg)
	require.True(t, result.IsValid)
	assert.Greater(t, result.Leverage, 1.0)
	require.NotNil(t, result.HealthFactor)
	assert.Greater(t, *result.HealthFactor, 0.0)

	// the caller's original strategy is untouched: Simulate works on a clone.
	assert.Len(t, s.Edges, 4)
}

// Testable Property 5: simulating the same strategy twice (no chain state
// changed in between) produces the same result.
func TestSimulateIsDeterministic(t *testing.T) {
	reg := registry.DefaultSeed()
	input := strategy.InputNode{Base: strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1e18)}
	stake := strategy.StakeNode{Base: strategy.Base{NodeID: "stake", IsConfigured: true, IsValid: true}, Protocol: "lido", InAsset: registry.ETH(), OutAsset: registry.StETH(), APY: apyPtr(3.5)}
	s := &strategy.Strategy{
		Blocks: []strategy.Node{input, stake},
		Edges:  []strategy.Edge{{ID: "e1", SourceID: "in", TargetID: "stake", FlowPercent: 100}},
	}
	first := Simulate(s, reg)
	second := Simulate(s, reg)
	assert.Equal(t, first.GrossAPY, second.GrossAPY)
	assert.Equal(t, first.InitialValue, second.InitialValue)
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
}
