package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leverageLoopStrategy() *Strategy {
	stake := StakeNode{Base: Base{NodeID: "stake", IsConfigured: true, IsValid: true}, Protocol: "etherfi"}
	lend := LendNode{Base: Base{NodeID: "lend", IsConfigured: true, IsValid: true}, Protocol: "aave-v3"}
	borrow := BorrowNode{Base: Base{NodeID: "borrow", IsConfigured: true, IsValid: true}, Protocol: "aave-v3", LTVPercent: 70}
	return &Strategy{
		Blocks: []Node{stake, lend, borrow},
		Edges: []Edge{
			{ID: "e1", SourceID: "stake", TargetID: "lend", FlowPercent: 100},
			{ID: "e2", SourceID: "lend", TargetID: "borrow", FlowPercent: 100},
			{ID: "e3", SourceID: "borrow", TargetID: "stake", FlowPercent: 100},
		},
	}
}

// Testable Property 3: a loop containing {Stake, Lend, Borrow} as a subset
// is classified a leverage loop.
func TestDetectLoopsClassifiesLeverageLoop(t *testing.T) {
	s := leverageLoopStrategy()
	loops := DetectLoops(s)
	require.Len(t, loops, 1)
	assert.True(t, loops[0].IsLeverageLoop)
	assert.Equal(t, "stake", loops[0].StakeBlockID)
	assert.Equal(t, "lend", loops[0].LendBlockID)
	assert.Equal(t, "borrow", loops[0].BorrowBlockID)
}

func TestDetectLoopsRejectsNonLeverageCycle(t *testing.T) {
	a := SwapNode{Base: Base{NodeID: "a", IsConfigured: true, IsValid: true}}
	b := SwapNode{Base: Base{NodeID: "b", IsConfigured: true, IsValid: true}}
	s := &Strategy{
		Blocks: []Node{a, b},
		Edges: []Edge{
			{ID: "e1", SourceID: "a", TargetID: "b", FlowPercent: 100},
			{ID: "e2", SourceID: "b", TargetID: "a", FlowPercent: 100},
		},
	}
	loops := DetectLoops(s)
	require.Len(t, loops, 1)
	assert.False(t, loops[0].IsLeverageLoop)
}

func TestDetectLoopsNoCycle(t *testing.T) {
	s := chainStrategy()
	loops := DetectLoops(s)
	assert.Empty(t, loops)
}

// S3: a leverage loop run for 3 iterations at 70% LTV.
func TestCalculateLoopIterationsS3(t *testing.T) {
	result := CalculateLoopIterations(1.0, 70, 3)
	require.Len(t, result.PerIterValues, 3)
	assert.InDelta(t, 1.0, result.PerIterValues[0], 1e-9)
	assert.InDelta(t, 0.7, result.PerIterValues[1], 1e-9)
	assert.InDelta(t, 0.49, result.PerIterValues[2], 1e-9)
	assert.InDelta(t, 2.19, result.TotalValue, 1e-9)
	assert.InDelta(t, 2.19, result.EffectiveLeverage, 1e-9)
}

func TestCalculateLoopIterationsZeroOrNegative(t *testing.T) {
	result := CalculateLoopIterations(1.0, 70, 0)
	assert.Empty(t, result.PerIterValues)
	assert.Equal(t, 0.0, result.TotalValue)
}

func TestCalculateHealthFactorsInfiniteWhenNoDebt(t *testing.T) {
	hfs := CalculateHealthFactors(1.0, 70, 0.8, 1)
	require.Len(t, hfs, 1)
	assert.True(t, math.IsInf(hfs[0].HealthFactor, 1))
}

func TestCalculateHealthFactorsDecreasesWithDebt(t *testing.T) {
	hfs := CalculateHealthFactors(1.0, 70, 0.8, 3)
	require.Len(t, hfs, 3)
	assert.Greater(t, hfs[2].Debt, 0.0)
	assert.Greater(t, hfs[2].HealthFactor, 0.0)
}
