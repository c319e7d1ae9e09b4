package txbuilder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/simulate"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

var fromAddr = common.HexToAddress("0x000000000000000000000000000000000000aa")

// S2: Input{ETH,1} -> Stake{etherfi} -> AutoWrap(eETH->weETH) -> Lend{aave-v3},
// expecting steps [stake, approve eETH, wrap, approve weETH, supply weETH].
func s2Plan(t *testing.T) *TransactionPlan {
	t.Helper()
	reg := registry.DefaultSeed()
	input := strategy.InputNode{Base: strategy.Base{NodeID: "input-1", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1e18)}
	stake := strategy.StakeNode{Base: strategy.Base{NodeID: "stake-1", IsConfigured: true, IsValid: true}, Protocol: "etherfi", InAsset: registry.ETH(), OutAsset: registry.EETH()}
	wrapAsset := registry.WeETH()
	lend := strategy.LendNode{Base: strategy.Base{NodeID: "lend-1", IsConfigured: true, IsValid: true}, Protocol: "aave-v3", Chain: registry.MainnetChainID, MaxLTV: 80, Asset: &wrapAsset}
	autoWrap := strategy.AutoWrapNode{
		Base: strategy.Base{NodeID: "wrap-1", IsConfigured: true, IsValid: true},
		From: registry.EETH(), To: registry.WeETH(),
		WrapStep: strategy.WrapStep{From: registry.EETH(), To: registry.WeETH(), Protocol: "etherfi", Direction: strategy.DirectionWrap},
	}
	s := &strategy.Strategy{
		ID:     "s2",
		Blocks: []strategy.Node{input, stake, autoWrap, lend},
		Edges: []strategy.Edge{
			{ID: "e1", SourceID: "input-1", TargetID: "stake-1", FlowPercent: 100},
			{ID: "e2", SourceID: "stake-1", TargetID: "wrap-1", FlowPercent: 100},
			{ID: "e3", SourceID: "wrap-1", TargetID: "lend-1", FlowPercent: 100},
		},
	}

	sim := simulate.Simulate(s, reg)
	require.True(t, sim.IsValid)

	plan, err := BuildPlan(s, reg, &sim, registry.MainnetChainID, fromAddr, 0)
	require.NoError(t, err)
	return plan
}

func TestBuildPlanS2StepSequence(t *testing.T) {
	plan := s2Plan(t)
	require.Len(t, plan.Steps, 5)

	var actions []Action
	for _, st := range plan.Steps {
		actions = append(actions, st.Action)
	}
	assert.Equal(t, []Action{
		ActionStake,
		ActionApprove,
		ActionWrap,
		ActionApprove,
		ActionDeposit,
	}, actions)
}

// S2's 1 ETH input is below the registry's 10 ETH wrap-ratio threshold, so
// the deposit step's amount must reflect the conservative 0.84 ratio, not
// the >=10 ETH 0.85 ratio.
func TestBuildPlanS2SupplyAmountUsesSmallAmountWrapRatio(t *testing.T) {
	plan := s2Plan(t)
	depositStep := plan.Steps[len(plan.Steps)-1]
	require.Equal(t, ActionDeposit, depositStep.Action)
	require.NotNil(t, depositStep.TokenIn)

	expected, _ := new(big.Float).Mul(big.NewFloat(1e18), big.NewFloat(0.84)).Int(nil)
	assert.Equal(t, expected, depositStep.TokenIn.Amount)
}

func TestBuildPlanUnsupportedChain(t *testing.T) {
	reg := registry.DefaultSeed()
	input := strategy.InputNode{Base: strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	s := &strategy.Strategy{Blocks: []strategy.Node{input}}
	_, err := BuildPlan(s, reg, nil, 999, fromAddr, 0)
	assert.Error(t, err)
}

func TestBuildPlanExpiryWindow(t *testing.T) {
	reg := registry.DefaultSeed()
	input := strategy.InputNode{Base: strategy.Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	s := &strategy.Strategy{Blocks: []strategy.Node{input}}
	plan, err := BuildPlan(s, reg, nil, registry.MainnetChainID, fromAddr, 1_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000+PlanExpiryWindowMs), plan.ExpiresAtMs)
}

// Testable Property 6: the plan's chain id and every step's chain id agree.
func TestBuildPlanChainCoherence(t *testing.T) {
	plan := s2Plan(t)
	for _, st := range plan.Steps {
		assert.Equal(t, plan.ChainID, st.ChainID)
	}
}

func TestBuildPlanGasTotals(t *testing.T) {
	plan := s2Plan(t)
	var sum uint64
	for _, st := range plan.Steps {
		sum += st.EstimatedGas
	}
	assert.Equal(t, sum, plan.EstimatedTotalGas)
	assert.Greater(t, plan.EstimatedTotalGasUSD, 0.0)
}
