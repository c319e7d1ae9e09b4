package strategy

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackhole-labs/stratplan/pkg/registry"
)

func chainStrategy() *Strategy {
	input := InputNode{Base: Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	stake := StakeNode{Base: Base{NodeID: "stake", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	lend := LendNode{Base: Base{NodeID: "lend", IsConfigured: true, IsValid: true}, Protocol: "aave-v3", Chain: registry.MainnetChainID}
	return &Strategy{
		Blocks: []Node{input, stake, lend},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "stake", FlowPercent: 100},
			{ID: "e2", SourceID: "stake", TargetID: "lend", FlowPercent: 100},
		},
	}
}

func TestTopologicalOrderRespectsEdges(t *testing.T) {
	s := chainStrategy()
	order, err := TopologicalOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"in", "stake", "lend"}, order)
}

// Testable Property 1: topological order is deterministic for a fixed
// input — two independent-ready nodes keep the blocks' original order.
func TestTopologicalOrderIsDeterministic(t *testing.T) {
	input := InputNode{Base: Base{NodeID: "in", IsConfigured: true, IsValid: true}, Asset: registry.ETH(), Amount: big.NewInt(1)}
	a := StakeNode{Base: Base{NodeID: "a", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	b := StakeNode{Base: Base{NodeID: "b", IsConfigured: true, IsValid: true}, Protocol: "etherfi"}
	s := &Strategy{
		Blocks: []Node{input, a, b},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "a", FlowPercent: 50},
			{ID: "e2", SourceID: "in", TargetID: "b", FlowPercent: 50},
		},
	}
	for i := 0; i < 5; i++ {
		order, err := TopologicalOrder(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"in", "a", "b"}, order)
	}
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	a := StakeNode{Base: Base{NodeID: "a", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	b := StakeNode{Base: Base{NodeID: "b", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	s := &Strategy{
		Blocks: []Node{a, b},
		Edges: []Edge{
			{ID: "e1", SourceID: "a", TargetID: "b", FlowPercent: 100},
			{ID: "e2", SourceID: "b", TargetID: "a", FlowPercent: 100},
		},
	}
	_, err := TopologicalOrder(s)
	assert.Error(t, err)
}
