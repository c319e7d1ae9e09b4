package strategy

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blackhole-labs/stratplan/pkg/registry"
)

func simpleInput(id string, amount int64) InputNode {
	return InputNode{
		Base:   Base{NodeID: id, NodeLabel: "in", IsConfigured: true, IsValid: true},
		Asset:  registry.ETH(),
		Amount: big.NewInt(amount),
	}
}

func TestValidateRequiresExactlyOneInput(t *testing.T) {
	s := &Strategy{Blocks: []Node{}}
	result := Validate(s)
	assert.False(t, result.OK())
	assert.Contains(t, result.Errors[0], "Input block")

	s = &Strategy{Blocks: []Node{simpleInput("i1", 1), simpleInput("i2", 1)}}
	result = Validate(s)
	assert.False(t, result.OK())
}

func TestValidateInputAmountMustBePositive(t *testing.T) {
	s := &Strategy{Blocks: []Node{simpleInput("i1", 0)}}
	result := Validate(s)
	assert.False(t, result.OK())
}

func TestValidateBorrowRequiresLendPredecessor(t *testing.T) {
	input := simpleInput("i1", 1)
	borrow := BorrowNode{
		Base:       Base{NodeID: "b1", NodeLabel: "borrow", IsConfigured: true, IsValid: true},
		Protocol:   "aave-v3",
		Asset:      registry.ETH(),
		LTVPercent: 50,
	}
	s := &Strategy{
		Blocks: []Node{input, borrow},
		Edges:  []Edge{{ID: "e1", SourceID: "i1", TargetID: "b1", FlowPercent: 100}},
	}
	result := Validate(s)
	assert.False(t, result.OK())

	lend := LendNode{
		Base:     Base{NodeID: "l1", NodeLabel: "lend", IsConfigured: true, IsValid: true},
		Protocol: "aave-v3",
		Chain:    registry.MainnetChainID,
		MaxLTV:   80,
	}
	s = &Strategy{
		Blocks: []Node{input, lend, borrow},
		Edges: []Edge{
			{ID: "e1", SourceID: "i1", TargetID: "l1", FlowPercent: 100},
			{ID: "e2", SourceID: "l1", TargetID: "b1", FlowPercent: 100},
		},
	}
	result = Validate(s)
	assert.True(t, result.OK())
}

func TestValidateBorrowLTVRange(t *testing.T) {
	borrow := BorrowNode{Base: Base{NodeID: "b1"}, LTVPercent: 0}
	errs := validateParams(borrow)
	assert.Len(t, errs, 1)

	borrow.LTVPercent = 100
	errs = validateParams(borrow)
	assert.Len(t, errs, 1)

	borrow.LTVPercent = 50
	errs = validateParams(borrow)
	assert.Empty(t, errs)
}

func TestValidateLendParamRanges(t *testing.T) {
	lend := LendNode{Base: Base{NodeID: "l1"}, MaxLTV: -1}
	assert.Len(t, validateParams(lend), 1)

	lend = LendNode{Base: Base{NodeID: "l1"}, MaxLTV: 80, LiquidationThreshold: 1.5}
	assert.Len(t, validateParams(lend), 1)

	lend = LendNode{Base: Base{NodeID: "l1"}, MaxLTV: 80, LiquidationThreshold: 0.825}
	assert.Empty(t, validateParams(lend))
}

func TestValidateDuplicateEdgesAndMissingReferences(t *testing.T) {
	input := simpleInput("i1", 1)
	stake := StakeNode{Base: Base{NodeID: "s1", NodeLabel: "stake", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	s := &Strategy{
		Blocks: []Node{input, stake},
		Edges: []Edge{
			{ID: "e1", SourceID: "i1", TargetID: "s1", FlowPercent: 100},
			{ID: "e2", SourceID: "i1", TargetID: "s1", FlowPercent: 100},
		},
	}
	result := Validate(s)
	assert.False(t, result.OK())
	found := false
	for _, e := range result.Errors {
		if e == "duplicate edge i1 -> s1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateFlowPercentBudget(t *testing.T) {
	input := simpleInput("i1", 1)
	stakeA := StakeNode{Base: Base{NodeID: "a", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	swapX := SwapNode{Base: Base{NodeID: "sx", IsConfigured: true, IsValid: true}}
	swapY := SwapNode{Base: Base{NodeID: "sy", IsConfigured: true, IsValid: true}}
	s := &Strategy{
		Blocks: []Node{input, stakeA, swapX, swapY},
		Edges: []Edge{
			{ID: "e1", SourceID: "i1", TargetID: "a", FlowPercent: 100},
			{ID: "e2", SourceID: "a", TargetID: "sx", FlowPercent: 60},
			{ID: "e3", SourceID: "a", TargetID: "sy", FlowPercent: 60},
		},
	}
	result := Validate(s)
	assert.False(t, result.OK())
}

func TestValidateOrphanBlock(t *testing.T) {
	input := simpleInput("i1", 1)
	orphan := StakeNode{Base: Base{NodeID: "orphan", IsConfigured: true, IsValid: true}, Protocol: "lido"}
	s := &Strategy{Blocks: []Node{input, orphan}}
	result := Validate(s)
	assert.False(t, result.OK())
}
