// Package txbuilder lowers an optimised strategy graph into an ordered,
// gas-estimated TransactionPlan, dispatching each node to a
// protocol-specific calldata synthesiser the way the teacher's
// blackhole.go lowers high-level params (MintParams, UnstakeParams, ...)
// into packed ABI calls.
package txbuilder

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/blackhole-labs/stratplan/pkg/coreerr"
	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/simulate"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

var zeroReferral = common.Address{}

type buildCtx struct {
	reg         *registry.Registry
	chainID     int64
	from        common.Address
	sim         *simulate.Result
	baseAmounts map[string]*big.Int
	steps       []*TransactionStep
	seq         int
}

func (c *buildCtx) newStepID() string {
	c.seq++
	return fmt.Sprintf("step-%d", c.seq)
}

func (c *buildCtx) emit(step *TransactionStep) {
	step.ID = c.newStepID()
	c.steps = append(c.steps, step)
}

// BuildPlan lowers strategy s (already route-optimised; see pkg/route) into
// an ordered TransactionPlan. sim, if non-nil, supplies the USD values the
// spec's Borrow lowering rule requires when converting back to base
// units (the only place the builder crosses the float/integer boundary,
// and it always truncates toward zero per spec §9).
func BuildPlan(s *strategy.Strategy, reg *registry.Registry, sim *simulate.Result, chainID int64, from common.Address, nowMs int64) (*TransactionPlan, error) {
	if _, err := reg.Chain(chainID); err != nil {
		return nil, coreerr.Wrap(coreerr.KindUnsupportedChain, err, "chain %d is not supported", chainID)
	}

	order, err := strategy.TopologicalOrder(s)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindGraphHasCycles, err, "cannot build a plan from a cyclic strategy")
	}

	ctx := &buildCtx{reg: reg, chainID: chainID, from: from, sim: sim, baseAmounts: make(map[string]*big.Int, len(order))}

	for _, id := range order {
		node := s.BlockByID(id)
		if node == nil {
			continue
		}
		if err := lowerNode(s, node, ctx); err != nil {
			return nil, err
		}
	}

	var totalGas uint64
	for _, st := range ctx.steps {
		totalGas += st.EstimatedGas
	}

	plan := &TransactionPlan{
		ID:                fmt.Sprintf("plan-%s", uuid.NewString()),
		ChainID:           chainID,
		FromAddress:       from,
		Steps:             ctx.steps,
		TotalSteps:        len(ctx.steps),
		EstimatedTotalGas: totalGas,
		StrategyID:        s.ID,
		CreatedAtMs:       nowMs,
		ExpiresAtMs:       nowMs + PlanExpiryWindowMs,
	}
	plan.EstimatedTotalGasUSD = reg.GasCostUSD(chainID, totalGas)
	return plan, nil
}

func lowerNode(s *strategy.Strategy, node strategy.Node, ctx *buildCtx) error {
	switch n := node.(type) {
	case strategy.InputNode:
		ctx.baseAmounts[n.ID()] = new(big.Int).Set(n.Amount)
		return nil
	case strategy.StakeNode:
		return lowerStake(s, n, ctx)
	case strategy.LendNode:
		return lowerLend(s, n, ctx)
	case strategy.BorrowNode:
		return lowerBorrow(n, ctx)
	case strategy.SwapNode:
		return lowerSwap(s, n, ctx)
	case strategy.AutoWrapNode:
		return lowerAutoWrap(s, n, ctx)
	default:
		return nil
	}
}

func predecessorAmount(s *strategy.Strategy, baseAmounts map[string]*big.Int, nodeID string) *big.Int {
	total := new(big.Float)
	for _, e := range s.IncomingEdges(nodeID) {
		amt, ok := baseAmounts[e.SourceID]
		if !ok {
			continue
		}
		f := new(big.Float).SetInt(amt)
		f.Mul(f, big.NewFloat(e.FlowPercent/100))
		total.Add(total, f)
	}
	out, _ := total.Int(nil) // truncates toward zero
	return out
}

func lowerStake(s *strategy.Strategy, n strategy.StakeNode, ctx *buildCtx) error {
	amount := predecessorAmount(s, ctx.baseAmounts, n.ID())
	protocol, err := ctx.reg.Protocol(n.Protocol)
	if err != nil {
		return coreerr.Wrap(coreerr.KindProtocolUnknown, err, "unknown staking protocol %q", n.Protocol)
	}

	var to common.Address
	var calldata []byte
	switch n.Protocol {
	case "lido":
		addr, ok := protocol.ContractAddress(ctx.chainID, "stETH")
		if !ok {
			return coreerr.New(coreerr.KindUnsupportedChain, "lido has no stETH contract on chain %d", ctx.chainID)
		}
		to = addr
		calldata, err = lidoStETHABI.Pack("submit", zeroReferral)
	case "etherfi":
		addr, ok := protocol.ContractAddress(ctx.chainID, "LiquidityPool")
		if !ok {
			return coreerr.New(coreerr.KindUnsupportedChain, "etherfi has no LiquidityPool contract on chain %d", ctx.chainID)
		}
		to = addr
		calldata, err = etherFiLiquidityPoolABI.Pack("deposit", zeroReferral)
	default:
		log.Warn().Str("protocol", n.Protocol).Msg("stake lowering has no calldata template for this protocol")
	}
	if err != nil {
		return fmt.Errorf("pack stake calldata: %w", err)
	}

	ctx.emit(&TransactionStep{
		Action:        ActionStake,
		Protocol:      n.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Stake %s for %s via %s", n.InAsset.Symbol, n.OutAsset.Symbol, n.Protocol),
		To:            to,
		Calldata:      calldata,
		Value:         amount,
		TokenIn:       &StepToken{Address: n.InAsset.Address, Symbol: n.InAsset.Symbol, Amount: amount},
		TokenOut:      &StepToken{Address: n.OutAsset.Address, Symbol: n.OutAsset.Symbol, Amount: amount},
		EstimatedGas:  registry.DefaultGasCosts.Stake,
		SourceBlockID: n.ID(),
	})
	ctx.baseAmounts[n.ID()] = amount
	return nil
}

func lowerAutoWrap(s *strategy.Strategy, n strategy.AutoWrapNode, ctx *buildCtx) error {
	amount := predecessorAmount(s, ctx.baseAmounts, n.ID())
	protocol, err := ctx.reg.Protocol(n.WrapStep.Protocol)
	if err != nil {
		return coreerr.Wrap(coreerr.KindProtocolUnknown, err, "unknown wrap protocol %q", n.WrapStep.Protocol)
	}
	wrapperAddr, ok := protocol.ContractAddress(ctx.chainID, n.To.Symbol)
	if !ok {
		wrapperAddr, ok = protocol.ContractAddress(ctx.chainID, n.From.Symbol)
	}
	if !ok {
		return coreerr.New(coreerr.KindUnsupportedChain, "no wrapper contract for %s on chain %d", n.WrapStep.Protocol, ctx.chainID)
	}

	if n.WrapStep.Direction == strategy.DirectionUnwrap {
		calldata, err := wrappedTokenABI.Pack("unwrap", amount)
		if err != nil {
			return fmt.Errorf("pack unwrap calldata: %w", err)
		}
		ctx.emit(&TransactionStep{
			Action:        ActionUnwrap,
			Protocol:      n.WrapStep.Protocol,
			ChainID:       ctx.chainID,
			Description:   fmt.Sprintf("Unwrap %s to %s", n.From.Symbol, n.To.Symbol),
			To:            wrapperAddr,
			Calldata:      calldata,
			Value:         big.NewInt(0),
			TokenIn:       &StepToken{Address: n.From.Address, Symbol: n.From.Symbol, Amount: amount},
			TokenOut:      &StepToken{Address: n.To.Address, Symbol: n.To.Symbol, Amount: amount},
			EstimatedGas:  registry.DefaultGasCosts.Wrap,
			SourceBlockID: n.ID(),
		})
		ctx.baseAmounts[n.ID()] = amount
		return nil
	}

	approveData, err := erc20ABI.Pack("approve", wrapperAddr, amount)
	if err != nil {
		return fmt.Errorf("pack approve calldata: %w", err)
	}
	ctx.emit(&TransactionStep{
		Action:        ActionApprove,
		Protocol:      n.WrapStep.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Approve %s for wrapping to %s", n.From.Symbol, n.To.Symbol),
		To:            n.From.Address,
		Calldata:      approveData,
		Value:         big.NewInt(0),
		TokenIn:       &StepToken{Address: n.From.Address, Symbol: n.From.Symbol, Amount: amount},
		EstimatedGas:  registry.DefaultGasCosts.Approve,
		SourceBlockID: n.ID(),
	})

	ratio := registry.WrapRatio(n.To.Symbol, weiToEther(amount))
	outAmount := mulFloat(amount, ratio)

	wrapData, err := wrappedTokenABI.Pack("wrap", amount)
	if err != nil {
		return fmt.Errorf("pack wrap calldata: %w", err)
	}
	ctx.emit(&TransactionStep{
		Action:        ActionWrap,
		Protocol:      n.WrapStep.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Wrap %s to %s", n.From.Symbol, n.To.Symbol),
		To:            wrapperAddr,
		Calldata:      wrapData,
		Value:         big.NewInt(0),
		TokenIn:       &StepToken{Address: n.From.Address, Symbol: n.From.Symbol, Amount: amount},
		TokenOut:      &StepToken{Address: n.To.Address, Symbol: n.To.Symbol, Amount: outAmount},
		EstimatedGas:  registry.DefaultGasCosts.Wrap,
		SourceBlockID: n.ID(),
	})
	ctx.baseAmounts[n.ID()] = outAmount
	return nil
}

func lowerLend(s *strategy.Strategy, n strategy.LendNode, ctx *buildCtx) error {
	amount := predecessorAmount(s, ctx.baseAmounts, n.ID())
	asset := resolveLendAsset(s, n)

	protocol, err := ctx.reg.Protocol(n.Protocol)
	if err != nil {
		return coreerr.Wrap(coreerr.KindProtocolUnknown, err, "unknown lending protocol %q", n.Protocol)
	}
	poolAddr, ok := protocol.ContractAddress(ctx.chainID, "Pool")
	if !ok {
		return coreerr.New(coreerr.KindUnsupportedChain, "no Pool contract for %s on chain %d", n.Protocol, ctx.chainID)
	}

	approveData, err := erc20ABI.Pack("approve", poolAddr, amount)
	if err != nil {
		return fmt.Errorf("pack approve calldata: %w", err)
	}
	ctx.emit(&TransactionStep{
		Action:        ActionApprove,
		Protocol:      n.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Approve %s for %s supply", asset.Symbol, n.Protocol),
		To:            asset.Address,
		Calldata:      approveData,
		Value:         big.NewInt(0),
		TokenIn:       &StepToken{Address: asset.Address, Symbol: asset.Symbol, Amount: amount},
		EstimatedGas:  registry.DefaultGasCosts.Approve,
		SourceBlockID: n.ID(),
	})

	supplyData, err := aavePoolABI.Pack("supply", asset.Address, amount, ctx.from, uint16(0))
	if err != nil {
		return fmt.Errorf("pack supply calldata: %w", err)
	}
	ctx.emit(&TransactionStep{
		Action:        ActionDeposit,
		Protocol:      n.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Supply %s to %s", asset.Symbol, n.Protocol),
		To:            poolAddr,
		Calldata:      supplyData,
		Value:         big.NewInt(0),
		TokenIn:       &StepToken{Address: asset.Address, Symbol: asset.Symbol, Amount: amount},
		EstimatedGas:  registry.DefaultGasCosts.Supply,
		SourceBlockID: n.ID(),
	})
	ctx.baseAmounts[n.ID()] = amount
	return nil
}

func lowerBorrow(n strategy.BorrowNode, ctx *buildCtx) error {
	var usdValue float64
	if ctx.sim != nil {
		usdValue = ctx.sim.PerBlockValues[n.ID()]
	} else {
		log.Warn().Str("block_id", n.ID()).Msg("building a borrow step without a simulation result; amount defaults to zero")
	}
	price := ctx.reg.NativePriceUSD(ctx.chainID)
	amount := toBaseUnits(usdValue, price, n.Asset.Decimals)

	protocol, err := ctx.reg.Protocol(n.Protocol)
	if err != nil {
		return coreerr.Wrap(coreerr.KindProtocolUnknown, err, "unknown lending protocol %q", n.Protocol)
	}
	poolAddr, ok := protocol.ContractAddress(ctx.chainID, "Pool")
	if !ok {
		return coreerr.New(coreerr.KindUnsupportedChain, "no Pool contract for %s on chain %d", n.Protocol, ctx.chainID)
	}

	borrowData, err := aavePoolABI.Pack("borrow", n.Asset.Address, amount, big.NewInt(2), uint16(0), ctx.from)
	if err != nil {
		return fmt.Errorf("pack borrow calldata: %w", err)
	}
	ctx.emit(&TransactionStep{
		Action:        ActionBorrow,
		Protocol:      n.Protocol,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Borrow %s from %s", n.Asset.Symbol, n.Protocol),
		To:            poolAddr,
		Calldata:      borrowData,
		Value:         big.NewInt(0),
		TokenOut:      &StepToken{Address: n.Asset.Address, Symbol: n.Asset.Symbol, Amount: amount},
		EstimatedGas:  registry.DefaultGasCosts.Borrow,
		SourceBlockID: n.ID(),
	})
	ctx.baseAmounts[n.ID()] = amount
	return nil
}

// lowerSwap emits a swap step without committing to a specific DEX router:
// spec §6 names ERC-20/Aave/Lido/EtherFi's exact ABIs but no generic swap
// router, and spec §1 excludes "third-party API-specific schemas beyond
// their abstract contract." The step still carries amounts and description
// for the plan/dashboard; Calldata/To are populated by whichever outer
// layer knows the configured router for this deployment.
func lowerSwap(s *strategy.Strategy, n strategy.SwapNode, ctx *buildCtx) error {
	amount := predecessorAmount(s, ctx.baseAmounts, n.ID())
	outAmount := mulFloat(amount, 1-float64(n.SlippageBps)/10_000)
	ctx.emit(&TransactionStep{
		Action:        ActionSwap,
		ChainID:       ctx.chainID,
		Description:   fmt.Sprintf("Swap %s for %s (max slippage %d bps)", n.From.Symbol, n.To.Symbol, n.SlippageBps),
		Value:         big.NewInt(0),
		TokenIn:       &StepToken{Address: n.From.Address, Symbol: n.From.Symbol, Amount: amount},
		TokenOut:      &StepToken{Address: n.To.Address, Symbol: n.To.Symbol, Amount: outAmount},
		EstimatedGas:  registry.DefaultGasCosts.Wrap, // no dedicated swap gas constant is specified
		SourceBlockID: n.ID(),
	})
	ctx.baseAmounts[n.ID()] = outAmount
	return nil
}

func resolveLendAsset(s *strategy.Strategy, n strategy.LendNode) registry.Asset {
	if n.Asset != nil {
		return *n.Asset
	}
	for _, e := range s.IncomingEdges(n.ID()) {
		src := s.BlockByID(e.SourceID)
		switch v := src.(type) {
		case strategy.InputNode:
			return v.Asset
		case strategy.StakeNode:
			return v.OutAsset
		case strategy.AutoWrapNode:
			return v.To
		case strategy.SwapNode:
			return v.To
		}
	}
	return registry.Asset{}
}

func weiToEther(amount *big.Int) float64 {
	f := new(big.Float).SetInt(amount)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

// mulFloat multiplies amount by factor taken at its shortest decimal form
// (0.84 as 84/100), so the product is exact before it truncates toward zero.
func mulFloat(amount *big.Int, factor float64) *big.Int {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(factor, 'f', -1, 64))
	if !ok {
		return big.NewInt(0)
	}
	r.Mul(r, new(big.Rat).SetInt(amount))
	return new(big.Int).Quo(r.Num(), r.Denom())
}

// toBaseUnits is the builder's one explicit float->integer crossing point,
// always truncating toward zero as spec §9 requires.
func toBaseUnits(usdValue, priceUSD float64, decimals uint8) *big.Int {
	if priceUSD == 0 {
		return big.NewInt(0)
	}
	units := usdValue / priceUSD
	scaled := new(big.Float).Mul(big.NewFloat(units), big.NewFloat(pow10(decimals)))
	out, _ := scaled.Int(nil)
	return out
}

func pow10(n uint8) float64 {
	result := 1.0
	for i := uint8(0); i < n; i++ {
		result *= 10
	}
	return result
}
