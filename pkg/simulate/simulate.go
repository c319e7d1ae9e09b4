// Package simulate propagates USD value, cumulative APY, leverage, health
// factor and liquidation price across a strategy graph in one topological
// pass, producing the SimulationResult the dashboard renders.
package simulate

import (
	"math"
	"math/big"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
)

// RiskLevel bands the simulator's overall risk score/leverage pair.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// YieldSource is one contributor to gross_apy, positive for yield-bearing
// legs and negative for borrow legs.
type YieldSource struct {
	Protocol string
	Kind     string // "stake", "supply", "borrow"
	APY      float64
	Weight   float64 // fraction of initial_value this leg represents
}

// BlockState is the per-node working state threaded through the single
// topological pass.
type BlockState struct {
	ValueUSD             float64
	Asset                registry.Asset
	APYCum               float64
	Leverage             float64
	IsCollateral         bool
	LiquidationThreshold float64
	HealthFactor         *float64
	LiquidationPrice      *float64
}

// Result is the simulator's SimulationResult, per spec §3.
type Result struct {
	IsValid            bool
	Error              string
	GrossAPY           float64
	NetAPY             float64
	InitialValue       float64
	ProjectedValue1Y   float64
	GasCostUSD         float64
	ProtocolFees       float64
	RiskLevel          RiskLevel
	RiskScore          float64
	LiquidationPrice   *float64
	HealthFactor       *float64
	MaxDrawdown        float64
	Leverage           float64
	YieldSources       []YieldSource
	PerBlockValues     map[string]float64
}

func invalid(msg string) Result {
	return Result{IsValid: false, Error: msg, Leverage: 1, PerBlockValues: map[string]float64{}}
}

// Simulate runs the single-pass propagation described in spec §4.D. Any
// detected cycle that is not a leverage loop fails the strategy outright;
// leverage loops are unrolled to their closing edge removed (the CORE's
// iteration math itself lives in strategy.CalculateLoopIterations, run
// separately by the caller when iteration-level detail is needed) so the
// remainder of this pass can run over a DAG.
func Simulate(s *strategy.Strategy, reg *registry.Registry) Result {
	validation := strategy.Validate(s)
	if !validation.OK() {
		return invalid(strings.Join(validation.Errors, "; "))
	}

	working := cloneStrategy(s)
	loops := strategy.DetectLoops(working)
	for _, loop := range loops {
		if !loop.IsLeverageLoop {
			return invalid("Strategy contains cycles")
		}
		removeClosingEdge(working, loop)
	}

	order, err := strategy.TopologicalOrder(working)
	if err != nil {
		return invalid("Strategy contains cycles")
	}

	ctx := newContext()
	states := make(map[string]*BlockState, len(order))

	for _, id := range order {
		node := working.BlockByID(id)
		if node == nil {
			continue
		}
		state := stepNode(working, reg, node, states, &ctx)
		states[id] = state
	}

	return finalize(ctx, states, reg)
}

type simContext struct {
	initialValue     float64
	yieldSources     []YieldSource
	gasUnits         uint64
	feesTotal        float64
	riskScore        float64
	leverage         float64
	leverageMax      float64
	healthFactorMin  *float64
	liquidationPrice *float64
	chainID          int64
}

func newContext() simContext {
	return simContext{leverage: 1, leverageMax: 1, chainID: registry.MainnetChainID}
}

func stepNode(s *strategy.Strategy, reg *registry.Registry, node strategy.Node, states map[string]*BlockState, ctx *simContext) *BlockState {
	switch n := node.(type) {
	case strategy.InputNode:
		return stepInput(n, reg, ctx)
	case strategy.StakeNode:
		return stepStake(s, n, reg, states, ctx)
	case strategy.LendNode:
		return stepLend(s, n, reg, states, ctx)
	case strategy.BorrowNode:
		return stepBorrow(s, n, reg, states, ctx)
	case strategy.SwapNode:
		return stepSwap(s, n, states, ctx)
	case strategy.AutoWrapNode:
		return stepAutoWrap(s, n, states, ctx)
	default:
		return &BlockState{}
	}
}

func predecessorValue(s *strategy.Strategy, states map[string]*BlockState, nodeID string) (float64, *BlockState) {
	total := 0.0
	var last *BlockState
	for _, e := range s.IncomingEdges(nodeID) {
		st, ok := states[e.SourceID]
		if !ok {
			continue
		}
		total += st.ValueUSD * e.FlowPercent / 100
		last = st
	}
	return total, last
}

func assetPriceUSD(reg *registry.Registry, asset registry.Asset) float64 {
	// No dynamic oracle selection is in scope: every supported asset here
	// is an ETH-denominated LST/LRT, so the chain's native price doubles
	// as its peg price.
	return reg.NativePriceUSD(asset.ChainID)
}

func stepInput(n strategy.InputNode, reg *registry.Registry, ctx *simContext) *BlockState {
	amount := new(big.Float).SetInt(n.Amount)
	decimals := math.Pow(10, float64(n.Asset.Decimals))
	units, _ := amount.Float64()
	value := (units / decimals) * assetPriceUSD(reg, n.Asset)
	ctx.initialValue = value
	ctx.chainID = n.Asset.ChainID
	return &BlockState{ValueUSD: value, Asset: n.Asset, Leverage: 1}
}

func stepStake(s *strategy.Strategy, n strategy.StakeNode, reg *registry.Registry, states map[string]*BlockState, ctx *simContext) *BlockState {
	value, _ := predecessorValue(s, states, n.ID())
	apy := 0.0
	if n.APY != nil {
		apy = *n.APY
	}
	weight := 0.0
	if ctx.initialValue != 0 {
		weight = value / ctx.initialValue
	}
	ctx.yieldSources = append(ctx.yieldSources, YieldSource{Protocol: n.Protocol, Kind: "stake", APY: apy, Weight: weight})
	ctx.gasUnits += registry.DefaultGasCosts.Stake
	if p, err := reg.Protocol(n.Protocol); err == nil {
		ctx.riskScore += p.RiskScore * 0.3
	}
	return &BlockState{ValueUSD: value, Asset: n.OutAsset, Leverage: 1}
}

func stepLend(s *strategy.Strategy, n strategy.LendNode, reg *registry.Registry, states map[string]*BlockState, ctx *simContext) *BlockState {
	value, pred := predecessorValue(s, states, n.ID())
	apy := 0.0
	if n.SupplyAPY != nil {
		apy = *n.SupplyAPY
	}
	weight := 0.0
	if ctx.initialValue != 0 {
		weight = value / ctx.initialValue
	}
	ctx.yieldSources = append(ctx.yieldSources, YieldSource{Protocol: n.Protocol, Kind: "supply", APY: apy, Weight: weight})
	ctx.gasUnits += registry.DefaultGasCosts.Supply
	if p, err := reg.Protocol(n.Protocol); err == nil {
		ctx.riskScore += p.RiskScore * 0.25
	}
	liqThreshold := n.LiquidationThreshold
	if liqThreshold == 0 {
		liqThreshold = 0.825
	}
	asset := n.Asset
	state := &BlockState{ValueUSD: value, IsCollateral: true, LiquidationThreshold: liqThreshold, Leverage: 1}
	if asset != nil {
		state.Asset = *asset
	} else if pred != nil {
		state.Asset = pred.Asset
	}
	return state
}

func stepBorrow(s *strategy.Strategy, n strategy.BorrowNode, reg *registry.Registry, states map[string]*BlockState, ctx *simContext) *BlockState {
	_, collateralState := predecessorValue(s, states, n.ID())
	collateral := 0.0
	liqThreshold := 0.825
	if collateralState != nil && collateralState.IsCollateral {
		collateral = collateralState.ValueUSD
		liqThreshold = collateralState.LiquidationThreshold
	}
	borrowValue := collateral * n.LTVPercent / 100

	apy := 0.0
	if n.BorrowAPY != nil {
		apy = *n.BorrowAPY
	}
	weight := 0.0
	if ctx.initialValue != 0 {
		weight = borrowValue / ctx.initialValue
	}
	ctx.yieldSources = append(ctx.yieldSources, YieldSource{Protocol: n.Protocol, Kind: "borrow", APY: -apy, Weight: weight})
	ctx.gasUnits += registry.DefaultGasCosts.Borrow

	var hf *float64
	var liqPrice *float64
	if borrowValue > 0 {
		h := collateral * liqThreshold / borrowValue
		hf = &h
		spot := assetPriceUSD(reg, n.Asset)
		lp := spot * borrowValue / (collateral * liqThreshold)
		liqPrice = &lp
	}

	ctx.leverage += weight
	if ctx.leverage > ctx.leverageMax {
		ctx.leverageMax = ctx.leverage
	}
	if hf != nil && (ctx.healthFactorMin == nil || *hf < *ctx.healthFactorMin) {
		ctx.healthFactorMin = hf
	}
	if liqPrice != nil {
		ctx.liquidationPrice = liqPrice
	}

	switch {
	case n.LTVPercent >= 80:
		ctx.riskScore += 30
	case n.LTVPercent >= 70:
		ctx.riskScore += 20
	case n.LTVPercent >= 60:
		ctx.riskScore += 10
	}

	return &BlockState{ValueUSD: borrowValue, Asset: n.Asset, HealthFactor: hf, LiquidationPrice: liqPrice, Leverage: ctx.leverage}
}

func stepSwap(s *strategy.Strategy, n strategy.SwapNode, states map[string]*BlockState, ctx *simContext) *BlockState {
	value, _ := predecessorValue(s, states, n.ID())
	output := value * (1 - float64(n.SlippageBps)/10_000)
	ctx.feesTotal += value * 0.003
	return &BlockState{ValueUSD: output, Asset: n.To, Leverage: 1}
}

func stepAutoWrap(s *strategy.Strategy, n strategy.AutoWrapNode, states map[string]*BlockState, ctx *simContext) *BlockState {
	value, _ := predecessorValue(s, states, n.ID())
	ctx.gasUnits += registry.DefaultGasCosts.Wrap
	return &BlockState{ValueUSD: value, Asset: n.To, Leverage: 1}
}

func finalize(ctx simContext, states map[string]*BlockState, reg *registry.Registry) Result {
	apys := make([]float64, len(ctx.yieldSources))
	weights := make([]float64, len(ctx.yieldSources))
	for i, src := range ctx.yieldSources {
		apys[i] = src.APY
		weights[i] = src.Weight
	}
	grossAPY := floats.Dot(apys, weights)

	gasCostUSD := reg.GasCostUSD(ctx.chainID, ctx.gasUnits)

	gasPct, feesPct := 0.0, 0.0
	if ctx.initialValue != 0 {
		gasPct = gasCostUSD / ctx.initialValue * 100
		feesPct = ctx.feesTotal / ctx.initialValue * 100
	}
	netAPY := grossAPY - gasPct - feesPct
	projected := ctx.initialValue * (1 + netAPY/100)

	leverage := ctx.leverageMax
	if leverage < 1 {
		leverage = 1
	}

	riskLevel := RiskLow
	switch {
	case ctx.riskScore >= 70 || leverage >= 4:
		riskLevel = RiskExtreme
	case ctx.riskScore >= 50 || leverage >= 3:
		riskLevel = RiskHigh
	case ctx.riskScore >= 30 || leverage >= 2:
		riskLevel = RiskMedium
	}

	maxDrawdown := 10.0
	if leverage > 1 {
		maxDrawdown = math.Min(100, 20*leverage)
	}

	perBlock := make(map[string]float64, len(states))
	for id, st := range states {
		perBlock[id] = st.ValueUSD
	}

	return Result{
		IsValid:          true,
		GrossAPY:         grossAPY,
		NetAPY:           netAPY,
		InitialValue:     ctx.initialValue,
		ProjectedValue1Y: projected,
		GasCostUSD:       gasCostUSD,
		ProtocolFees:     ctx.feesTotal,
		RiskLevel:        riskLevel,
		RiskScore:        ctx.riskScore,
		LiquidationPrice: ctx.liquidationPrice,
		HealthFactor:     ctx.healthFactorMin,
		MaxDrawdown:      maxDrawdown,
		Leverage:         leverage,
		YieldSources:     ctx.yieldSources,
		PerBlockValues:   perBlock,
	}
}

func cloneStrategy(s *strategy.Strategy) *strategy.Strategy {
	blocks := make([]strategy.Node, len(s.Blocks))
	copy(blocks, s.Blocks)
	edges := make([]strategy.Edge, len(s.Edges))
	copy(edges, s.Edges)
	return &strategy.Strategy{ID: s.ID, Blocks: blocks, Edges: edges, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func removeClosingEdge(s *strategy.Strategy, loop strategy.DetectedLoop) {
	if len(loop.EdgeIDs) == 0 {
		return
	}
	closing := loop.EdgeIDs[len(loop.EdgeIDs)-1]
	filtered := s.Edges[:0]
	for _, e := range s.Edges {
		if e.ID != closing {
			filtered = append(filtered, e)
		}
	}
	s.Edges = filtered
}
