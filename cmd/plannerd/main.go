// Command plannerd wires the CORE pipeline end to end: load the registry
// seed and environment settings, build a strategy graph, validate it,
// optimise routes, simulate yield/risk, lower to a transaction plan,
// check approvals and analyse batching — then report the result. It
// keeps the teacher's cmd/main.go wiring shape (load config → construct
// client → run one pipeline pass → report) without key material, signing
// or a hardcoded DEX strategy.
package main

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackhole-labs/stratplan/configs"
	"github.com/blackhole-labs/stratplan/pkg/approval"
	"github.com/blackhole-labs/stratplan/pkg/batch"
	"github.com/blackhole-labs/stratplan/pkg/chainio"
	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/route"
	"github.com/blackhole-labs/stratplan/pkg/simulate"
	"github.com/blackhole-labs/stratplan/pkg/strategy"
	"github.com/blackhole-labs/stratplan/pkg/txbuilder"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	reg, err := configs.LoadRegistrySeed("configs/registry.seed.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("falling back to in-code registry seed")
		reg = registry.DefaultSeed()
	}

	settings, err := configs.LoadSettings(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("loading settings")
	}

	caller := dialCaller(settings, reg)

	s := exampleStrategy()

	result := strategy.Validate(s)
	if !result.OK() {
		log.Fatal().Strs("errors", result.Errors).Msg("strategy failed validation")
	}

	inserted, err := route.OptimizeStrategy(s)
	if err != nil {
		log.Fatal().Err(err).Msg("route optimisation failed")
	}
	log.Info().Int("auto_wraps_inserted", inserted).Msg("route optimised")

	sim := simulate.Simulate(s, reg)
	if !sim.IsValid {
		log.Fatal().Str("error", sim.Error).Msg("simulation rejected strategy")
	}
	log.Info().
		Float64("gross_apy", sim.GrossAPY).
		Float64("net_apy", sim.NetAPY).
		Float64("leverage", sim.Leverage).
		Str("risk_level", string(sim.RiskLevel)).
		Msg("simulation complete")

	from := common.HexToAddress("0x000000000000000000000000000000000000Aa")
	plan, err := txbuilder.BuildPlan(s, reg, &sim, registry.MainnetChainID, from, nowMs())
	if err != nil {
		log.Fatal().Err(err).Msg("plan build failed")
	}
	log.Info().Int("steps", plan.TotalSteps).Uint64("gas", plan.EstimatedTotalGas).Msg("plan built")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	requests := approval.ExtractRequests(plan)
	if len(requests) > 0 && caller != nil {
		chain, err := reg.Chain(plan.ChainID)
		if err != nil {
			log.Fatal().Err(err).Msg("resolving chain for approval check")
		}
		checkResult, err := approval.CheckApprovals(ctx, caller, chain.MulticallAddr, from, requests)
		if err != nil {
			log.Error().Err(err).Msg("approval check failed; proceeding unannotated")
		} else {
			approval.Annotate(plan, checkResult)
			log.Info().Int("skippable", len(checkResult.SkippableStepIDs)).Msg("approvals checked")
		}
	}

	batchResult := batch.Analyze(plan)
	log.Info().
		Int("groups", len(batchResult.Groups)).
		Int("final_tx_count", batchResult.FinalTxCount).
		Uint64("gas_savings", batchResult.GasSavings).
		Msg("batch analysis complete")
}

// dialCaller dials a live RPC endpoint when one is configured, otherwise
// returns nil so the approval-check step is skipped — the CLI is meant
// to demonstrate the pure (non-I/O) half of the pipeline without
// requiring network access.
func dialCaller(settings *configs.Settings, reg *registry.Registry) chainio.Caller {
	rpcURL := settings.RPCOverrides[registry.MainnetChainID]
	if rpcURL == "" {
		log.Info().Msg("no RPC configured for mainnet; approval check will be skipped")
		return nil
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to dial RPC; approval check will be skipped")
		return nil
	}
	return &chainio.EthClientCaller{Client: client}
}

// exampleStrategy builds the spec's S2 scenario (LST stake into Aave
// lending, with auto-wrap inserted by the route optimiser): Input{ETH,1}
// -> Stake{etherfi} -> Lend{aave-v3}.
func exampleStrategy() *strategy.Strategy {
	input := strategy.InputNode{
		Base:   strategy.Base{NodeID: "input-1", NodeLabel: "Deposit ETH", IsConfigured: true, IsValid: true},
		Asset:  registry.ETH(),
		Amount: weiOneEth(),
	}
	stake := strategy.StakeNode{
		Base:     strategy.Base{NodeID: "stake-1", NodeLabel: "Stake via EtherFi", IsConfigured: true, IsValid: true},
		Protocol: "etherfi",
		InAsset:  registry.ETH(),
		OutAsset: registry.EETH(),
	}
	lend := strategy.LendNode{
		Base:                 strategy.Base{NodeID: "lend-1", NodeLabel: "Supply to Aave v3", IsConfigured: true, IsValid: true},
		Protocol:             "aave-v3",
		Chain:                registry.MainnetChainID,
		MaxLTV:               80,
		LiquidationThreshold: 0.825,
	}

	return &strategy.Strategy{
		ID:     "example-s2",
		Blocks: []strategy.Node{input, stake, lend},
		Edges: []strategy.Edge{
			{ID: "e1", SourceID: "input-1", TargetID: "stake-1", FlowPercent: 100},
			{ID: "e2", SourceID: "stake-1", TargetID: "lend-1", FlowPercent: 100},
		},
	}
}

func weiOneEth() *big.Int {
	oneEth := new(big.Int)
	oneEth.Exp(big.NewInt(10), big.NewInt(18), nil)
	return oneEth
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
