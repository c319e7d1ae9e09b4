// Package liquidation aggregates per-wallet, per-chain Aave-style health
// factor and per-collateral liquidation price, directly generalising
// pkg/positions' AaveStyleAdapter reserve scan into the risk-summary shape
// spec §4.I calls for.
package liquidation

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"gonum.org/v1/gonum/stat"

	"github.com/blackhole-labs/stratplan/pkg/registry"
)

// RiskBand classifies overall_HF per spec §4.I's stated bands.
type RiskBand string

const (
	RiskSafe     RiskBand = "safe"
	RiskModerate RiskBand = "moderate"
	RiskAtRisk   RiskBand = "at_risk"
	RiskCritical RiskBand = "critical"
)

func bandFor(hf float64) RiskBand {
	switch {
	case hf >= 2:
		return RiskSafe
	case hf >= 1.5:
		return RiskModerate
	case hf >= 1.1:
		return RiskAtRisk
	default:
		return RiskCritical
	}
}

// ReserveState is one collateral-bearing or debt-bearing reserve observed
// for a wallet, already unit-normalised (decimals applied, basis points
// divided by 1e4).
type ReserveState struct {
	Asset                common.Address
	Symbol               string
	Price                float64 // USD per unit
	CollateralAmount     float64 // units, 0 if not used as collateral
	UsageAsCollateral    bool
	LiquidationThreshold float64 // fraction, e.g. 0.75
	VariableDebt         float64 // units
	StableDebt           float64 // units
}

// CollateralSummary is the per-collateral slice of the aggregate result.
type CollateralSummary struct {
	Asset                  common.Address
	Symbol                 string
	CollateralUSD          float64
	LiquidationPrice        float64
	PriceDropToLiquidation float64
}

// Summary is the wallet/chain liquidation-risk aggregate spec §4.I names.
type Summary struct {
	ChainID            int64
	TotalCollateralUSD float64
	TotalDebtUSD       float64
	WeightedLT         float64
	OverallHF          float64
	RiskBand           RiskBand
	Collaterals        []CollateralSummary
}

// normalizeBps divides any input greater than 1 by 1e4, matching the
// subgraph schema's basis-point encoding described in spec §4.I.
func normalizeBps(v float64) float64 {
	if v > 1 {
		return v / 1e4
	}
	return v
}

// Aggregate implements the per-reserve accumulation spec §4.I specifies:
// only reserves with usage_as_collateral on and a positive balance
// contribute to collateral_usd/weighted_LT; every reserve's debt
// contributes to total_debt_usd regardless of collateral flag.
func Aggregate(chainID int64, reserves []ReserveState) Summary {
	summary := Summary{ChainID: chainID}

	for _, r := range reserves {
		summary.TotalDebtUSD += (r.VariableDebt + r.StableDebt) * r.Price
	}

	var collateralUSDs, thresholds []float64

	for _, r := range reserves {
		if !r.UsageAsCollateral || r.CollateralAmount <= 0 {
			continue
		}
		lt := normalizeBps(r.LiquidationThreshold)
		collateralUSD := r.CollateralAmount * r.Price
		summary.TotalCollateralUSD += collateralUSD
		summary.WeightedLT += collateralUSD * lt
		collateralUSDs = append(collateralUSDs, collateralUSD)
		thresholds = append(thresholds, lt)

		liqPrice := math.Inf(1)
		priceDrop := 0.0
		if r.CollateralAmount*lt > 0 {
			liqPrice = summary.TotalDebtUSD / (r.CollateralAmount * lt)
			priceDrop = math.Max(0, 1-liqPrice/r.Price)
		}
		summary.Collaterals = append(summary.Collaterals, CollateralSummary{
			Asset:                  r.Asset,
			Symbol:                 r.Symbol,
			CollateralUSD:          collateralUSD,
			LiquidationPrice:        liqPrice,
			PriceDropToLiquidation: priceDrop,
		})
	}

	if summary.TotalDebtUSD == 0 {
		summary.OverallHF = math.Inf(1)
	} else if summary.TotalCollateralUSD > 0 {
		// overall_HF = total_collateral_usd * (weighted_LT/total_collateral_usd) / total_debt_usd,
		// which simplifies to weighted_LT/total_debt_usd; computed via the
		// explicit stat.Mean-weighted average rather than the algebraic
		// simplification. The aggregate LT is local to this computation and
		// is not stored in the Summary.
		aggregateLT := stat.Mean(thresholds, collateralUSDs)
		summary.OverallHF = summary.TotalCollateralUSD * aggregateLT / summary.TotalDebtUSD
	}
	summary.RiskBand = bandFor(summary.OverallHF)

	return summary
}

// ReserveReader is the narrow read contract the aggregator needs; it is
// satisfied by AaveReserveReader (reader.go), which makes its own
// data-provider reads independent of pkg/positions, so the aggregator can
// be tested against a fake without standing up a full Adapter.
type ReserveReader interface {
	ReadReserves(ctx context.Context, wallet common.Address, chainID int64) ([]ReserveState, error)
}

// AggregateForWallet reads every reserve for wallet on chainID via reader
// and aggregates the result; a read failure is returned as an error since,
// unlike position reads, a health-factor summary with a gap is actively
// misleading rather than merely incomplete.
func AggregateForWallet(ctx context.Context, reader ReserveReader, reg *registry.Registry, wallet common.Address, chainID int64) (Summary, error) {
	reserves, err := reader.ReadReserves(ctx, wallet, chainID)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(chainID, reserves), nil
}
