package liquidation

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/contractclient"
)

// aaveDataProviderABI mirrors pkg/positions' embedded ABI; duplicated
// rather than imported to keep the liquidation aggregator independently
// testable without depending on the position-adapter package's internals.
const aaveDataProviderABIJSON = `[
	{"inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],"name":"getUserReserveData",
	 "outputs":[
		{"name":"currentATokenBalance","type":"uint256"},
		{"name":"currentStableDebt","type":"uint256"},
		{"name":"currentVariableDebt","type":"uint256"},
		{"name":"principalStableDebt","type":"uint256"},
		{"name":"scaledVariableDebt","type":"uint256"},
		{"name":"stableBorrowRate","type":"uint256"},
		{"name":"liquidityRate","type":"uint256"},
		{"name":"stableRateLastUpdated","type":"uint40"},
		{"name":"usageAsCollateralEnabled","type":"bool"}
	 ],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveConfigurationData",
	 "outputs":[
		{"name":"decimals","type":"uint256"},
		{"name":"ltv","type":"uint256"},
		{"name":"liquidationThreshold","type":"uint256"},
		{"name":"liquidationBonus","type":"uint256"},
		{"name":"reserveFactor","type":"uint256"},
		{"name":"usageAsCollateralEnabled","type":"bool"},
		{"name":"borrowingEnabled","type":"bool"},
		{"name":"stableBorrowRateEnabled","type":"bool"},
		{"name":"isActive","type":"bool"},
		{"name":"isFrozen","type":"bool"}
	 ],"stateMutability":"view","type":"function"}
]`

var aaveDataProviderABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aaveDataProviderABIJSON))
	if err != nil {
		panic("liquidation: invalid embedded aave data provider ABI: " + err.Error())
	}
	aaveDataProviderABI = parsed
}

// PriceOracle resolves a spot USD price for an asset; pkg/registry has no
// live feed (Non-goals: dynamic oracle selection), so the aggregator
// accepts one as an external dependency rather than hardcoding a source.
type PriceOracle interface {
	PriceUSD(ctx context.Context, asset common.Address) (float64, error)
}

// AaveReserveReader implements ReserveReader over one chain's
// ProtocolDataProvider, fed a fixed reserve list (mirrors
// positions.AaveStyleAdapter's ReserveSeed list) and a PriceOracle.
type AaveReserveReader struct {
	chainID      int64
	dataProvider common.Address
	reserves     []ReserveSeed
	oracle       PriceOracle
	caller       contractclient.Caller
}

// ReserveSeed names one reserve to poll, plus its decimals for unit
// normalisation.
type ReserveSeed struct {
	Asset    common.Address
	Symbol   string
	Decimals uint8
}

func NewAaveReserveReader(chainID int64, dataProvider common.Address, reserves []ReserveSeed, oracle PriceOracle, caller contractclient.Caller) *AaveReserveReader {
	return &AaveReserveReader{chainID: chainID, dataProvider: dataProvider, reserves: reserves, oracle: oracle, caller: caller}
}

func (a *AaveReserveReader) ReadReserves(ctx context.Context, wallet common.Address, chainID int64) ([]ReserveState, error) {
	if chainID != a.chainID {
		return nil, nil
	}
	client := contractclient.New(a.caller, a.dataProvider, aaveDataProviderABI)

	var out []ReserveState
	for _, seed := range a.reserves {
		userRes, err := client.Call(ctx, "getUserReserveData", seed.Asset, wallet)
		if err != nil || len(userRes) < 9 {
			continue
		}
		aTokenBalance, _ := userRes[0].(*big.Int)
		stableDebt, _ := userRes[1].(*big.Int)
		variableDebt, _ := userRes[2].(*big.Int)
		usageAsCollateral, _ := userRes[8].(bool)

		if (aTokenBalance == nil || aTokenBalance.Sign() == 0) && (stableDebt == nil || stableDebt.Sign() == 0) && (variableDebt == nil || variableDebt.Sign() == 0) {
			continue
		}

		configRes, err := client.Call(ctx, "getReserveConfigurationData", seed.Asset)
		liquidationThreshold := 0.825 // spec §4.D's stated default when unspecified
		if err == nil && len(configRes) >= 3 {
			if ltBps, ok := configRes[2].(*big.Int); ok {
				bps, _ := new(big.Float).SetInt(ltBps).Float64()
				liquidationThreshold = normalizeBps(bps)
			}
		}

		price := 0.0
		if a.oracle != nil {
			if p, err := a.oracle.PriceUSD(ctx, seed.Asset); err == nil {
				price = p
			}
		}

		decimalsFactor := pow10(seed.Decimals)
		out = append(out, ReserveState{
			Asset:                seed.Asset,
			Symbol:               seed.Symbol,
			Price:                price,
			CollateralAmount:     divFloat(aTokenBalance, decimalsFactor),
			UsageAsCollateral:    usageAsCollateral,
			LiquidationThreshold: liquidationThreshold,
			VariableDebt:         divFloat(variableDebt, decimalsFactor),
			StableDebt:           divFloat(stableDebt, decimalsFactor),
		})
	}
	return out, nil
}

func pow10(decimals uint8) *big.Int {
	ten := big.NewInt(10)
	result := big.NewInt(1)
	for i := uint8(0); i < decimals; i++ {
		result.Mul(result, ten)
	}
	return result
}

func divFloat(amount *big.Int, decimalsFactor *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(decimalsFactor))
	v, _ := f.Float64()
	return v
}
