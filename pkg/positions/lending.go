package positions

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/blackhole-labs/stratplan/pkg/contractclient"
)

// rayUnit is Aave's fixed-point base, 1e27, per spec §4.H.
var rayUnit = new(big.Float).SetFloat64(1e27)

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
	 ],"stateMutability":"view","type":"function"}
]`

var aaveDataProviderABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aaveDataProviderABIJSON))
	if err != nil {
		panic("positions: invalid embedded aave data provider ABI: " + err.Error())
	}
	aaveDataProviderABI = parsed
}

// ReserveSeed is one reserve asset an AaveStyleAdapter polls. Aave v3 and
// Spark (an Aave v3 fork) expose an identical ProtocolDataProvider ABI, so
// the same adapter code serves both, parameterised by contract address and
// reserve list, mirroring how registry/seed.go hardcodes per-chain contract
// tables rather than discovering them dynamically.
type ReserveSeed struct {
	Asset    common.Address
	Symbol   string
	Decimals uint8
}

// AaveStyleAdapter reads supply/borrow positions from an Aave v3 style
// ProtocolDataProvider, grounded on the teacher's ContractClient.Call
// contract (pkg/contractclient) for the read path.
type AaveStyleAdapter struct {
	protocol     string
	chainID      int64
	dataProvider common.Address
	reserves     []ReserveSeed
	caller       contractclient.Caller
	indexer      IndexerClient
}

func NewAaveStyleAdapter(protocol string, chainID int64, dataProvider common.Address, reserves []ReserveSeed, caller contractclient.Caller, indexer IndexerClient) *AaveStyleAdapter {
	return &AaveStyleAdapter{protocol: protocol, chainID: chainID, dataProvider: dataProvider, reserves: reserves, caller: caller, indexer: indexer}
}

func (a *AaveStyleAdapter) Protocol() string           { return a.protocol }
func (a *AaveStyleAdapter) SupportedChains() []int64    { return []int64{a.chainID} }

func (a *AaveStyleAdapter) ReadPositions(ctx context.Context, wallet common.Address, chainID int64) ([]Position, error) {
	if chainID != a.chainID {
		return nil, nil
	}
	if positions, ok := queryIndexerPositions(ctx, a.indexer, a.protocol, chainID, wallet); ok {
		return positions, nil
	}

	client := contractclient.New(a.caller, a.dataProvider, aaveDataProviderABI)

	var out []Position
	for _, reserve := range a.reserves {
		res, err := client.Call(ctx, "getUserReserveData", reserve.Asset, wallet)
		if err != nil {
			log.Warn().Str("protocol", a.protocol).Str("asset", reserve.Symbol).Err(err).Msg("reserve read failed")
			continue
		}
		if len(res) < 7 {
			continue
		}
		aTokenBalance, _ := res[0].(*big.Int)
		stableDebt, _ := res[1].(*big.Int)
		variableDebt, _ := res[2].(*big.Int)
		liquidityRateRay, _ := res[6].(*big.Int)

		decimalsFactor := pow10f(reserve.Decimals)

		if aTokenBalance != nil && aTokenBalance.Sign() > 0 {
			apy := rayToRate(liquidityRateRay)
			out = append(out, Position{
				Protocol:   a.protocol,
				ChainID:    chainID,
				Kind:       KindSupply,
				Token:      reserve.Asset,
				Symbol:     reserve.Symbol,
				BalanceRaw: aTokenBalance,
				Balance:    weiToFloat(aTokenBalance, decimalsFactor),
				APY:        &apy,
			})
		}

		totalDebt := new(big.Int)
		if stableDebt != nil {
			totalDebt.Add(totalDebt, stableDebt)
		}
		if variableDebt != nil {
			totalDebt.Add(totalDebt, variableDebt)
		}
		if totalDebt.Sign() > 0 {
			out = append(out, Position{
				Protocol:   a.protocol,
				ChainID:    chainID,
				Kind:       KindBorrow,
				Token:      reserve.Asset,
				Symbol:     reserve.Symbol,
				BalanceRaw: totalDebt,
				Balance:    weiToFloat(totalDebt, decimalsFactor),
			})
		}
	}
	return out, nil
}

// rayToRate converts an Aave RAY-scaled (1e27) linear rate into an APY
// percentage (rate/RAY · 100), per spec §4.H.
func rayToRate(ray *big.Int) float64 {
	if ray == nil {
		return 0
	}
	f := new(big.Float).SetInt(ray)
	f.Quo(f, rayUnit)
	f.Mul(f, big.NewFloat(100))
	v, _ := f.Float64()
	return v
}

func pow10f(decimals uint8) *big.Float {
	f := new(big.Float).SetFloat64(1)
	ten := new(big.Float).SetFloat64(10)
	for i := uint8(0); i < decimals; i++ {
		f.Mul(f, ten)
	}
	return f
}

func weiToFloat(amount *big.Int, decimalsFactor *big.Float) float64 {
	f := new(big.Float).SetInt(amount)
	f.Quo(f, decimalsFactor)
	v, _ := f.Float64()
	return v
}
