package positions

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/contractclient"
)

// secondsPerYear is Compound v3's own constant for annualising a
// per-second rate (31536000), used to turn getSupplyRate/getBorrowRate's
// raw per-second figure into an APY comparable with Aave's linear rate.
const secondsPerYear = 365 * 24 * 60 * 60

const cometABIJSON = `[
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"borrowBalanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getUtilization","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"utilization","type":"uint256"}],"name":"getSupplyRate","outputs":[{"name":"","type":"uint64"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"utilization","type":"uint256"}],"name":"getBorrowRate","outputs":[{"name":"","type":"uint64"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"baseToken","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var cometABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(cometABIJSON))
	if err != nil {
		panic("positions: invalid embedded comet ABI: " + err.Error())
	}
	cometABI = parsed
}

// CompoundV3Adapter reads one Comet market's supply/borrow position for a
// wallet. Compound v3 deploys one Comet contract per base asset (unlike
// Aave's single pool + per-reserve data provider), so one adapter instance
// covers one market; the registry wires one instance per configured
// market.
type CompoundV3Adapter struct {
	chainID      int64
	market       common.Address
	baseSymbol   string
	baseDecimals uint8
	caller       contractclient.Caller
	indexer      IndexerClient
}

func NewCompoundV3Adapter(chainID int64, market common.Address, baseSymbol string, baseDecimals uint8, caller contractclient.Caller, indexer IndexerClient) *CompoundV3Adapter {
	return &CompoundV3Adapter{chainID: chainID, market: market, baseSymbol: baseSymbol, baseDecimals: baseDecimals, caller: caller, indexer: indexer}
}

func (a *CompoundV3Adapter) Protocol() string        { return "compound-v3" }
func (a *CompoundV3Adapter) SupportedChains() []int64 { return []int64{a.chainID} }

func (a *CompoundV3Adapter) ReadPositions(ctx context.Context, wallet common.Address, chainID int64) ([]Position, error) {
	if chainID != a.chainID {
		return nil, nil
	}
	if positions, ok := queryIndexerPositions(ctx, a.indexer, a.Protocol(), chainID, wallet); ok {
		return positions, nil
	}

	client := contractclient.New(a.caller, a.market, cometABI)
	decimalsFactor := pow10f(a.baseDecimals)

	var out []Position

	if res, err := client.Call(ctx, "balanceOf", wallet); err == nil && len(res) > 0 {
		if supply, ok := res[0].(*big.Int); ok && supply.Sign() > 0 {
			apy := a.supplyAPY(ctx)
			out = append(out, Position{
				Protocol:   "compound-v3",
				ChainID:    chainID,
				Kind:       KindSupply,
				Token:      a.market,
				Symbol:     a.baseSymbol,
				BalanceRaw: supply,
				Balance:    weiToFloat(supply, decimalsFactor),
				APY:        &apy,
			})
		}
	}

	if res, err := client.Call(ctx, "borrowBalanceOf", wallet); err == nil && len(res) > 0 {
		if debt, ok := res[0].(*big.Int); ok && debt.Sign() > 0 {
			out = append(out, Position{
				Protocol:   "compound-v3",
				ChainID:    chainID,
				Kind:       KindBorrow,
				Token:      a.market,
				Symbol:     a.baseSymbol,
				BalanceRaw: debt,
				Balance:    weiToFloat(debt, decimalsFactor),
			})
		}
	}

	return out, nil
}

// supplyAPY reads the market's current utilization and per-second supply
// rate and annualises it linearly (rate/1e18 · seconds_per_year · 100),
// per spec §4.H's stated conversion — not compounded. A read failure
// yields a zero APY rather than failing the whole position read.
func (a *CompoundV3Adapter) supplyAPY(ctx context.Context) float64 {
	client := contractclient.New(a.caller, a.market, cometABI)

	utilRes, err := client.Call(ctx, "getUtilization")
	if err != nil || len(utilRes) == 0 {
		return 0
	}
	utilization, ok := utilRes[0].(*big.Int)
	if !ok {
		return 0
	}

	rateRes, err := client.Call(ctx, "getSupplyRate", utilization)
	if err != nil || len(rateRes) == 0 {
		return 0
	}
	perSecondScaled, ok := rateRes[0].(uint64)
	if !ok {
		if bi, ok := rateRes[0].(*big.Int); ok {
			perSecondScaled = bi.Uint64()
		} else {
			return 0
		}
	}

	perSecond := float64(perSecondScaled) / 1e18
	return perSecond * secondsPerYear * 100
}
