package positions

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/contractclient"
)

const balanceOfABIJSON = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var balanceOfABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABIJSON))
	if err != nil {
		panic("positions: invalid embedded balanceOf ABI: " + err.Error())
	}
	balanceOfABI = parsed
}

// StakingAdapter reads a single rebasing or exchange-rate staking-receipt
// token balance (Lido's stETH, EtherFi's eETH/weETH). Its APY is a static,
// operator-configured figure rather than an on-chain read: neither
// protocol exposes a single-call realised-yield view, and deriving one
// from validator-level consensus rewards is out of scope here.
type StakingAdapter struct {
	protocol     string
	chainID      int64
	token        common.Address
	symbol       string
	decimals     uint8
	staticAPY    float64
	caller       contractclient.Caller
	indexer      IndexerClient
}

func NewStakingAdapter(protocol string, chainID int64, token common.Address, symbol string, decimals uint8, staticAPY float64, caller contractclient.Caller, indexer IndexerClient) *StakingAdapter {
	return &StakingAdapter{protocol: protocol, chainID: chainID, token: token, symbol: symbol, decimals: decimals, staticAPY: staticAPY, caller: caller, indexer: indexer}
}

func (a *StakingAdapter) Protocol() string        { return a.protocol }
func (a *StakingAdapter) SupportedChains() []int64 { return []int64{a.chainID} }

func (a *StakingAdapter) ReadPositions(ctx context.Context, wallet common.Address, chainID int64) ([]Position, error) {
	if chainID != a.chainID {
		return nil, nil
	}
	if positions, ok := queryIndexerPositions(ctx, a.indexer, a.protocol, chainID, wallet); ok {
		return positions, nil
	}

	client := contractclient.New(a.caller, a.token, balanceOfABI)
	res, err := client.Call(ctx, "balanceOf", wallet)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	balance, ok := res[0].(*big.Int)
	if !ok || balance.Sign() == 0 {
		return nil, nil
	}

	apy := a.staticAPY
	return []Position{{
		Protocol:   a.protocol,
		ChainID:    chainID,
		Kind:       KindStake,
		Token:      a.token,
		Symbol:     a.symbol,
		BalanceRaw: balance,
		Balance:    weiToFloat(balance, pow10f(a.decimals)),
		APY:        &apy,
	}}, nil
}
