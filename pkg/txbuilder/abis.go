package txbuilder

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the external interfaces named in spec §6:
// ERC-20 approve/allowance, Aave v3 Pool supply/borrow, Lido
// submit/wrap/unwrap, EtherFi deposit/wrap/unwrap.
const (
	erc20ABIJSON = `[
		{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	aavePoolABIJSON = `[
		{"inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"name":"supply","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"interestRateMode","type":"uint256"},{"name":"referralCode","type":"uint16"},{"name":"onBehalfOf","type":"address"}],"name":"borrow","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`

	lidoStETHABIJSON = `[
		{"inputs":[{"name":"_referral","type":"address"}],"name":"submit","outputs":[{"name":"","type":"uint256"}],"stateMutability":"payable","type":"function"}
	]`

	wrappedTokenABIJSON = `[
		{"inputs":[{"name":"amount","type":"uint256"}],"name":"wrap","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"amount","type":"uint256"}],"name":"unwrap","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
	]`

	etherFiLiquidityPoolABIJSON = `[
		{"inputs":[{"name":"_referral","type":"address"}],"name":"deposit","outputs":[{"name":"","type":"uint256"}],"stateMutability":"payable","type":"function"}
	]`
)

var (
	erc20ABI               abi.ABI
	aavePoolABI            abi.ABI
	lidoStETHABI           abi.ABI
	wrappedTokenABI        abi.ABI
	etherFiLiquidityPoolABI abi.ABI
)

func mustParse(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("txbuilder: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

func init() {
	erc20ABI = mustParse(erc20ABIJSON)
	aavePoolABI = mustParse(aavePoolABIJSON)
	lidoStETHABI = mustParse(lidoStETHABIJSON)
	wrappedTokenABI = mustParse(wrappedTokenABIJSON)
	etherFiLiquidityPoolABI = mustParse(etherFiLiquidityPoolABIJSON)
}
