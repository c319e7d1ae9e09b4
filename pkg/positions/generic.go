package positions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/contractclient"
)

// VaultAdapter covers the ERC-4626-shaped protocols in spec §4.H whose
// detailed per-market mechanics (Morpho's isolated markets, Pendle's
// yield/principal token split, EigenLayer's restaking strategy shares)
// are out of scope for this CORE pipeline: each exposes a vault/strategy
// share token, and the adapter reads its balanceOf and reports the raw
// share balance; shares are not converted to an underlying-asset amount
// (no convertToAssets or share-price read is made). One
// VaultAdapter instance, parameterised by protocol id and vault address,
// serves all three.
type VaultAdapter struct {
	protocol string
	chainID  int64
	vault    common.Address
	asset    common.Address
	symbol   string
	decimals uint8
	kind     Kind
	caller   contractclient.Caller
	indexer  IndexerClient
}

func NewVaultAdapter(protocol string, chainID int64, vault, asset common.Address, symbol string, decimals uint8, kind Kind, caller contractclient.Caller, indexer IndexerClient) *VaultAdapter {
	return &VaultAdapter{protocol: protocol, chainID: chainID, vault: vault, asset: asset, symbol: symbol, decimals: decimals, kind: kind, caller: caller, indexer: indexer}
}

func (a *VaultAdapter) Protocol() string        { return a.protocol }
func (a *VaultAdapter) SupportedChains() []int64 { return []int64{a.chainID} }

func (a *VaultAdapter) ReadPositions(ctx context.Context, wallet common.Address, chainID int64) ([]Position, error) {
	if chainID != a.chainID {
		return nil, nil
	}
	if positions, ok := queryIndexerPositions(ctx, a.indexer, a.protocol, chainID, wallet); ok {
		return positions, nil
	}

	client := contractclient.New(a.caller, a.vault, balanceOfABI)
	res, err := client.Call(ctx, "balanceOf", wallet)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	shares, ok := res[0].(*big.Int)
	if !ok || shares.Sign() == 0 {
		return nil, nil
	}

	return []Position{{
		Protocol:   a.protocol,
		ChainID:    chainID,
		Kind:       a.kind,
		Token:      a.asset,
		Symbol:     a.symbol,
		BalanceRaw: shares,
		Balance:    weiToFloat(shares, pow10f(a.decimals)),
		Metadata:   map[string]string{"vault": a.vault.Hex()},
	}}, nil
}
