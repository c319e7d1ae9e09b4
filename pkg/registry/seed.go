package registry

import "github.com/ethereum/go-ethereum/common"

// Ethereum mainnet chain id, used throughout the default seed and tests.
const MainnetChainID int64 = 1

// DefaultSeed returns a Registry populated with the protocols and assets
// named in spec §4's worked scenarios (Lido, EtherFi, Aave v3 on mainnet).
// A production deployment would instead unmarshal this table from
// configs.Config's YAML, but the shape is identical.
func DefaultSeed() *Registry {
	r := New()

	r.AddChain(Chain{
		ID:             MainnetChainID,
		Name:           "ethereum",
		WrappedNative:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
		MulticallAddr:  Multicall3Address,
		NativePriceUSD: 3000,
	})

	r.AddProtocol(Protocol{
		ID:              "lido",
		Category:        CategoryStaking,
		SupportedChains: []int64{MainnetChainID},
		RiskScore:       15,
		Contracts: map[int64]map[string]common.Address{
			MainnetChainID: {
				"stETH":  common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fe84"),
				"wstETH": common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"),
			},
		},
	})

	r.AddProtocol(Protocol{
		ID:              "etherfi",
		Category:        CategoryRestaking,
		SupportedChains: []int64{MainnetChainID},
		RiskScore:       22,
		Contracts: map[int64]map[string]common.Address{
			MainnetChainID: {
				"LiquidityPool": common.HexToAddress("0x308861A430be4cce5502d0A12724771Fc6DaF216"),
				"eETH":          common.HexToAddress("0x35fA164735182de50811E8e2E824cFb9B6118ac2"),
				"weETH":         common.HexToAddress("0xCd5fE23C85820F7B72D0926FC9b05b43E359b7ee"),
			},
		},
	})

	r.AddProtocol(Protocol{
		ID:              "aave-v3",
		Category:        CategoryLending,
		SupportedChains: []int64{MainnetChainID},
		RiskScore:       18,
		Contracts: map[int64]map[string]common.Address{
			MainnetChainID: {
				"Pool":             common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
				"PoolDataProvider": common.HexToAddress("0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3"),
			},
		},
	})

	return r
}

// Asset constructors for the mainnet happy-path scenarios. A fuller build
// would source these from the same YAML as the protocol table; they are
// exposed as functions rather than a Registry method because Asset carries
// no chain-lookup behaviour of its own.

func ETH() Asset {
	return Asset{ChainID: MainnetChainID, Address: common.Address{}, Symbol: "ETH", Decimals: 18}
}

func StETH() Asset {
	return Asset{ChainID: MainnetChainID, Address: common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fe84"), Symbol: "stETH", Decimals: 18}
}

func WstETH() Asset {
	return Asset{ChainID: MainnetChainID, Address: common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"), Symbol: "wstETH", Decimals: 18}
}

func EETH() Asset {
	return Asset{ChainID: MainnetChainID, Address: common.HexToAddress("0x35fA164735182de50811E8e2E824cFb9B6118ac2"), Symbol: "eETH", Decimals: 18}
}

func WeETH() Asset {
	return Asset{ChainID: MainnetChainID, Address: common.HexToAddress("0xCd5fE23C85820F7B72D0926FC9b05b43E359b7ee"), Symbol: "weETH", Decimals: 18}
}
