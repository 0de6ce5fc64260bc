package chains

// builtin lists the public networks available without any configuration.
// Names follow the identifiers users type in conversation (camelCase for
// testnets of L2s).
var builtin = []Chain{
	{Name: "mainnet", ID: 1, RPCURL: "https://eth.merkle.io"},
	{Name: "sepolia", ID: 11155111, RPCURL: "https://sepolia.drpc.org"},
	{Name: "base", ID: 8453, RPCURL: "https://mainnet.base.org"},
	{Name: "baseSepolia", ID: 84532, RPCURL: "https://sepolia.base.org"},
	{Name: "optimism", ID: 10, RPCURL: "https://mainnet.optimism.io"},
	{Name: "optimismSepolia", ID: 11155420, RPCURL: "https://sepolia.optimism.io"},
	{Name: "arbitrum", ID: 42161, RPCURL: "https://arb1.arbitrum.io/rpc"},
	{Name: "arbitrumSepolia", ID: 421614, RPCURL: "https://sepolia-rollup.arbitrum.io/rpc"},
	{Name: "polygon", ID: 137, RPCURL: "https://polygon-rpc.com"},
	{Name: "polygonAmoy", ID: 80002, RPCURL: "https://rpc-amoy.polygon.technology"},
	{Name: "gnosis", ID: 100, RPCURL: "https://rpc.gnosischain.com"},
	{Name: "celo", ID: 42220, RPCURL: "https://forno.celo.org"},
}

// Builtin returns a copy of the built-in catalog.
func Builtin() []Chain {
	out := make([]Chain, len(builtin))
	copy(out, builtin)
	return out
}
