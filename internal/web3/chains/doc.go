// Package chains holds the catalog of EVM networks the agent knows how to
// reach. Each entry maps a case-sensitive name to its numeric chain id and a
// default RPC endpoint; deployments override endpoints or add private
// networks through a YAML definitions file.
package chains
