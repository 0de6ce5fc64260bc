package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"HatterAgent/internal/web3/chains"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Client is a chain-scoped connection to an EVM network. It is safe for
// concurrent use.
type Client struct {
	chain     chains.Chain
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	backend   bind.ContractBackend
	mu        sync.Mutex
}

// Snapshot summarises the remote network for status reporting.
type Snapshot struct {
	Chain       string `json:"chain"`
	ChainID     string `json:"chain_id"`
	BlockNumber string `json:"block_number"`
	// Mismatch is set when the endpoint reports a chain id different from
	// the catalog entry it was dialled for.
	Mismatch bool `json:"mismatch,omitempty"`
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to the RPC endpoint of the given chain. The underlying
// transport is established lazily by go-ethereum for HTTP endpoints.
func Dial(ctx context.Context, chain chains.Chain) (*Client, error) {
	rpcURL := strings.TrimSpace(chain.RPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("chain %s has no rpc endpoint", chain.Name)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", chain.Name, err)
	}
	eth := ethclient.NewClient(rpcClient)

	return &Client{
		chain:     chain,
		rpcClient: rpcClient,
		eth:       eth,
		backend:   eth,
	}, nil
}

// NewBackendClient wraps an existing contract backend, such as the
// go-ethereum simulated backend, as a chain client.
func NewBackendClient(chain chains.Chain, backend bind.ContractBackend) *Client {
	return &Client{chain: chain, backend: backend}
}

// Chain returns the descriptor the client was created for.
func (c *Client) Chain() chains.Chain {
	return c.chain
}

// ChainID returns the numeric chain id used for transaction signing.
func (c *Client) ChainID() *big.Int {
	return c.chain.ChainID()
}

// Backend exposes the client as a contract backend for ABI bindings.
func (c *Client) Backend() bind.ContractBackend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.rpcClient = nil
	c.backend = nil
}

// Snapshot gathers lightweight metadata from the chain.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	backend := c.Backend()
	if backend == nil {
		return Snapshot{}, errors.New("client is closed")
	}

	snap := Snapshot{Chain: c.chain.Name, ChainID: toHexBig(c.chain.ChainID())}
	if reader, ok := backend.(chainIDReader); ok {
		remote, err := reader.ChainID(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("fetch chain id: %w", err)
		}
		snap.ChainID = toHexBig(remote)
		snap.Mismatch = remote.Cmp(c.chain.ChainID()) != 0
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch latest header: %w", err)
	}
	snap.BlockNumber = toHexBig(header.Number)
	return snap, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
