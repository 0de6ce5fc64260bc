// Package wallet owns the single signing credential of the agent together
// with the set of chains it is allowed to act on. Chain clients are created
// on first use and cached for the lifetime of the provider.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/ethereum"
	"HatterAgent/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CodeNoCredential is returned when a signing operation is requested but no
// usable private key is configured.
const CodeNoCredential xerrors.Code = "NO_CREDENTIAL"

func init() {
	xerrors.Register(CodeNoCredential, xerrors.Attributes{
		Message:  "signing credential is not configured",
		Severity: xerrors.SeverityWarning,
	})
}

// Config is the explicit wallet configuration handed over at construction.
type Config struct {
	// PrivateKey is the 0x-prefixed hex secp256k1 key. Empty disables
	// signing.
	PrivateKey   string
	Chains       []string
	DefaultChain string
}

// Dialer opens a client for a chain.
type Dialer func(ctx context.Context, chain chains.Chain) (*ethereum.Client, error)

// Option customises a Provider.
type Option func(*Provider)

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(p *Provider) {
		if d != nil {
			p.dial = d
		}
	}
}

// WithLogger sets the logger used by the provider.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WriteClient is a chain client paired with a signer for that chain.
type WriteClient struct {
	*ethereum.Client
	signer *bind.TransactOpts
}

// TransactOpts returns a fresh copy of the signer options bound to ctx.
func (w *WriteClient) TransactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *w.signer
	opts.Context = ctx
	return &opts
}

// From returns the signing address.
func (w *WriteClient) From() common.Address {
	return w.signer.From
}

// Provider manages the wallet session: the credential, the active chain and
// the per-chain client caches. It is safe for concurrent use.
type Provider struct {
	configured []chains.Chain
	index      map[string]chains.Chain
	key        *ecdsa.PrivateKey
	address    common.Address
	dial       Dialer
	logger     *slog.Logger

	mu           sync.Mutex
	current      string
	readClients  map[string]*ethereum.Client
	writeClients map[string]*WriteClient
}

// NewProvider resolves the configured chains against the registry and
// prepares the signing key. No network connection is made.
func NewProvider(registry *chains.Registry, cfg Config, opts ...Option) (*Provider, error) {
	if registry == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "chain registry is required")
	}
	if len(cfg.Chains) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "at least one chain must be configured")
	}

	p := &Provider{
		index:        make(map[string]chains.Chain, len(cfg.Chains)),
		dial:         ethereum.Dial,
		logger:       logger.Named("wallet"),
		readClients:  make(map[string]*ethereum.Client),
		writeClients: make(map[string]*WriteClient),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	for _, name := range cfg.Chains {
		name = strings.TrimSpace(name)
		if _, dup := p.index[name]; dup {
			continue
		}
		chain, err := registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		p.index[name] = chain
		p.configured = append(p.configured, chain)
	}

	p.current = p.configured[0].Name
	if cfg.DefaultChain != "" {
		if _, err := p.EnsureConfigured(cfg.DefaultChain); err != nil {
			return nil, err
		}
		p.current = cfg.DefaultChain
	}

	if err := p.loadKey(cfg.PrivateKey); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) loadKey(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(raw, "0x") {
		p.logger.Warn("private key ignored: expected 0x prefix")
		return nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid private key")
	}
	p.key = key
	p.address = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// HasCredential reports whether a usable signing key is configured.
func (p *Provider) HasCredential() bool {
	return p.key != nil
}

// Address returns the signer address when a credential is configured.
func (p *Provider) Address() (common.Address, bool) {
	return p.address, p.key != nil
}

// Chains returns the configured chain names in configuration order.
func (p *Provider) Chains() []string {
	names := make([]string, len(p.configured))
	for i, c := range p.configured {
		names[i] = c.Name
	}
	return names
}

// Descriptors returns the configured chain descriptors.
func (p *Provider) Descriptors() []chains.Chain {
	out := make([]chains.Chain, len(p.configured))
	copy(out, p.configured)
	return out
}

// EnsureConfigured returns the descriptor of a chain from the configured
// set, or a CodeUnknownChain error naming the configured chains.
func (p *Provider) EnsureConfigured(name string) (chains.Chain, error) {
	if c, ok := p.index[name]; ok {
		return c, nil
	}
	names := p.Chains()
	return chains.Chain{}, chains.UnknownChain(name,
		fmt.Sprintf("The chain %s not configured yet. Add the chain or choose one from configured: %s",
			name, strings.Join(names, ",")),
		names)
}

// SwitchChain makes name the active chain. Switching to the active chain
// is a no-op.
func (p *Provider) SwitchChain(name string) error {
	if _, err := p.EnsureConfigured(name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != name {
		p.logger.Debug("switch chain", "from", p.current, "to", name)
		p.current = name
	}
	return nil
}

// CurrentChain returns the active chain name.
func (p *Provider) CurrentChain() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// ReadClient returns the cached read client for the chain, dialling it on
// first use.
func (p *Provider) ReadClient(ctx context.Context, name string) (*ethereum.Client, error) {
	chain, err := p.EnsureConfigured(name)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readClientLocked(ctx, chain)
}

func (p *Provider) readClientLocked(ctx context.Context, chain chains.Chain) (*ethereum.Client, error) {
	if client, ok := p.readClients[chain.Name]; ok {
		return client, nil
	}
	client, err := p.dial(ctx, chain)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, fmt.Sprintf("connect to %s", chain.Name))
	}
	p.readClients[chain.Name] = client
	p.logger.Info("chain client ready", "chain", chain.Name, "chain_id", chain.ID)
	return client, nil
}

// WriteClient returns the cached signing client for the chain. The signer
// is bound to the chain id of the catalog entry.
func (p *Provider) WriteClient(ctx context.Context, name string) (*WriteClient, error) {
	chain, err := p.EnsureConfigured(name)
	if err != nil {
		return nil, err
	}
	if p.key == nil {
		return nil, xerrors.New(CodeNoCredential, "")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.writeClients[chain.Name]; ok {
		return client, nil
	}
	read, err := p.readClientLocked(ctx, chain)
	if err != nil {
		return nil, err
	}
	signer, err := bind.NewKeyedTransactorWithChainID(p.key, chain.ChainID())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "create transactor")
	}
	client := &WriteClient{Client: read, signer: signer}
	p.writeClients[chain.Name] = client
	return client, nil
}

// Status dials the chain if needed and reports its remote state.
func (p *Provider) Status(ctx context.Context, name string) (ethereum.Snapshot, error) {
	client, err := p.ReadClient(ctx, name)
	if err != nil {
		return ethereum.Snapshot{}, err
	}
	return client.Snapshot(ctx)
}

// Describe renders the wallet summary injected into extraction prompts.
func (p *Provider) Describe() string {
	var b strings.Builder
	if addr, ok := p.Address(); ok {
		fmt.Fprintf(&b, "Wallet address: %s\n", addr.Hex())
	} else {
		b.WriteString("Wallet address: not configured\n")
	}
	fmt.Fprintf(&b, "Current chain: %s\n", p.CurrentChain())
	fmt.Fprintf(&b, "Configured chains: %s", strings.Join(p.Chains(), ", "))
	return b.String()
}

// Close releases every cached client.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, client := range p.readClients {
		client.Close()
		delete(p.readClients, name)
	}
	for name := range p.writeClients {
		delete(p.writeClients, name)
	}
}
