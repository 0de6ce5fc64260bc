package wallet

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/ethereum"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type countingDialer struct {
	mu    sync.Mutex
	calls map[string]int
	sim   *simulated.Backend
}

func newCountingDialer(t *testing.T) *countingDialer {
	t.Helper()
	sim := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { _ = sim.Close() })
	return &countingDialer{calls: make(map[string]int), sim: sim}
}

func (d *countingDialer) dial(_ context.Context, chain chains.Chain) (*ethereum.Client, error) {
	d.mu.Lock()
	d.calls[chain.Name]++
	d.mu.Unlock()
	return ethereum.NewBackendClient(chain, d.sim.Client()), nil
}

func (d *countingDialer) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

func newProvider(t *testing.T, cfg Config) (*Provider, *countingDialer) {
	t.Helper()
	dialer := newCountingDialer(t)
	p, err := NewProvider(chains.MustDefault(), cfg, WithDialer(dialer.dial))
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	t.Cleanup(p.Close)
	return p, dialer
}

func TestReadClientIsCachedPerChain(t *testing.T) {
	p, dialer := newProvider(t, Config{Chains: []string{"sepolia", "base"}})
	ctx := context.Background()

	first, err := p.ReadClient(ctx, "sepolia")
	if err != nil {
		t.Fatalf("ReadClient returned error: %v", err)
	}
	second, err := p.ReadClient(ctx, "sepolia")
	if err != nil {
		t.Fatalf("ReadClient returned error: %v", err)
	}
	if first != second {
		t.Fatal("expected the same client instance")
	}
	if got := dialer.count("sepolia"); got != 1 {
		t.Fatalf("expected one dial, got %d", got)
	}
	if got := dialer.count("base"); got != 0 {
		t.Fatalf("base should not be dialled yet, got %d", got)
	}
}

func TestConcurrentReadClientDialsOnce(t *testing.T) {
	p, dialer := newProvider(t, Config{Chains: []string{"sepolia"}})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.ReadClient(context.Background(), "sepolia"); err != nil {
				t.Errorf("ReadClient returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := dialer.count("sepolia"); got != 1 {
		t.Fatalf("expected one dial, got %d", got)
	}
}

func TestWriteClientRequiresCredential(t *testing.T) {
	p, dialer := newProvider(t, Config{Chains: []string{"sepolia"}})
	if p.HasCredential() {
		t.Fatal("expected no credential")
	}
	_, err := p.WriteClient(context.Background(), "sepolia")
	if xerrors.CodeOf(err) != CodeNoCredential {
		t.Fatalf("expected no credential error, got %v", err)
	}
	if dialer.count("sepolia") != 0 {
		t.Fatal("no connection should be made without a credential")
	}
}

func TestKeyWithoutPrefixIsNotACredential(t *testing.T) {
	p, _ := newProvider(t, Config{Chains: []string{"sepolia"}, PrivateKey: strings.TrimPrefix(testKey, "0x")})
	if p.HasCredential() {
		t.Fatal("unprefixed key must not count as a credential")
	}
}

func TestMalformedKeyFailsConstruction(t *testing.T) {
	_, err := NewProvider(chains.MustDefault(), Config{Chains: []string{"sepolia"}, PrivateKey: "0xnothex"})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestWriteClientSignsForCatalogChainID(t *testing.T) {
	p, dialer := newProvider(t, Config{Chains: []string{"sepolia"}, PrivateKey: testKey})
	ctx := context.Background()

	wc, err := p.WriteClient(ctx, "sepolia")
	if err != nil {
		t.Fatalf("WriteClient returned error: %v", err)
	}
	again, err := p.WriteClient(ctx, "sepolia")
	if err != nil || again != wc {
		t.Fatalf("expected cached write client, got %v %v", again, err)
	}
	if dialer.count("sepolia") != 1 {
		t.Fatalf("write client should reuse the read connection")
	}

	key, _ := crypto.HexToECDSA(strings.TrimPrefix(testKey, "0x"))
	want := crypto.PubkeyToAddress(key.PublicKey)
	if wc.From() != want {
		t.Fatalf("unexpected signer %s", wc.From().Hex())
	}

	opts := wc.TransactOpts(ctx)
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &common.Address{}, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := opts.Signer(opts.From, tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.ChainId().Uint64() != 11155111 {
		t.Fatalf("unexpected chain id %s", signed.ChainId())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), signed)
	if err != nil || sender != want {
		t.Fatalf("unexpected sender %s: %v", sender.Hex(), err)
	}
}

func TestUnknownChainListsConfigured(t *testing.T) {
	p, dialer := newProvider(t, Config{Chains: []string{"sepolia", "base"}})

	for _, call := range []func() error{
		func() error { return p.SwitchChain("marsnet") },
		func() error { _, err := p.ReadClient(context.Background(), "marsnet"); return err },
		func() error { _, err := p.WriteClient(context.Background(), "marsnet"); return err },
	} {
		err := call()
		e, ok := xerrors.From(err)
		if !ok || e.Code() != chains.CodeUnknownChain {
			t.Fatalf("expected unknown chain, got %v", err)
		}
		want := "The chain marsnet not configured yet. Add the chain or choose one from configured: sepolia,base"
		if e.Message() != want {
			t.Fatalf("unexpected message %q", e.Message())
		}
	}
	if dialer.count("marsnet") != 0 {
		t.Fatal("no dial expected for unknown chain")
	}
}

func TestCatalogChainOutsideConfiguredSetIsRejected(t *testing.T) {
	p, _ := newProvider(t, Config{Chains: []string{"sepolia"}})
	if _, err := p.EnsureConfigured("base"); xerrors.CodeOf(err) != chains.CodeUnknownChain {
		t.Fatalf("expected unknown chain for unconfigured catalog entry, got %v", err)
	}
}

func TestSwitchChainIsIdempotent(t *testing.T) {
	p, _ := newProvider(t, Config{Chains: []string{"sepolia", "base"}, DefaultChain: "base"})
	if p.CurrentChain() != "base" {
		t.Fatalf("expected default chain base, got %s", p.CurrentChain())
	}
	for i := 0; i < 2; i++ {
		if err := p.SwitchChain("sepolia"); err != nil {
			t.Fatalf("SwitchChain returned error: %v", err)
		}
	}
	if p.CurrentChain() != "sepolia" {
		t.Fatalf("expected sepolia, got %s", p.CurrentChain())
	}
}

func TestNewProviderRejectsUnknownConfiguredChain(t *testing.T) {
	_, err := NewProvider(chains.MustDefault(), Config{Chains: []string{"marsnet"}})
	if xerrors.CodeOf(err) != chains.CodeUnknownChain {
		t.Fatalf("expected unknown chain, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	p, _ := newProvider(t, Config{Chains: []string{"sepolia", "base"}, PrivateKey: testKey})
	info := p.Describe()
	addr, _ := p.Address()
	for _, want := range []string{addr.Hex(), "Current chain: sepolia", "Configured chains: sepolia, base"} {
		if !strings.Contains(info, want) {
			t.Fatalf("Describe missing %q: %s", want, info)
		}
	}
}
