package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"HatterAgent/internal/agent"
	"HatterAgent/internal/llm"
	"HatterAgent/internal/task"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/ethereum"
	"HatterAgent/internal/web3/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pipelineKey    = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	pipelineWearer = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

// slowContract 在延迟后记录一次铸造。
type slowContract struct {
	mu     sync.Mutex
	delay  time.Duration
	minted int
}

func (c *slowContract) MintHat(ctx context.Context, _ string, _ *big.Int, _ common.Address) (common.Hash, error) {
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return common.Hash{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minted++
	return crypto.Keccak256Hash([]byte("mint")), nil
}

func (c *slowContract) SetHatWearerStatus(context.Context, string, *big.Int, common.Address, bool, bool) (common.Hash, error) {
	return common.Hash{}, errors.New("not used")
}

func (c *slowContract) BalanceOf(context.Context, string, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

func (c *slowContract) mintCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minted
}

type pipeline struct {
	plugin   *agent.Plugin
	service  *task.Service
	contract *slowContract
}

// newPipeline 组装真实的插件、队列与处理器，抽取与合约调用各自耗时 stageDelay。
func newPipeline(t *testing.T, stageDelay, stageTimeout time.Duration) *pipeline {
	t.Helper()
	generator := llm.ClientFunc(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		select {
		case <-time.After(stageDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &llm.Response{Object: map[string]any{
			"chain": "sepolia", "hatId": "12345", "toAddress": pipelineWearer,
		}}, nil
	})
	dialer := func(context.Context, chains.Chain) (*ethereum.Client, error) {
		return nil, errors.New("unexpected dial")
	}
	w, err := wallet.NewProvider(chains.MustDefault(), wallet.Config{PrivateKey: pipelineKey, Chains: []string{"sepolia"}}, wallet.WithDialer(dialer))
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	t.Cleanup(w.Close)

	contract := &slowContract{delay: stageDelay}
	plugin, err := agent.NewPlugin(agent.Dependencies{LLM: generator, Wallet: w, Contract: contract}, agent.Options{
		LLMTimeout:    stageTimeout,
		ActionTimeout: stageTimeout,
	})
	if err != nil {
		t.Fatalf("plugin: %v", err)
	}

	store := task.NewMemoryStore()
	queue := task.NewMemoryQueue(8)
	service := task.NewService(store, queue, plugin)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = task.NewProcessor(plugin, store, queue).Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &pipeline{plugin: plugin, service: service, contract: contract}
}

func (p *pipeline) definitions() []agent.Definition {
	defs := make([]agent.Definition, 0, len(p.plugin.Actions))
	for _, action := range p.plugin.Actions {
		defs = append(defs, action.Definition())
	}
	return defs
}

func TestToolWaitCoversExtractionAndContractCall(t *testing.T) {
	// 每个阶段都在自身期限内，但两者之和超过单个阶段的期限。
	p := newPipeline(t, 60*time.Millisecond, 100*time.Millisecond)
	c := newClient(t, NewServer("hatter", "test", p.service, p.definitions(), p.plugin.TurnBudget()))

	res := callTool(t, c, "mint_hat", map[string]any{"conversation": "Mint Hat ID 12345 to " + pipelineWearer + " on sepolia"})
	if res.IsError {
		t.Fatalf("expected success, got %q", textAt(t, res, 0))
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(textAt(t, res, 1)), &content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if content["success"] != true || content["hatId"] != "12345" {
		t.Fatalf("unexpected content %v", content)
	}
	if got := p.contract.mintCount(); got != 1 {
		t.Fatalf("expected one mint, got %d", got)
	}
}

func TestToolReportsInFlightTurnWhenWaitEnds(t *testing.T) {
	p := newPipeline(t, 60*time.Millisecond, 100*time.Millisecond)
	c := newClient(t, NewServer("hatter", "test", p.service, p.definitions(), 20*time.Millisecond))

	res := callTool(t, c, "mint_hat", map[string]any{"conversation": "Mint Hat ID 12345 to " + pipelineWearer + " on sepolia"})
	if res.IsError {
		t.Fatalf("an unfinished turn must not be reported as failed: %q", textAt(t, res, 0))
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(textAt(t, res, 1)), &content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	id, _ := content["turn_id"].(string)
	if id == "" || (content["status"] != string(task.StatusPending) && content["status"] != string(task.StatusRunning)) {
		t.Fatalf("unexpected in-flight content %v", content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	turn, err := p.service.WaitUntilCompleted(ctx, id, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if turn.Status != task.StatusSucceeded || p.contract.mintCount() != 1 {
		t.Fatalf("expected the turn to finish with one mint, got %s and %d", turn.Status, p.contract.mintCount())
	}
}
