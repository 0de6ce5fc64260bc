package agent

import (
	"errors"
	"sort"
	"time"

	"HatterAgent/internal/llm"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/pkg/logger"
)

const defaultAgentName = "HatterAgent"

const sampleWearer = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

// Plugin 将钱包信息与三个动作打包，供运行时注册。
type Plugin struct {
	Name        string
	Description string
	Actions     []Action

	wallet Wallet
	index  map[string]Action
	budget time.Duration
}

// Dependencies 是构建插件所需的外部协作者。
type Dependencies struct {
	LLM      llm.Client
	Wallet   Wallet
	Contract RoleContract
}

// Options 控制流水线行为。
type Options struct {
	AgentName      string
	RecentMessages int
	LLMTimeout     time.Duration
	ActionTimeout  time.Duration
	Recorder       *metrics.Recorder
}

// NewPlugin 构建 hats 插件及其全部动作。
func NewPlugin(deps Dependencies, opts Options) (*Plugin, error) {
	if deps.LLM == nil {
		return nil, errors.New("未配置大模型客户端")
	}
	if deps.Wallet == nil {
		return nil, errors.New("未配置钱包")
	}
	if deps.Contract == nil {
		return nil, errors.New("未配置角色合约")
	}
	if opts.RecentMessages <= 0 {
		opts.RecentMessages = 10
	}

	extractor := NewExtractor(deps.LLM, deps.Wallet, opts.AgentName, opts.RecentMessages, opts.LLMTimeout)
	validator := NewValidator(deps.Wallet)
	signer := deps.Wallet.HasCredential

	actions := []Action{
		NewExecutor(MintDefinition(),
			&mintOperation{validator: validator, wallet: deps.Wallet, contract: deps.Contract},
			extractor, deps.Wallet, signer, opts.ActionTimeout, opts.Recorder),
		NewExecutor(RevokeDefinition(),
			&revokeOperation{validator: validator, wallet: deps.Wallet, contract: deps.Contract},
			extractor, deps.Wallet, signer, opts.ActionTimeout, opts.Recorder),
		NewExecutor(BalanceDefinition(),
			&balanceOperation{validator: validator, contract: deps.Contract},
			extractor, deps.Wallet, nil, opts.ActionTimeout, opts.Recorder),
	}

	p := &Plugin{
		Name:        "hats",
		Description: "Mint, revoke and query Hats Protocol roles on EVM chains",
		Actions:     actions,
		wallet:      deps.Wallet,
		index:       make(map[string]Action),
		budget:      turnBudget(opts.LLMTimeout, opts.ActionTimeout),
	}
	for _, action := range actions {
		def := action.Definition()
		p.index[def.Name] = action
		for _, simile := range def.Similes {
			p.index[simile] = action
		}
	}
	logger.Named("agent").Debug("hats plugin ready", "actions", len(actions))
	return p, nil
}

// Lookup 按名称或别名查找动作。
func (p *Plugin) Lookup(name string) (Action, bool) {
	action, ok := p.index[name]
	return action, ok
}

// Names 返回所有可识别的动作名称（含别名），按字母排序。
func (p *Plugin) Names() []string {
	names := make([]string, 0, len(p.index))
	for name := range p.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// turnMargin 覆盖排队与参数校验等不受单独期限约束的阶段。
const turnMargin = 30 * time.Second

// turnBudget 是一次轮次最长可能的运行时间：抽取期限与合约调用期限之和再加余量。
// 任一期限为 0 表示不受限，此时返回 0。
func turnBudget(llmTimeout, actionTimeout time.Duration) time.Duration {
	if llmTimeout <= 0 || actionTimeout <= 0 {
		return 0
	}
	return llmTimeout + actionTimeout + turnMargin
}

// TurnBudget 返回同步调用方等待单个轮次时应使用的最短期限，0 表示不设期限。
func (p *Plugin) TurnBudget() time.Duration {
	return p.budget
}

// WalletInfo 返回钱包提供者的描述文本。
func (p *Plugin) WalletInfo() string {
	return p.wallet.Describe()
}

// MintDefinition 描述铸造动作。
func MintDefinition() Definition {
	return Definition{
		Name:           "MINT_HAT",
		Description:    "Mint a Hats Protocol hat to an address",
		Similes:        []string{"GIVE_HAT", "mintHat"},
		RequiresSigner: true,
		FailurePrefix:  "Error minting hat",
		ContractLabel:  "Minting of Hat failed",
		Template:       mintTemplate,
		Schema:         mintSchema,
		Examples: []Example{{
			User: "Mint Hat ID 12345 to " + sampleWearer + " on sepolia",
			Agent: Reply{
				Text:    "Minting Hat ID 12345 to " + sampleWearer + " on sepolia",
				Content: map[string]any{"action": "MINT_HAT"},
			},
		}},
	}
}

// RevokeDefinition 描述撤销动作。
func RevokeDefinition() Definition {
	return Definition{
		Name:           "REVOKE_HAT",
		Description:    "Revoke a Hats Protocol hat from its wearer and record their standing",
		Similes:        []string{"REMOVE_HAT", "revokeHat"},
		RequiresSigner: true,
		FailurePrefix:  "Error revoking hat",
		ContractLabel:  "Revoking of Hat failed",
		Template:       revokeTemplate,
		Schema:         revokeSchema,
		Examples: []Example{{
			User: "Revoke Hat ID 12345 from " + sampleWearer + " on sepolia, they are still in good standing",
			Agent: Reply{
				Text:    "Revoking Hat ID 12345 from " + sampleWearer + " on sepolia",
				Content: map[string]any{"action": "REVOKE_HAT"},
			},
		}},
	}
}

// BalanceDefinition 描述余额查询动作。
func BalanceDefinition() Definition {
	return Definition{
		Name:          "HAT_BALANCE",
		Description:   "Check how many of a Hats Protocol hat an address holds",
		Similes:       []string{"CHECK_HAT_BALANCE", "balance"},
		FailurePrefix: "Error fetching hat balance",
		ContractLabel: "Balance of Hat failed",
		Template:      balanceTemplate,
		Schema:        balanceSchema,
		Examples: []Example{{
			User: "What is the balance of Hat ID 12345 for " + sampleWearer + " on sepolia?",
			Agent: Reply{
				Text:    "Checking the balance of Hat ID 12345 for " + sampleWearer + " on sepolia",
				Content: map[string]any{"action": "HAT_BALANCE"},
			},
		}},
	}
}
