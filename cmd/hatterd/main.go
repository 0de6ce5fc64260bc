package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"HatterAgent/internal/agent"
	"HatterAgent/internal/api"
	"HatterAgent/internal/auth"
	"HatterAgent/internal/config"
	"HatterAgent/internal/hats"
	"HatterAgent/internal/llm/openai"
	"HatterAgent/internal/mcp"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/internal/observability/telemetry"
	"HatterAgent/internal/task"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/wallet"
	"HatterAgent/pkg/logger"
)

var version = "dev"

// main 是 hatter 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("hatterd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("HATTER_CONFIG")
	if configPath == "" {
		candidate := filepath.Join("configs", "hatter.yaml")
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	stdio := strings.EqualFold(cfg.MCP.Transport, "stdio")
	outputs := cfg.Log.Outputs
	if stdio {
		// stdout 留给 MCP 协议帧。
		outputs = stdioSafe(outputs)
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
			Compress:   cfg.Log.Audit.Compress,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("hatterd")

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     strings.ToLower(cfg.Telemetry.Exporter),
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("初始化遥测失败: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			lg.Warn("关闭遥测失败", slog.Any("error", err))
		}
	}()
	recorder := metrics.Default()

	registry, err := chains.Load(cfg.Web3.ChainConfig, cfg.Web3.RPCOverrides)
	if err != nil {
		return err
	}
	provider, err := wallet.NewProvider(registry, wallet.Config{
		PrivateKey:   cfg.Web3.PrivateKey,
		Chains:       cfg.Web3.Chains,
		DefaultChain: cfg.Web3.DefaultChain,
	}, wallet.WithLogger(logger.Named("wallet")))
	if err != nil {
		return err
	}
	defer provider.Close()

	contract, err := hats.NewContracts(cfg.Web3.RoleContract, provider, hats.WithLogger(logger.Named("hats")))
	if err != nil {
		return err
	}

	llmClient, err := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.OpenAI.APIKey,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Model:   cfg.LLM.OpenAI.Model,
		Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	plugin, err := agent.NewPlugin(agent.Dependencies{
		LLM:      llmClient,
		Wallet:   provider,
		Contract: contract,
	}, agent.Options{
		AgentName:      cfg.Agent.Name,
		RecentMessages: cfg.Agent.RecentMessages,
		LLMTimeout:     time.Duration(cfg.Agent.LLMTimeoutSeconds) * time.Second,
		ActionTimeout:  time.Duration(cfg.Agent.ActionTimeoutSeconds) * time.Second,
		Recorder:       recorder,
	})
	if err != nil {
		return err
	}

	queue, err := task.NewQueue(task.QueueConfig{
		Driver:   strings.ToLower(cfg.Queue.Driver),
		Buffer:   cfg.Queue.Buffer,
		Instance: cfg.Queue.Instance,
		Redis: task.RedisQueueConfig{
			Address:  cfg.Queue.Redis.Addr,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Key:      cfg.Queue.Redis.Key,
		},
		RabbitMQ: task.RabbitMQConfig{
			URL:     cfg.Queue.RabbitMQ.URL,
			Queue:   cfg.Queue.RabbitMQ.Queue,
			Durable: true,
		},
	})
	if err != nil {
		return err
	}

	store := task.NewMemoryStore()
	service := task.NewService(store, queue, plugin)
	defer func() {
		if err := service.Close(); err != nil {
			lg.Warn("关闭轮次服务失败", slog.Any("error", err))
		}
	}()

	processor := task.NewProcessor(plugin, store, queue,
		task.WithProcessorLogger(logger.Named("processor")),
		task.WithProcessorRecorder(recorder),
	)
	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("轮次处理器异常退出", slog.Any("error", err))
		}
	}()

	defs := make([]agent.Definition, 0, len(plugin.Actions))
	for _, action := range plugin.Actions {
		defs = append(defs, action.Definition())
	}
	// 同步调用方的等待期限覆盖抽取与合约调用两个阶段。
	waitBudget := plugin.TurnBudget()
	mcpServer := mcp.NewServer(cfg.Agent.Name, version, service, defs, waitBudget)

	lg.Info("hatterd 启动",
		slog.String("version", version),
		slog.Any("chains", provider.Chains()),
		slog.String("current_chain", provider.CurrentChain()),
		slog.Bool("signer", provider.HasCredential()),
		slog.String("mcp_transport", cfg.MCP.Transport),
	)

	if stdio {
		return mcpServer.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	opts := []api.Option{
		api.WithActions(plugin.Actions),
		api.WithChains(provider),
		api.WithRecorder(recorder),
		api.WithAuth(auth.NewGuard(cfg.Server.APITokens)),
	}
	if waitBudget > 0 {
		opts = append(opts, api.WithWaitTimeout(waitBudget))
	}
	if strings.EqualFold(cfg.MCP.Transport, "http") {
		opts = append(opts, api.WithMCP(cfg.MCP.Path, mcpServer.HTTPHandler()))
	}
	server := api.NewServer(cfg.Server.Address, service, opts...)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// stdioSafe 将 stdout 输出改写为 stderr。
func stdioSafe(outputs []string) []string {
	if len(outputs) == 0 {
		return []string{"stderr"}
	}
	out := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if strings.EqualFold(o, "stdout") {
			o = "stderr"
		}
		out = append(out, o)
	}
	return out
}
