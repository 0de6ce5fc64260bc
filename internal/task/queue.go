package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Handler 处理来自队列的轮次 ID。
type Handler func(ctx context.Context, turnID string) error

// Producer 负责向队列投递轮次。
type Producer interface {
	Publish(ctx context.Context, turnID string) error
	Close() error
}

// Consumer 负责从队列中按顺序消费轮次，同一时刻只处理一个。
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

const (
	defaultRedisKey      = "hatter:turns"
	defaultRabbitMQQueue = "hatter.turns"
)

// QueueConfig 汇总了各队列驱动的参数。
type QueueConfig struct {
	Driver   string
	Buffer   int
	// Instance 标识当前进程。轮次只保存在本进程的存储中，
	// 因此 Redis key 与 RabbitMQ 队列名都会附加该标识，避免其他实例取走本实例的轮次。
	// 为空时每次启动生成新的标识，RabbitMQ 队列随之设为自动删除。
	Instance string
	Redis    RedisQueueConfig
	RabbitMQ RabbitMQConfig
}

// scoped 返回按实例划分 key 与队列名后的配置。
func (cfg QueueConfig) scoped() QueueConfig {
	instance := cfg.Instance
	if instance == "" {
		instance = uuid.NewString()
		cfg.RabbitMQ.Durable = false
		cfg.RabbitMQ.AutoDelete = true
	}
	cfg.Instance = instance

	key := cfg.Redis.Key
	if key == "" {
		key = defaultRedisKey
	}
	cfg.Redis.Key = key + ":" + instance

	queue := cfg.RabbitMQ.Queue
	if queue == "" {
		queue = defaultRabbitMQQueue
	}
	cfg.RabbitMQ.Queue = queue + "." + instance
	return cfg
}

// NewQueue 按驱动名称创建队列。Redis 与 RabbitMQ 的 key/队列名按实例划分。
func NewQueue(cfg QueueConfig) (Queue, error) {
	cfg = cfg.scoped()
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryQueue(cfg.Buffer), nil
	case "redis":
		return NewRedisQueue(cfg.Redis)
	case "rabbitmq":
		return NewRabbitMQQueue(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}

const defaultBlockWait = 5 * time.Second
