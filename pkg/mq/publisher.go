package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"showplan/backend/config"
)

// SchedulePublishedEvent 排期发布完成事件
// 发布事务提交后投递，下游据此刷新直播看板等只读视图
type SchedulePublishedEvent struct {
	ScheduleID   string    `json:"schedule_id"`
	Version      int       `json:"version"`
	PublishedBy  string    `json:"published_by"`
	PublishedAt  time.Time `json:"published_at"`
	ShowsCreated int       `json:"shows_created"`
	ShowsUpdated int       `json:"shows_updated"`
	ShowsDeleted int       `json:"shows_deleted"`
}

// Publisher 领域事件投递
type Publisher interface {
	PublishSchedulePublished(ctx context.Context, evt SchedulePublishedEvent) error
	Close() error
}

// NewPublisher 按配置创建投递器，未启用时返回空实现
func NewPublisher(cfg *config.MQConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		logger.Info("消息队列未启用，发布事件将被丢弃")
		return NoopPublisher{}, nil
	}
	return NewRabbitPublisher(cfg.URL, cfg.PublishedQueue, logger)
}

// ── RabbitMQ ──

// RabbitPublisher 基于 RabbitMQ 默认交换机的持久化投递
// 连接常驻，每次投递单独开 channel（channel 非并发安全）
type RabbitPublisher struct {
	mu     sync.Mutex
	url    string
	queue  string
	conn   *amqp.Connection
	logger *zap.Logger
}

// NewRabbitPublisher 建立连接并声明持久化队列
func NewRabbitPublisher(url, queue string, logger *zap.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, queue: queue, logger: logger}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ 连接失败: %w", err)
	}
	p.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("RabbitMQ 打开 channel 失败: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("RabbitMQ 声明队列失败: %w", err)
	}

	logger.Info("RabbitMQ 连接成功", zap.String("queue", queue))
	return p, nil
}

// PublishSchedulePublished 投递排期发布事件
func (p *RabbitPublisher) PublishSchedulePublished(ctx context.Context, evt SchedulePublishedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	conn, err := p.connection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("RabbitMQ 打开 channel 失败: %w", err)
	}
	defer func() { _ = ch.Close() }()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("%s:%d", evt.ScheduleID, evt.Version),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("RabbitMQ 投递失败: %w", err)
	}
	return nil
}

// connection 返回可用连接，断开后重新拨号
func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}

	p.logger.Warn("RabbitMQ 连接已断开，重新连接")
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ 重连失败: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// Close 关闭连接
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// ── 空实现 ──

// NoopPublisher 丢弃所有事件
type NoopPublisher struct{}

func (NoopPublisher) PublishSchedulePublished(context.Context, SchedulePublishedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
