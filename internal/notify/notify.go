// Package notify 把运行结果发布到 RabbitMQ 队列。
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/John-Robertt/IMDBX/internal/domain"
)

// channel 是 Publisher 用到的 *amqp.Channel 子集。
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// DialFunc 建立连接并返回 channel 与关闭函数。
type DialFunc func(url string) (channel, func() error, error)

// Publisher 每次 Publish 独立建连：一次运行只发一条消息，不维护长连接。
type Publisher struct {
	URL    string
	Queue  string
	Logger *zap.Logger

	dial DialFunc
}

func New(url, queue string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{URL: url, Queue: queue, Logger: logger.Named("notify"), dial: dialAMQP}
}

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("连接 RabbitMQ 失败：%w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("打开 channel 失败：%w", err)
	}
	return ch, conn.Close, nil
}

// Publish 声明队列（持久化）并以 JSON 发布 report。
func (p *Publisher) Publish(ctx context.Context, rr domain.RunReport) error {
	if strings.TrimSpace(p.Queue) == "" {
		return errors.New("queue 不能为空")
	}
	msg, err := Message(rr)
	if err != nil {
		return err
	}

	dial := p.dial
	if dial == nil {
		dial = dialAMQP
	}
	ch, closeFn, err := dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	q, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("声明队列失败：%w", err)
	}
	if err := ch.PublishWithContext(ctx, "", q.Name, false, false, msg); err != nil {
		return fmt.Errorf("发布消息失败：%w", err)
	}
	p.Logger.Info("已发布运行通知", zap.String("queue", q.Name), zap.String("run_id", rr.RunID), zap.String("status", rr.Status))
	return nil
}

// Message 把 report 编码为一条持久化的 JSON 消息。
func Message(rr domain.RunReport) (amqp.Publishing, error) {
	body, err := json.Marshal(rr)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("编码 report 失败：%w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rr.RunID,
		Timestamp:    rr.FinishedAt,
		Type:         "imdbx.run." + rr.Status,
		Body:         body,
	}, nil
}
