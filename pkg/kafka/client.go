// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/log"
	"nft-sage-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// EventHandler 处理来自其他实例的交互事件。
// 这样 Kafka 消费者与具体的会话服务实现解耦。
type EventHandler interface {
	ReplayInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error
}

// messageWriter 是 kafka.Writer 的最小子集，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader 是 kafka.Reader 的最小子集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 发布交互事件。
type Producer struct {
	origin string
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。origin 标识本实例。
func NewProducer(cfg config.KafkaConfig, origin string) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{origin: origin, writer: w}
}

// PublishInteraction 发送一条交互事件。以会话键作为消息键，保证同一会话内有序。
func (p *Producer) PublishInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error {
	evt := tasks.InteractionEvent{Origin: p.origin, Key: key, Interaction: it}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key.String()),
		Value: b,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 消费其他实例发布的交互事件并回放到本地会话记忆中。
type Consumer struct {
	origin  string
	topic   string
	reader  messageReader
	handler EventHandler
}

// NewConsumer 创建消费者。每个实例使用独立的消费组，因此每个实例都能收到全部事件。
func NewConsumer(cfg config.KafkaConfig, origin string, handler EventHandler) *Consumer {
	groupID := "nft-sage-go-replica-" + origin
	if cfg.ConsumerTag != "" {
		groupID = "nft-sage-go-replica-" + cfg.ConsumerTag
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{origin: origin, topic: cfg.Topic, reader: r, handler: handler}
}

// Run 阻塞消费直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}
		c.handle(ctx, m)
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var evt tasks.InteractionEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		return
	}
	if evt.Origin == c.origin {
		return
	}
	if err := c.handler.ReplayInteraction(ctx, evt.Key, evt.Interaction); err != nil {
		log.Errorw("回放交互事件失败", "key", evt.Key.String(), "interactionId", evt.Interaction.ID, "error", err)
	}
}
