package mq

import (
	"fmt"

	"payoutledger/internal/config"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Producer 对 SyncProducer 的封装，投递 outbox 事件
type Producer struct {
	producer sarama.SyncProducer
	log      zerolog.Logger
}

// NewSaramaConfig 等待所有副本确认
func NewSaramaConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0
	return kafkaConfig
}

// NewProducer 连接 Kafka 集群
func NewProducer(cfg *config.KafkaConfig, log zerolog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers 不能为空")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	log.Info().Strs("brokers", cfg.Brokers).Msg("Kafka 生产者创建成功")
	return NewProducerWith(producer, log), nil
}

// NewProducerWith 使用已有的 SyncProducer，测试时传入 mocks
func NewProducerWith(producer sarama.SyncProducer, log zerolog.Logger) *Producer {
	return &Producer{producer: producer, log: log.With().Str("component", "kafka").Logger()}
}

// Publish 发送一条消息，事件类型放在 header 中
func (p *Producer) Publish(topic, key, eventType, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息失败: topic=%s key=%s: %w", topic, key, err)
	}
	p.log.Debug().Str("topic", topic).Str("key", key).Int32("partition", partition).Int64("offset", offset).Msg("消息已投递")
	return nil
}

func (p *Producer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
