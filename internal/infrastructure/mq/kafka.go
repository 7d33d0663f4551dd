package mq

import (
	"log"

	"formpay/internal/config"

	"github.com/IBM/sarama"
)

// Publisher 消息投递接口，outbox 任务只依赖它
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// Producer 基于 sarama 同步生产者的 Publisher
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// InitKafka 初始化 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig) *Producer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	// 同一提交记录的事件按 key 落到同一分区，保证顺序
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	log.Println("Kafka 生产者创建成功")
	return NewProducer(producer)
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	log.Printf("[Kafka] 消息已写入: topic=%s, partition=%d, offset=%d", topic, partition, offset)
	return nil
}

// Close 关闭 Kafka 生产者
func (p *Producer) Close() {
	if p != nil && p.producer != nil {
		if err := p.producer.Close(); err != nil {
			log.Printf("[Kafka] 关闭生产者失败: %v", err)
		}
	}
}
