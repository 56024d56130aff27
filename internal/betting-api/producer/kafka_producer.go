package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/venispagina998/telegram-betting-app/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de domínio da API nos tópicos Kafka
type KafkaPublisher struct {
	BetWriter   *kafka.Writer
	EventWriter *kafka.Writer
}

func NewKafkaPublisher(betWriter, eventWriter *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{BetWriter: betWriter, EventWriter: eventWriter}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.BetWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishEventCreated(ctx context.Context, e events.EventCreated) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.EventWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: b,
	})
}
