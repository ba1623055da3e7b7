package kafka

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic names for all Kafka topics used by the settlement engine.
const (
	TopicWebhookPending      = "talaria.webhook.pending"
	TopicNotificationPending = "talaria.notification.pending"
	TopicInvoiceGenerate     = "talaria.invoice.generate"
	TopicPayoutStatusUpdate  = "talaria.payout.status.update"

	TopicDLQ = "talaria.dlq"
)

// Event types for outbox rows; the relay maps these onto topics.
const (
	EventWebhookReceived     = "talaria.webhook.received"
	EventNotificationQueued  = "talaria.notification.queued"
	EventInvoiceRequested    = "talaria.invoice.requested"
	EventPayoutStatusChanged = "talaria.payout.status.changed"
)

// ConsumerGroup names for the Kafka workers.
const (
	GroupReconcilerWorker   = "talaria.reconciler.worker"
	GroupNotificationWorker = "talaria.notification.worker"
)

type Config struct {
	Brokers           []string
	ProducerTimeout   time.Duration
	RequiredAcks      kgo.Acks
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxPollRecords    int
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConfig(brokers []string) *Config {
	return &Config{
		Brokers:           brokers,
		ProducerTimeout:   10 * time.Second,
		RequiredAcks:      kgo.AllISRAcks(),
		SessionTimeout:    10 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxPollRecords:    100,
		MaxRetries:        5,
		RetryBackoff:      1 * time.Second,
	}
}
