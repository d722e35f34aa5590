// Package broadcaster drains the raw-event journal to a Kafka topic so
// downstream consumers can replay the exact stream the replica saw.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"fullbook/infra/metrics"
	"fullbook/recorder"
)

type Broadcaster struct {
	journal  *recorder.Journal
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      zerolog.Logger
}

func New(journal *recorder.Journal, brokers []string, topic string, interval time.Duration, log zerolog.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		journal:  journal,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log.With().Str("component", "broadcaster").Logger(),
	}, nil
}

// Run drains newly journaled events on a ticker until ctx ends.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Broadcaster) drainOnce() {
	cursor, err := b.journal.Cursor()
	if err != nil {
		b.log.Error().Err(err).Msg("read broadcast cursor")
		return
	}

	err = b.journal.Scan(cursor, func(e recorder.Entry) error {
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(e.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			metrics.BroadcastErrsTotal.Inc()
			// Leave the cursor where it is; retry this entry next tick.
			return err
		}
		metrics.BroadcastSentTotal.Inc()
		cursor = e.Index + 1
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Uint64("cursor", cursor).Msg("broadcast drain interrupted")
	}

	if err := b.journal.SetCursor(cursor); err != nil {
		b.log.Error().Err(err).Msg("persist broadcast cursor")
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
