// Package kafkafeed replays previously recorded feed events from a
// Kafka topic through the same Source contract as the live transport.
// Used for backfill and offline debugging against journaled streams.
package kafkafeed

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"fullbook/feed"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Reader struct {
	r      *kafka.Reader
	log    zerolog.Logger
	events chan *feed.Event
}

func New(cfg Config, log zerolog.Logger) *Reader {
	return &Reader{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
		log:    log.With().Str("component", "kafka-feed").Logger(),
		events: make(chan *feed.Event, 1024),
	}
}

func (r *Reader) Events() <-chan *feed.Event {
	return r.events
}

func (r *Reader) Run(ctx context.Context) error {
	defer close(r.events)
	defer r.r.Close()

	for {
		m, err := r.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		ev, err := feed.Decode(m.Value)
		if err != nil {
			r.log.Warn().Err(err).Int64("offset", m.Offset).Msg("undecodable journaled event")
		} else if ev.Sequence > 0 {
			select {
			case r.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := r.r.CommitMessages(ctx, m); err != nil {
			return err
		}
	}
}
