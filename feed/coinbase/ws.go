// Package coinbase implements the live full-channel websocket
// transport for the replica.
package coinbase

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fullbook/feed"
)

type Config struct {
	URL     string
	Product string
}

// Client subscribes to the full channel for one product and forwards
// every sequenced message. It performs no reordering and no
// reconnection: when the socket drops, Run returns and the caller
// decides what to do, typically resubscribe and let the sequence gate
// force a resync.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	events chan *feed.Event
}

func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		log:    log.With().Str("component", "coinbase-ws").Logger(),
		events: make(chan *feed.Event, 1024),
	}
}

func (c *Client) Events() <-chan *feed.Event {
	return c.events
}

type subscribeMsg struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("coinbase: dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	sub := subscribeMsg{
		Type:       "subscribe",
		ProductIDs: []string{c.cfg.Product},
		Channels:   []string{"full"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("coinbase: subscribe: %w", err)
	}
	c.log.Info().Str("product", c.cfg.Product).Msg("subscribed to full channel")

	// Unblock the read loop when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("coinbase: read: %w", err)
		}

		ev, err := feed.Decode(raw)
		if err != nil {
			c.log.Warn().Err(err).Msg("undecodable feed message")
			continue
		}
		// Subscription acks and heartbeats carry no sequence and are
		// not part of the book stream.
		if ev.Sequence == 0 {
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
