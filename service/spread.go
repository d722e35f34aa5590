package service

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fullbook/domain/book"
	"fullbook/feed"
)

// SpreadLogger is an observer that logs the bid-ask spread whenever it
// changes. It is the presentation concern the replica itself knows
// nothing about; registration happens in main.
type SpreadLogger struct {
	log     zerolog.Logger
	replica *Replica

	bid      decimal.Decimal
	ask      decimal.Decimal
	bidDepth decimal.Decimal
	askDepth decimal.Decimal
	seen     bool
}

func NewSpreadLogger(r *Replica, log zerolog.Logger) *SpreadLogger {
	return &SpreadLogger{
		log:     log.With().Str("component", "spread").Logger(),
		replica: r,
	}
}

// Observe implements Observer.
func (s *SpreadLogger) Observe(ev *feed.Event) {
	bid, okB := s.replica.BestBid()
	ask, okA := s.replica.BestAsk()
	if !okB || !okA {
		return
	}

	bidDepth := sumSizes(s.replica.Depth(book.Buy, bid))
	askDepth := sumSizes(s.replica.Depth(book.Sell, ask))

	if s.seen && s.bid.Equal(bid) && s.ask.Equal(ask) &&
		s.bidDepth.Equal(bidDepth) && s.askDepth.Equal(askDepth) {
		return
	}
	s.bid, s.ask = bid, ask
	s.bidDepth, s.askDepth = bidDepth, askDepth
	s.seen = true

	s.log.Info().
		Str("bid", bid.String()).Str("bid_depth", bidDepth.String()).
		Str("ask", ask.String()).Str("ask_depth", askDepth.String()).
		Msg("spread update")
}

func sumSizes(orders []book.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Size)
	}
	return total
}
