// Package rest serves the replica's query surface over HTTP.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fullbook/domain/book"
	"fullbook/infra/metrics"
	"fullbook/service"
)

type Server struct {
	log     zerolog.Logger
	replica *service.Replica
}

func NewRouter(r *service.Replica, reg *prometheus.Registry, log zerolog.Logger) http.Handler {
	s := &Server{
		log:     log.With().Str("component", "rest").Logger(),
		replica: r,
	}

	mux := chi.NewRouter()
	mux.Get("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.Route("/v1", func(v1 chi.Router) {
		v1.Get("/book", s.handleSnapshot)
		v1.Get("/book/best", s.handleBest)
		v1.Get("/book/depth", s.handleDepth)
		v1.Get("/book/orders/{id}", s.handleOrder)
		v1.Get("/ticker", s.handleTicker)
	})
	return mux
}

type orderJSON struct {
	ID    string `json:"id"`
	Side  string `json:"side"`
	Price string `json:"price"`
	Size  string `json:"size"`
}

func toOrderJSON(o book.Order) orderJSON {
	return orderJSON{ID: o.ID, Side: o.Side.String(), Price: o.Price.String(), Size: o.Size.String()}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	// Healthy once the gate has a sequence: the book reflects a snapshot.
	if _, ok := s.replica.Sequence(); !ok {
		http.Error(w, "book not synced", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleBest(w http.ResponseWriter, _ *http.Request) {
	type best struct {
		Bid    string `json:"bid,omitempty"`
		Ask    string `json:"ask,omitempty"`
		Spread string `json:"spread,omitempty"`
		Mid    string `json:"mid,omitempty"`
	}
	var out best
	if bid, ok := s.replica.BestBid(); ok {
		out.Bid = bid.String()
	}
	if ask, ok := s.replica.BestAsk(); ok {
		out.Ask = ask.String()
	}
	if spread, ok := s.replica.Spread(); ok {
		out.Spread = spread.String()
	}
	if mid, ok := s.replica.Mid(); ok {
		out.Mid = mid.String()
	}
	s.writeJSON(w, out)
}

func (s *Server) handleDepth(w http.ResponseWriter, req *http.Request) {
	side, err := book.ParseSide(req.URL.Query().Get("side"))
	if err != nil {
		http.Error(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(req.URL.Query().Get("price"))
	if err != nil {
		http.Error(w, "bad price", http.StatusBadRequest)
		return
	}

	orders := s.replica.Depth(side, price)
	out := struct {
		Side   string      `json:"side"`
		Price  string      `json:"price"`
		Total  string      `json:"total"`
		Orders []orderJSON `json:"orders"`
	}{Side: side.String(), Price: price.String(), Orders: make([]orderJSON, 0, len(orders))}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Size)
		out.Orders = append(out.Orders, toOrderJSON(o))
	}
	out.Total = total.String()
	s.writeJSON(w, out)
}

func (s *Server) handleOrder(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	o, ok := s.replica.OrderByID(id)
	if !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, toOrderJSON(o))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.replica.Snapshot()
	type entry [3]string
	out := struct {
		Sequence uint64  `json:"sequence"`
		Bids     []entry `json:"bids"`
		Asks     []entry `json:"asks"`
	}{Sequence: snap.Sequence, Bids: make([]entry, 0, len(snap.Bids)), Asks: make([]entry, 0, len(snap.Asks))}
	for _, e := range snap.Bids {
		out.Bids = append(out.Bids, entry{e.Price.String(), e.Size.String(), e.OrderID})
	}
	for _, e := range snap.Asks {
		out.Asks = append(out.Asks, entry{e.Price.String(), e.Size.String(), e.OrderID})
	}
	s.writeJSON(w, out)
}

func (s *Server) handleTicker(w http.ResponseWriter, _ *http.Request) {
	ev, ok := s.replica.LastTrade()
	if !ok {
		http.Error(w, "no trades yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, struct {
		Sequence     uint64 `json:"sequence"`
		Price        string `json:"price"`
		Size         string `json:"size"`
		Side         string `json:"side"`
		MakerOrderID string `json:"maker_order_id"`
		TakerOrderID string `json:"taker_order_id,omitempty"`
	}{ev.Sequence, ev.Price, ev.Size, ev.Side, ev.MakerOrderID, ev.TakerOrderID})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("encode response")
	}
}
