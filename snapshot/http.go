package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPLoader fetches a level-3 (per-order) book over the exchange's
// REST API.
type HTTPLoader struct {
	BaseURL string
	Product string
	Client  *http.Client
}

func NewHTTPLoader(baseURL, product string, timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		BaseURL: baseURL,
		Product: product,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Level-3 entries are [price, size, order_id], all strings.
type bookResponse struct {
	Sequence uint64      `json:"sequence"`
	Bids     [][3]string `json:"bids"`
	Asks     [][3]string `json:"asks"`
}

func (l *HTTPLoader) Load(ctx context.Context) (*Snapshot, error) {
	url := fmt.Sprintf("%s/products/%s/book?level=3", l.BaseURL, l.Product)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch %s: %w", l.Product, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: fetch %s: unexpected status %s", l.Product, resp.Status)
	}

	var body bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", l.Product, err)
	}

	snap := &Snapshot{Sequence: body.Sequence}
	if snap.Bids, err = parseEntries(body.Bids); err != nil {
		return nil, fmt.Errorf("snapshot: bids: %w", err)
	}
	if snap.Asks, err = parseEntries(body.Asks); err != nil {
		return nil, fmt.Errorf("snapshot: asks: %w", err)
	}
	return snap, nil
}

func parseEntries(raw [][3]string) ([]Entry, error) {
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", r[0], err)
		}
		size, err := decimal.NewFromString(r[1])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", r[1], err)
		}
		out = append(out, Entry{Price: price, Size: size, OrderID: r[2]})
	}
	return out, nil
}
