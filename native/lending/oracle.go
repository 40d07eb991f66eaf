package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	// DefaultMaxPriceAge is the staleness window applied to every price feed
	// unless governance overrides it.
	DefaultMaxPriceAge = 60
	// DefaultMaxConfidenceBps caps the confidence interval relative to the
	// price at 3% by default.
	DefaultMaxConfidenceBps = 300
)

// PriceData is one observation from a price feed. Price is scaled by 10^Expo,
// and Conf is the absolute confidence interval in the same scale.
type PriceData struct {
	Price       int64
	Conf        uint64
	Expo        int32
	PublishTime int64
}

// PriceSource supplies the most recent observation for a single feed.
type PriceSource interface {
	Read() (PriceData, error)
}

// priceResolver validates feed observations and falls back from the primary to
// the secondary feed when the primary is stale, wide, or unavailable.
type priceResolver struct {
	maxAge           int64
	maxConfidenceBps uint64
}

func newPriceResolver() *priceResolver {
	return &priceResolver{maxAge: DefaultMaxPriceAge, maxConfidenceBps: DefaultMaxConfidenceBps}
}

// validate rejects observations that are non-positive, stale, or whose
// confidence interval is too wide relative to the price.
func (r *priceResolver) validate(data PriceData, now int64) error {
	if data.Price <= 0 {
		return ErrInvalidPrice
	}
	if now-data.PublishTime > r.maxAge {
		return ErrPriceTooOld
	}
	// conf/price > maxConfidenceBps/10000, rearranged to avoid division.
	confScaled := new256(data.Conf).Mul(new256(data.Conf), new256(basisPoints))
	limit := new256(uint64(data.Price)).Mul(new256(uint64(data.Price)), new256(r.maxConfidenceBps))
	if confScaled.Gt(limit) {
		return ErrConfidenceTooWide
	}
	return nil
}

// Resolve returns the first usable observation, consulting primary then
// secondary. When both fail the resolver reports ErrAllOraclesFailed wrapping
// the primary failure.
func (r *priceResolver) Resolve(primary, secondary PriceSource, now int64) (PriceData, error) {
	var primaryErr error
	if primary != nil {
		data, err := primary.Read()
		if err == nil {
			err = r.validate(data, now)
		}
		if err == nil {
			return data, nil
		}
		primaryErr = err
	}
	if secondary != nil {
		data, err := secondary.Read()
		if err == nil {
			err = r.validate(data, now)
		}
		if err == nil {
			return data, nil
		}
	}
	if primaryErr != nil {
		return PriceData{}, fmt.Errorf("%w: %w", ErrAllOraclesFailed, primaryErr)
	}
	return PriceData{}, ErrAllOraclesFailed
}

// oracleFailureReason buckets a resolution failure for metrics and events.
func oracleFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrPriceTooOld):
		return "stale"
	case errors.Is(err, ErrConfidenceTooWide):
		return "confidence"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid"
	default:
		return "unavailable"
	}
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource reads price observations from a JSON endpoint. The expected
// payload mirrors PriceData:
//
//	{"price": 45000000000, "conf": 22500000, "expo": -8, "publishTime": 1700000000}
type HTTPSource struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPSource constructs an HTTP price source. When client is nil
// http.DefaultClient is used.
func NewHTTPSource(client HTTPDoer, endpoint string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client, endpoint: strings.TrimSpace(endpoint)}
}

func (s *HTTPSource) Read() (PriceData, error) {
	if s == nil || s.endpoint == "" {
		return PriceData{}, fmt.Errorf("price source not configured")
	}
	req, err := http.NewRequest(http.MethodGet, s.endpoint, nil)
	if err != nil {
		return PriceData{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return PriceData{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceData{}, fmt.Errorf("price source: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price       int64  `json:"price"`
		Conf        uint64 `json:"conf"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publishTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceData{}, fmt.Errorf("price source: decode: %w", err)
	}
	return PriceData{Price: payload.Price, Conf: payload.Conf, Expo: payload.Expo, PublishTime: payload.PublishTime}, nil
}

// StaticSource serves a fixed observation, refreshed via Update. It backs
// governance-posted prices and tests.
type StaticSource struct {
	mu   sync.RWMutex
	data PriceData
	err  error
}

// NewStaticSource seeds a static source with an initial observation.
func NewStaticSource(data PriceData) *StaticSource {
	return &StaticSource{data: data}
}

// Update replaces the served observation.
func (s *StaticSource) Update(data PriceData) {
	s.mu.Lock()
	s.data = data
	s.err = nil
	s.mu.Unlock()
}

// Fail makes the source return err until the next Update.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *StaticSource) Read() (PriceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return PriceData{}, s.err
	}
	return s.data, nil
}
