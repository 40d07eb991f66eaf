package lending

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
)

func validPrice(now int64) PriceData {
	return PriceData{Price: 45_000_000_000, Conf: 22_500_000, Expo: -8, PublishTime: now}
}

func TestResolverAcceptsFreshPrimary(t *testing.T) {
	resolver := newPriceResolver()
	primary := NewStaticSource(validPrice(testNow))
	got, err := resolver.Resolve(primary, nil, testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Price != 45_000_000_000 {
		t.Fatalf("price = %d, want primary price", got.Price)
	}
}

func TestResolverRejectsStalePrice(t *testing.T) {
	resolver := newPriceResolver()
	primary := NewStaticSource(validPrice(testNow - DefaultMaxPriceAge - 1))
	if _, err := resolver.Resolve(primary, nil, testNow); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("resolve stale = %v, want ErrAllOraclesFailed", err)
	}
	// Exactly at the boundary is still acceptable.
	primary.Update(validPrice(testNow - DefaultMaxPriceAge))
	if _, err := resolver.Resolve(primary, nil, testNow); err != nil {
		t.Fatalf("resolve at staleness boundary: %v", err)
	}
}

func TestResolverRejectsWideConfidence(t *testing.T) {
	resolver := newPriceResolver()
	// Confidence above 3% of price.
	data := validPrice(testNow)
	data.Conf = uint64(data.Price)/33 + 1
	primary := NewStaticSource(data)
	if _, err := resolver.Resolve(primary, nil, testNow); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("resolve wide confidence = %v, want ErrAllOraclesFailed", err)
	}
}

func TestResolverRejectsNonPositivePrice(t *testing.T) {
	resolver := newPriceResolver()
	data := validPrice(testNow)
	data.Price = 0
	primary := NewStaticSource(data)
	if _, err := resolver.Resolve(primary, nil, testNow); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("resolve zero price = %v, want ErrAllOraclesFailed", err)
	}
}

func TestResolverFallsBackToSecondary(t *testing.T) {
	resolver := newPriceResolver()
	primary := NewStaticSource(validPrice(testNow - DefaultMaxPriceAge - 10))
	secondary := NewStaticSource(validPrice(testNow))
	got, err := resolver.Resolve(primary, secondary, testNow)
	if err != nil {
		t.Fatalf("resolve with fallback: %v", err)
	}
	if got.PublishTime != testNow {
		t.Fatalf("resolved the stale primary instead of the secondary")
	}
}

func TestResolverAllSourcesExhausted(t *testing.T) {
	resolver := newPriceResolver()
	primary := NewStaticSource(PriceData{})
	primary.Fail(errors.New("feed offline"))
	secondary := NewStaticSource(validPrice(testNow - DefaultMaxPriceAge - 1))
	if _, err := resolver.Resolve(primary, secondary, testNow); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("resolve = %v, want ErrAllOraclesFailed", err)
	}
	if _, err := resolver.Resolve(nil, nil, testNow); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("resolve with no sources = %v, want ErrAllOraclesFailed", err)
	}
}

func TestResolverCustomLimits(t *testing.T) {
	resolver := newPriceResolver()
	resolver.maxAge = 300
	primary := NewStaticSource(validPrice(testNow - 200))
	if _, err := resolver.Resolve(primary, nil, testNow); err != nil {
		t.Fatalf("resolve within widened window: %v", err)
	}
}

type fakeDoer struct {
	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(*http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestHTTPSourceDecodesPayload(t *testing.T) {
	source := NewHTTPSource(&fakeDoer{
		status: http.StatusOK,
		body:   `{"price": 45000000000, "conf": 22500000, "expo": -8, "publishTime": 1700000000}`,
	}, "http://oracle.test/price")
	got, err := source.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Price != 45_000_000_000 || got.Conf != 22_500_000 || got.Expo != -8 || got.PublishTime != 1_700_000_000 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestHTTPSourceSurfacesUpstreamErrors(t *testing.T) {
	source := NewHTTPSource(&fakeDoer{status: http.StatusBadGateway, body: "upstream down"}, "http://oracle.test/price")
	if _, err := source.Read(); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
	source = NewHTTPSource(&fakeDoer{err: errors.New("connection refused")}, "http://oracle.test/price")
	if _, err := source.Read(); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestOracleFailureBlocksBorrow(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.engine.SetNowFunc(func() int64 { return h.now }) // stop refreshing the feed
	h.source.Fail(errors.New("feed offline"))
	if err := h.engine.Borrow(h.user, testPool, 100); !errors.Is(err, ErrAllOraclesFailed) {
		t.Fatalf("borrow with dead oracle = %v, want ErrAllOraclesFailed", err)
	}
}
