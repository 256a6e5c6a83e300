package sheets

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/pkg/cache"
	"inventario-go/pkg/log"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Options tunes the access policy layered over a RowStore.
type Options struct {
	Cache            cache.Cache
	CacheTTL         time.Duration
	MinInterval      time.Duration
	CallsPerMinute   int
	DegradedFraction float64
	MaxRetries       uint64
	CallTimeout      time.Duration
}

// Client decorates a RowStore with a shared rate limiter, a short-TTL read
// cache and retry-with-backoff for retriable errors. It satisfies RowStore
// itself, so repositories never know which layer they talk to.
type Client struct {
	store       RowStore
	cache       cache.Cache
	ttl         time.Duration
	limiter     *quotaLimiter
	maxRetries  uint64
	callTimeout time.Duration
}

// NewClient applies defaults for any zero option.
func NewClient(store RowStore, opts Options) *Client {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 60 * time.Second
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = 250 * time.Millisecond
	}
	if opts.CallsPerMinute == 0 {
		opts.CallsPerMinute = 60
	}
	if opts.DegradedFraction == 0 {
		opts.DegradedFraction = 0.8
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 20 * time.Second
	}
	return &Client{
		store:       store,
		cache:       opts.Cache,
		ttl:         opts.CacheTTL,
		limiter:     newQuotaLimiter(opts.MinInterval, opts.CallsPerMinute, opts.DegradedFraction),
		maxRetries:  opts.MaxRetries,
		callTimeout: opts.CallTimeout,
	}
}

func cacheKey(sheet string) string { return "sheet:" + sheet }

func (c *Client) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	if data, ok := c.cache.Get(ctx, cacheKey(sheet)); ok {
		var rows [][]string
		if err := json.Unmarshal(data, &rows); err == nil {
			return rows, nil
		}
		// Corrupt entry: fall through to a fresh read.
		c.cache.Delete(ctx, cacheKey(sheet))
	}

	var rows [][]string
	err := c.do(ctx, func(callCtx context.Context) error {
		var readErr error
		rows, readErr = c.store.ReadRows(callCtx, sheet)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		c.cache.Set(ctx, cacheKey(sheet), data, c.ttl)
	}
	return rows, nil
}

func (c *Client) AppendRow(ctx context.Context, sheet string, row []string) error {
	err := c.do(ctx, func(callCtx context.Context) error {
		return c.store.AppendRow(callCtx, sheet, row)
	})
	c.cache.Delete(ctx, cacheKey(sheet))
	return err
}

func (c *Client) UpdateRow(ctx context.Context, sheet string, rowIndex int, row []string) error {
	err := c.do(ctx, func(callCtx context.Context) error {
		return c.store.UpdateRow(callCtx, sheet, rowIndex, row)
	})
	c.cache.Delete(ctx, cacheKey(sheet))
	return err
}

func (c *Client) ClearSheet(ctx context.Context, sheet string) error {
	err := c.do(ctx, func(callCtx context.Context) error {
		return c.store.ClearSheet(callCtx, sheet)
	})
	c.cache.Delete(ctx, cacheKey(sheet))
	return err
}

// Invalidate drops the cached rows for a sheet. Callers that mutate a sheet
// through another path (e.g. the file store tracking sheet) use it directly.
func (c *Client) Invalidate(ctx context.Context, sheet string) {
	c.cache.Delete(ctx, cacheKey(sheet))
}

// do runs one store call under the limiter and the retry policy. Retriable
// errors are retried with exponential backoff; after the attempt ceiling the
// error surfaces as StoreUnavailable.
func (c *Client) do(ctx context.Context, call func(context.Context) error) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		err := call(callCtx)
		if err == nil {
			return nil
		}
		if apperr.IsRetriable(err) {
			log.Warnf("retriable store error, backing off: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	err := backoff.Retry(operation, policy)
	if err != nil && apperr.IsRetriable(err) {
		return apperr.Unavailable(err)
	}
	return err
}

// quotaLimiter enforces minimum spacing between calls and a per-minute
// ceiling. Past the degraded fraction of the ceiling the spacing doubles,
// trading latency for headroom instead of failing calls.
type quotaLimiter struct {
	spacing      *rate.Limiter
	mu           sync.Mutex
	windowStart  time.Time
	used         int
	perMinute    int
	degradedFrac float64
}

func newQuotaLimiter(minInterval time.Duration, perMinute int, degradedFrac float64) *quotaLimiter {
	return &quotaLimiter{
		spacing:      rate.NewLimiter(rate.Every(minInterval), 1),
		windowStart:  time.Now(),
		perMinute:    perMinute,
		degradedFrac: degradedFrac,
	}
}

func (l *quotaLimiter) Wait(ctx context.Context) error {
	if err := l.spacing.Wait(ctx); err != nil {
		return err
	}
	for {
		l.mu.Lock()
		now := time.Now()
		if now.Sub(l.windowStart) >= time.Minute {
			l.windowStart = now
			l.used = 0
		}
		if l.used < l.perMinute {
			degraded := float64(l.used) >= l.degradedFrac*float64(l.perMinute)
			l.used++
			l.mu.Unlock()
			if degraded {
				if err := l.spacing.Wait(ctx); err != nil {
					return err
				}
			}
			return nil
		}
		waitFor := time.Minute - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(waitFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
