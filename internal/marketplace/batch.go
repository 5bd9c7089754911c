package marketplace

import (
	"context"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"gomarket_mdm/metrics"
	"gomarket_mdm/pkg/logger"
)

const (
	DefaultBatchSize      = 20
	DefaultInterCallDelay = time.Second
)

// BatchClient разбивает ключи на пакеты и вызывает Lookup последовательно,
// выдерживая паузу не меньше delay между концом одного вызова и началом следующего.
type BatchClient struct {
	lookup    Lookup
	batchSize int
	delay     time.Duration
	log       logger.Logger
}

func NewBatchClient(lookup Lookup, batchSize int, delay time.Duration, log logger.Logger) *BatchClient {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = 0
	}
	return &BatchClient{lookup: lookup, batchSize: batchSize, delay: delay, log: logger.OrDiscard(log)}
}

// BatchLookup возвращает ровно один результат на каждый ключ в исходном порядке.
func (c *BatchClient) BatchLookup(ctx context.Context, keys []string, kind Kind) []LookupResult {
	return c.BatchLookupItems(ctx, itemsFromKeys(keys), kind)
}

func (c *BatchClient) BatchLookupItems(ctx context.Context, items []Item, kind Kind) []LookupResult {
	results, _ := c.Run(ctx, items, kind)
	return results
}

// Run: BatchLookupItems со сводкой по прогону.
func (c *BatchClient) Run(ctx context.Context, items []Item, kind Kind) ([]LookupResult, metrics.BatchSummary) {
	m := &metrics.BatchMetrics{}
	m.Requested.Store(int32(len(items)))
	results := make([]LookupResult, 0, len(items))
	if len(items) == 0 {
		return results, m.Summary()
	}

	size := c.batchSize
	if !kind.Batchable() {
		size = 1
	}
	chunks := lo.Chunk(items, size)

	// nil до первого вызова: первый вызов не ждёт
	var limiter *rate.Limiter

	c.log.Log("Looking up %s for %d keys in %d calls", kind, len(items), len(chunks))
	for i, chunk := range chunks {
		var chunkResults []LookupResult
		if err := c.wait(ctx, limiter); err != nil {
			chunkResults = failAll(chunk, err)
		} else {
			m.Calls.Add(1)
			res, err := c.lookup.Lookup(ctx, kind, chunk)
			if err != nil {
				c.log.Log("Call %d/%d failed: %s", i+1, len(chunks), Describe(err))
				chunkResults = failAll(chunk, err)
			} else {
				chunkResults = align(chunk, res)
			}
		}
		tally(m, kind, chunkResults)
		results = append(results, chunkResults...)

		if c.delay > 0 && i < len(chunks)-1 {
			limiter = cooldown(c.delay, time.Now())
		}
	}

	summary := m.Summary()
	c.log.Log("Lookup %s done: %d live, %d simulated, %d failed", kind, summary.Live, summary.Simulated, summary.Failed)
	return results, summary
}

func (c *BatchClient) wait(ctx context.Context, limiter *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return failure.Wrap(err, failure.WithCode(ErrCancelled), failure.Message("lookup cancelled"))
	}
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return failure.Wrap(err, failure.WithCode(ErrCancelled), failure.Message("lookup cancelled"))
	}
	return nil
}

// cooldown возвращает лимитер без свободного токена: следующий появится через delay после now.
func cooldown(delay time.Duration, now time.Time) *rate.Limiter {
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	limiter.AllowN(now, 1)
	return limiter
}

func failAll(chunk []Item, err error) []LookupResult {
	return lo.Map(chunk, func(it Item, _ int) LookupResult {
		return failedResult(it.Key, err)
	})
}

// align приводит ответ к порядку ключей пакета. Ответ может прийти в другом порядке
// или без части ключей.
func align(chunk []Item, res []LookupResult) []LookupResult {
	used := make([]bool, len(res))
	take := func(i int, key string) (LookupResult, bool) {
		if i < len(res) && !used[i] && res[i].Key == key {
			used[i] = true
			return res[i], true
		}
		for j := range res {
			if !used[j] && res[j].Key == key {
				used[j] = true
				return res[j], true
			}
		}
		return LookupResult{}, false
	}

	out := make([]LookupResult, len(chunk))
	for i, it := range chunk {
		r, ok := take(i, it.Key)
		if !ok {
			r = failedResult(it.Key, failure.New(ErrItemFailure,
				failure.Message("no result returned for "+it.Key),
			))
		}
		out[i] = r
	}
	return out
}

func tally(m *metrics.BatchMetrics, kind Kind, results []LookupResult) {
	var live, simulated, failed int
	for _, r := range results {
		switch {
		case !r.Success:
			failed++
		case r.Simulated:
			simulated++
		default:
			live++
		}
	}
	m.Live.Add(int32(live))
	m.Simulated.Add(int32(simulated))
	m.Failed.Add(int32(failed))
	metrics.RecordLookup(string(kind), "live", live)
	metrics.RecordLookup(string(kind), "simulated", simulated)
	metrics.RecordLookup(string(kind), "failed", failed)
}
