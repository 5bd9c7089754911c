package marketplace

import (
	"context"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/pkg/logger"
)

// FallbackLookup пробует живой вызов, а при отказе всего вызова подставляет симуляцию.
// RateLimitExhausted и отмена не подменяются: вызывающий должен знать, какие ключи повторить.
type FallbackLookup struct {
	live      Lookup
	simulated Lookup
	log       logger.Logger
}

func NewFallbackLookup(live, simulated Lookup, log logger.Logger) *FallbackLookup {
	return &FallbackLookup{live: live, simulated: simulated, log: logger.OrDiscard(log)}
}

func (f *FallbackLookup) Lookup(ctx context.Context, kind Kind, items []Item) ([]LookupResult, error) {
	results, err := f.live.Lookup(ctx, kind, items)
	if err == nil {
		return results, nil
	}
	if failure.Is(err, ErrRateLimitExhausted) || failure.Is(err, ErrCancelled) || ctx.Err() != nil {
		return nil, err
	}

	reason := Describe(err)
	f.log.Log("Live %s lookup failed for %d keys, using simulated results: %s", kind, len(items), reason)

	simulated, simErr := f.simulated.Lookup(ctx, kind, items)
	if simErr != nil {
		return nil, err
	}
	for i := range simulated {
		simulated[i].Simulated = true
		simulated[i].FallbackReason = reason
		if simulated[i].Rationale == "" {
			simulated[i].Rationale = "simulated: live lookup unavailable"
		}
	}
	return simulated, nil
}
