package acquisition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/pkg/logger"
)

// PullerChain выбирает Puller по Kind источника.
type PullerChain struct {
	pullers map[Kind]Puller
	log     logger.Logger
	mu      sync.RWMutex
}

func NewPullerChain(log logger.Logger) *PullerChain {
	return &PullerChain{
		pullers: make(map[Kind]Puller),
		log:     logger.OrDiscard(log),
	}
}

func (pc *PullerChain) Register(kind Kind, puller Puller) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if puller == nil {
		err := fmt.Errorf("puller is nil for kind '%s'", kind)
		pc.log.Log("Error registering puller: %v", err)
		return err
	}
	if kind == "" {
		return fmt.Errorf("puller kind cannot be empty")
	}
	if _, exists := pc.pullers[kind]; exists {
		err := fmt.Errorf("puller for kind '%s' already exists", kind)
		pc.log.Log("Error registering puller: %v", err)
		return err
	}

	pc.pullers[kind] = puller
	pc.log.Log("Successfully registered puller: kind=%s", kind)
	return nil
}

func (pc *PullerChain) Kinds() []Kind {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	kinds := make([]Kind, 0, len(pc.pullers))
	for k := range pc.pullers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (pc *PullerChain) lookup(source RemoteSource) (Puller, error) {
	pc.mu.RLock()
	puller, ok := pc.pullers[source.Kind]
	pc.mu.RUnlock()

	if !ok {
		return nil, failure.New(ErrUnknownSourceKind,
			failure.Message(fmt.Sprintf("unknown source kind %q", source.Kind)),
			failure.Context{"source": source.ID},
		)
	}
	return puller, nil
}

func (pc *PullerChain) PerformPull(ctx context.Context, source RemoteSource, budget time.Duration) (*Payload, error) {
	puller, err := pc.lookup(source)
	if err != nil {
		return nil, err
	}
	pc.log.Log("Pulling source %s using %s puller with budget %v", source.ID, source.Kind, budget)
	return puller.PerformPull(ctx, source, budget)
}

// TestConnection проверяет источник, если его Puller это умеет; иначе считается доступным.
func (pc *PullerChain) TestConnection(ctx context.Context, source RemoteSource, budget time.Duration) error {
	puller, err := pc.lookup(source)
	if err != nil {
		return err
	}
	tester, ok := puller.(Tester)
	if !ok {
		return nil
	}
	pc.log.Log("Testing connection to source %s (%s)", source.ID, source.Kind)
	return tester.TestConnection(ctx, source, budget)
}
