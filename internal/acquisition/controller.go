package acquisition

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/metrics"
	"gomarket_mdm/pkg/logger"
	"gomarket_mdm/pkg/records"
)

// Puller выполняет одну выгрузку из источника. budget: дедлайн попытки, ctx отменяется по его истечении.
type Puller interface {
	PerformPull(ctx context.Context, source RemoteSource, budget time.Duration) (*Payload, error)
}

// Tester: необязательная возможность Puller проверить доступность источника
// до выгрузки. Controller вызывает её в начале каждой попытки.
type Tester interface {
	TestConnection(ctx context.Context, source RemoteSource, budget time.Duration) error
}

type PullerFunc func(ctx context.Context, source RemoteSource, budget time.Duration) (*Payload, error)

func (f PullerFunc) PerformPull(ctx context.Context, source RemoteSource, budget time.Duration) (*Payload, error) {
	return f(ctx, source, budget)
}

type Options struct {
	Retries          int
	BaseDelay        time.Duration
	Deadline         time.Duration
	ProgressInterval time.Duration
	SampleLimit      int
	Schedule         PhaseSchedule
}

func DefaultOptions() Options {
	return Options{
		Retries:          3,
		BaseDelay:        time.Second,
		Deadline:         60 * time.Second,
		ProgressInterval: time.Second,
		SampleLimit:      100,
		Schedule:         DefaultSchedule,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Retries <= 0 {
		o.Retries = def.Retries
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.Deadline <= 0 {
		o.Deadline = def.Deadline
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = def.ProgressInterval
	}
	if o.SampleLimit <= 0 {
		o.SampleLimit = def.SampleLimit
	}
	if o.Schedule.isZero() {
		o.Schedule = def.Schedule
	}
	return o
}

// Controller выгружает образец данных из источника: дедлайн на попытку,
// повтор с экспоненциальной паузой, события прогресса и состояния в Sink.
type Controller struct {
	puller Puller
	sink   Sink
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewController(puller Puller, sink Sink, log logger.Logger) *Controller {
	if sink == nil {
		sink = discardSink
	}
	return &Controller{
		puller: puller,
		sink:   sink,
		log:    logger.OrDiscard(log),
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// SetSleeper подменяет ожидание между попытками.
func (c *Controller) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) *Controller {
	if sleep != nil {
		c.sleep = sleep
	}
	return c
}

// Pull выгружает образец. Источник не изменяется; обновить LastPulledAt должен вызывающий код.
func (c *Controller) Pull(ctx context.Context, source RemoteSource, opts Options) PullOutcome {
	opts = opts.withDefaults()
	m := newMachine(source.ID, c.sink)

	if err := source.Validate(); err != nil {
		return c.finish(m, 0, failed(err, nil, 0))
	}

	var outcome PullOutcome
	for attempt := 0; attempt < opts.Retries; attempt++ {
		c.must(m.to(StateAttempting, attempt, ""))

		started := c.now()
		outcome = c.attempt(ctx, source, opts, attempt)
		outcome.Attempts = attempt + 1
		metrics.RecordPullAttempt(string(source.Kind), resultLabel(outcome), c.now().Sub(started))

		if outcome.Success {
			c.log.Log("Source %s pulled on attempt %d: %d of %d records", source.ID, attempt+1, len(outcome.Records), outcome.TotalRecords)
			c.must(m.to(StateSucceeded, attempt, outcome.Message))
			c.must(m.to(StateDone, attempt, ""))
			return outcome
		}

		c.log.Log("Source %s attempt %d/%d failed: %s", source.ID, attempt+1, opts.Retries, outcome.Message)
		if !Retryable(outcome.Err) {
			return c.finish(m, attempt, outcome)
		}

		last := attempt == opts.Retries-1
		if !last {
			c.must(m.to(StateRetrying, attempt, outcome.Message))
		}
		delay := opts.BaseDelay * time.Duration(1<<attempt)
		if err := c.sleep(ctx, delay); err != nil {
			return c.finish(m, attempt, cancelled(err, outcome.Attempts))
		}
	}
	return c.finish(m, opts.Retries-1, outcome)
}

func (c *Controller) finish(m *machine, attempt int, outcome PullOutcome) PullOutcome {
	if m.state == StateIdle {
		// источник отклонён до первой попытки
		c.must(m.to(StateAttempting, attempt, ""))
	}
	c.must(m.to(StateFailed, attempt, outcome.Message))
	c.must(m.to(StateDone, attempt, ""))
	return outcome
}

func (c *Controller) must(err error) {
	if err != nil {
		c.log.Log("state machine: %v", err)
	}
}

type pullResult struct {
	payload *Payload
	err     error
}

func (c *Controller) attempt(ctx context.Context, source RemoteSource, opts Options, n int) PullOutcome {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan pullResult, 1)
	go func() {
		if tester, ok := c.puller.(Tester); ok {
			if err := tester.TestConnection(attemptCtx, source, opts.Deadline); err != nil {
				done <- pullResult{err: connectionFailed(err)}
				return
			}
		}
		payload, err := c.puller.PerformPull(attemptCtx, source, opts.Deadline)
		done <- pullResult{payload: payload, err: err}
	}()

	stopProgress := c.startProgress(source.ID, n, opts)
	defer stopProgress()

	timer := time.NewTimer(opts.Deadline)
	defer timer.Stop()

	select {
	case res := <-done:
		stopProgress()
		if err := ctx.Err(); err != nil {
			return cancelled(err, 0)
		}
		return c.resolve(res, opts)
	case <-timer.C:
		cancel()
		stopProgress()
		err := failure.New(ErrTimeout,
			failure.Message(timeoutMessage(opts.Deadline)),
			failure.Context{"source": source.ID, "attempt": strconv.Itoa(n + 1)},
		)
		return failed(err, nil, 0)
	case <-ctx.Done():
		stopProgress()
		return cancelled(ctx.Err(), 0)
	}
}

// startProgress запускает тикер прогресса. Возвращённая функция останавливает его и дожидается
// выхода горутины; повторные вызовы ничего не делают.
func (c *Controller) startProgress(sourceID string, attempt int, opts Options) func() {
	quit := make(chan struct{})
	finished := make(chan struct{})
	started := c.now()

	go func() {
		defer close(finished)
		ticker := time.NewTicker(opts.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				select {
				case <-quit:
					return
				default:
				}
				elapsed := c.now().Sub(started)
				c.sink.Emit(Event{
					Type:           EventProgress,
					SourceID:       sourceID,
					Attempt:        attempt,
					Phase:          opts.Schedule.PhaseAt(elapsed, opts.Deadline),
					ElapsedSeconds: elapsed.Seconds(),
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-finished
		})
	}
}

func (c *Controller) resolve(res pullResult, opts Options) PullOutcome {
	if res.err != nil {
		return failed(classify(res.err), res.payload, 0)
	}
	if res.payload == nil {
		return failed(failure.New(ErrMalformedResponse, failure.Message("source returned no payload")), nil, 0)
	}

	parseOpts := res.payload.Parse
	parseOpts.Limit = opts.SampleLimit
	if parseOpts.Filename == "" {
		parseOpts.Filename = res.payload.Filename
	}
	table, err := records.Parse(res.payload.Body, parseOpts)
	if err != nil {
		werr := failure.Wrap(err, failure.WithCode(ErrMalformedResponse),
			failure.Message("failed to parse response: "+err.Error()),
			failure.Context{"file": res.payload.Filename},
		)
		return failed(werr, res.payload, 0)
	}

	return PullOutcome{
		Success:      true,
		Message:      fmt.Sprintf("Successfully retrieved %d records", len(table.Records)),
		Records:      table.Records,
		Columns:      table.Columns,
		FileLabel:    res.payload.Filename,
		SourcePath:   res.payload.SourcePath,
		TotalRecords: table.Total,
	}
}

func failed(err error, payload *Payload, attempts int) PullOutcome {
	outcome := PullOutcome{
		Message:   Describe(err),
		ErrorCode: CodeOf(err),
		Attempts:  attempts,
		Err:       err,
	}
	if payload != nil {
		outcome.RawBody = string(payload.Body)
		outcome.FileLabel = payload.Filename
		outcome.SourcePath = payload.SourcePath
	}
	return outcome
}

func cancelled(cause error, attempts int) PullOutcome {
	err := failure.Wrap(cause, failure.WithCode(ErrCancelled), failure.Message("pull cancelled: "+cause.Error()))
	return failed(err, nil, attempts)
}

func timeoutMessage(deadline time.Duration) string {
	return "operation timed out after " + strconv.FormatFloat(deadline.Seconds(), 'f', -1, 64) + " seconds"
}

func resultLabel(outcome PullOutcome) string {
	if outcome.Success {
		return "success"
	}
	if outcome.ErrorCode == "" {
		return "error"
	}
	return string(outcome.ErrorCode)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
