package acquisition

import (
	"time"

	"gomarket_mdm/pkg/logger"
)

type Phase string

const (
	PhaseConnecting  Phase = "connecting"
	PhaseDownloading Phase = "downloading"
	PhaseProcessing  Phase = "processing"
	PhaseStalled     Phase = "stalled"
)

// PhaseSchedule задаёт границы фаз как доли дедлайна попытки.
type PhaseSchedule struct {
	Connecting  float64
	Downloading float64
	Processing  float64
}

var DefaultSchedule = PhaseSchedule{Connecting: 0.10, Downloading: 0.40, Processing: 0.80}

func (s PhaseSchedule) isZero() bool {
	return s == PhaseSchedule{}
}

// PhaseAt: фаза как функция прошедшего времени. На ход выгрузки не влияет.
func (s PhaseSchedule) PhaseAt(elapsed, deadline time.Duration) Phase {
	if deadline <= 0 {
		return PhaseStalled
	}
	ratio := float64(elapsed) / float64(deadline)
	switch {
	case ratio < s.Connecting:
		return PhaseConnecting
	case ratio < s.Downloading:
		return PhaseDownloading
	case ratio < s.Processing:
		return PhaseProcessing
	}
	return PhaseStalled
}

type EventType string

const (
	EventProgress EventType = "progress"
	EventState    EventType = "state"
)

type Event struct {
	Type           EventType `json:"type"`
	SourceID       string    `json:"source_id"`
	Attempt        int       `json:"attempt"`
	Phase          Phase     `json:"phase,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	State          State     `json:"state,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Sink получает события контроллера. Emit вызывается синхронно и не должен блокироваться надолго.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

var discardSink = SinkFunc(func(Event) {})

// LogSink пишет события в логгер.
func LogSink(log logger.Logger) Sink {
	log = logger.OrDiscard(log)
	return SinkFunc(func(e Event) {
		switch e.Type {
		case EventProgress:
			log.Log("source %s attempt %d: %s (%.1fs)", e.SourceID, e.Attempt+1, e.Phase, e.ElapsedSeconds)
		case EventState:
			if e.Message != "" {
				log.Log("source %s attempt %d: -> %s: %s", e.SourceID, e.Attempt+1, e.State, e.Message)
				return
			}
			log.Log("source %s attempt %d: -> %s", e.SourceID, e.Attempt+1, e.State)
		}
	})
}
