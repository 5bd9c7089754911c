package metrics

import "sync/atomic"

// BatchMetrics: счётчики одного прогона пакетного запроса к маркетплейсу.
type BatchMetrics struct {
	Requested atomic.Int32
	Calls     atomic.Int32
	Live      atomic.Int32
	Simulated atomic.Int32
	Failed    atomic.Int32
}

type BatchSummary struct {
	Requested int `json:"requested"`
	Calls     int `json:"calls"`
	Live      int `json:"live"`
	Simulated int `json:"simulated"`
	Failed    int `json:"failed"`
}

func (m *BatchMetrics) Summary() BatchSummary {
	return BatchSummary{
		Requested: int(m.Requested.Load()),
		Calls:     int(m.Calls.Load()),
		Live:      int(m.Live.Load()),
		Simulated: int(m.Simulated.Load()),
		Failed:    int(m.Failed.Load()),
	}
}
