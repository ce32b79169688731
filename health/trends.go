package health

import (
	"sync"
	"time"
)

// History caps per service.
const (
	maxResponseSamples = 100
	maxErrorSamples    = 50
)

// ResponseSample is the response time of one probe that reached the service.
type ResponseSample struct {
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
}

// ErrorSample is the error text of one failed probe.
type ErrorSample struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// Trends is the recent probe history of one service.
type Trends struct {
	Service       string           `json:"service"`
	Window        string           `json:"window"`
	ResponseTimes []ResponseSample `json:"responseTimes"`
	Errors        []ErrorSample    `json:"errors"`
}

type series struct {
	responses []ResponseSample
	errors    []ErrorSample
}

// history keeps bounded, in-memory probe samples per service.
type history struct {
	mu     sync.Mutex
	series map[string]*series
}

func newHistory() *history {
	return &history{series: make(map[string]*series)}
}

func (h *history) record(name string, at time.Time, res ProbeResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.series[name]
	if !ok {
		s = &series{}
		h.series[name] = s
	}
	if res.Outcome != OutcomeUnreachable {
		s.responses = appendCapped(s.responses, ResponseSample{Timestamp: at, ResponseTimeMs: res.ResponseTime.Milliseconds()}, maxResponseSamples)
	}
	if res.Outcome != OutcomeSuccess {
		text := res.errorText()
		if text == "" {
			text = res.Outcome.String()
		}
		s.errors = appendCapped(s.errors, ErrorSample{Timestamp: at, Error: text}, maxErrorSamples)
	}
}

// since returns the samples of name taken at or after cutoff.
func (h *history) since(name string, cutoff time.Time) ([]ResponseSample, []ErrorSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	responses := []ResponseSample{}
	errs := []ErrorSample{}
	s, ok := h.series[name]
	if !ok {
		return responses, errs
	}
	for _, r := range s.responses {
		if !r.Timestamp.Before(cutoff) {
			responses = append(responses, r)
		}
	}
	for _, e := range s.errors {
		if !e.Timestamp.Before(cutoff) {
			errs = append(errs, e)
		}
	}
	return responses, errs
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}
