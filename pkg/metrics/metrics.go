// Package metrics exposes prometheus collectors for the dataset cache and the
// worker offload coordinator.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheRecorder observes dataset cache lookups.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
	// CacheSkip counts calls where no cache key could be derived.
	CacheSkip()
}

// WorkerRecorder observes the worker offload coordinator.
type WorkerRecorder interface {
	WorkerDispatched()
	WorkerFallback(reason string)
	WorkerFault()
}

// Fallback reasons reported through WorkerRecorder.
const (
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
)

// Nop returns a recorder that drops every observation.
func Nop() Recorder {
	return nopRecorder{}
}

// Recorder covers both cache and worker observations.
type Recorder interface {
	CacheRecorder
	WorkerRecorder
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()             {}
func (nopRecorder) CacheMiss()            {}
func (nopRecorder) CacheSkip()            {}
func (nopRecorder) WorkerDispatched()     {}
func (nopRecorder) WorkerFallback(string) {}
func (nopRecorder) WorkerFault()          {}

// Prometheus records observations as prometheus counters.
type Prometheus struct {
	cache  *prometheus.CounterVec
	worker *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on reg. A nil
// registerer leaves the collectors unregistered, which suits tests.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Subsystem: "dataset_cache",
			Name:      "lookups_total",
			Help:      "Dataset cache lookups by result (hit, miss, skip).",
		}, []string{"result"}),
		worker: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Subsystem: "worker",
			Name:      "events_total",
			Help:      "Worker offload events by kind and fallback reason.",
		}, []string{"event", "reason"}),
	}
	if reg == nil {
		return p, nil
	}
	var err error
	if p.cache, err = register(reg, p.cache); err != nil {
		return nil, err
	}
	if p.worker, err = register(reg, p.worker); err != nil {
		return nil, err
	}
	return p, nil
}

// register adds vec to reg, reusing an identical collector that is already
// registered.
func register(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(vec)
	if err == nil {
		return vec, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}
	return nil, err
}

func (p *Prometheus) CacheHit()  { p.cache.WithLabelValues("hit").Inc() }
func (p *Prometheus) CacheMiss() { p.cache.WithLabelValues("miss").Inc() }
func (p *Prometheus) CacheSkip() { p.cache.WithLabelValues("skip").Inc() }

func (p *Prometheus) WorkerDispatched() {
	p.worker.WithLabelValues("dispatched", "").Inc()
}

func (p *Prometheus) WorkerFallback(reason string) {
	p.worker.WithLabelValues("fallback", reason).Inc()
}

func (p *Prometheus) WorkerFault() {
	p.worker.WithLabelValues("fault", "").Inc()
}

// CacheCounter exposes the cache counter for one result label.
func (p *Prometheus) CacheCounter(result string) prometheus.Counter {
	return p.cache.WithLabelValues(result)
}

// WorkerCounter exposes the worker counter for one event/reason pair.
func (p *Prometheus) WorkerCounter(event, reason string) prometheus.Counter {
	return p.worker.WithLabelValues(event, reason)
}
