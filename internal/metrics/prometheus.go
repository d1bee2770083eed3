package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink with the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	cyclesTotal        prometheus.Counter
	cyclesAbortedTotal prometheus.Counter
	cycleDuration      prometheus.Histogram
	jobsTotal          *prometheus.CounterVec

	sourceFetchesTotal *prometheus.CounterVec
	sourceRecords      *prometheus.CounterVec

	submissionsTotal *prometheus.CounterVec
	ledgerErrors     *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobbot_cycles_total",
		Help: "Total number of application cycles started.",
	})
	s.cyclesAbortedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobbot_cycles_aborted_total",
		Help: "Cycles aborted by a fatal initialization error.",
	})
	s.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobbot_cycle_duration_seconds",
		Help:    "Wall time of a full cycle in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	s.jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbot_cycle_jobs_total",
		Help: "Candidate jobs per cycle disposition.",
	}, []string{"disposition"})
	s.sourceFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbot_source_fetches_total",
		Help: "Source invocations by result.",
	}, []string{"source", "result"})
	s.sourceRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbot_source_records_total",
		Help: "Raw records returned per source.",
	}, []string{"source"})
	s.submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbot_submissions_total",
		Help: "Submission attempts by outcome.",
	}, []string{"outcome"})
	s.ledgerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbot_ledger_errors_total",
		Help: "Recovered ledger I/O errors by operation.",
	}, []string{"op"})

	s.register(reg, s.cyclesTotal, "jobbot_cycles_total")
	s.register(reg, s.cyclesAbortedTotal, "jobbot_cycles_aborted_total")
	s.register(reg, s.cycleDuration, "jobbot_cycle_duration_seconds")
	s.register(reg, s.jobsTotal, "jobbot_cycle_jobs_total")
	s.register(reg, s.sourceFetchesTotal, "jobbot_source_fetches_total")
	s.register(reg, s.sourceRecords, "jobbot_source_records_total")
	s.register(reg, s.submissionsTotal, "jobbot_submissions_total")
	s.register(reg, s.ledgerErrors, "jobbot_ledger_errors_total")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("[metrics] failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) CycleStarted() {
	s.cyclesTotal.Inc()
}

func (s *PrometheusSink) CycleCompleted(duration time.Duration, considered, attempted, skipped, deferred int, aborted bool) {
	s.cycleDuration.Observe(duration.Seconds())
	if aborted {
		s.cyclesAbortedTotal.Inc()
	}
	s.jobsTotal.WithLabelValues("considered").Add(float64(considered))
	s.jobsTotal.WithLabelValues("attempted").Add(float64(attempted))
	s.jobsTotal.WithLabelValues("skipped").Add(float64(skipped))
	s.jobsTotal.WithLabelValues("deferred").Add(float64(deferred))
}

func (s *PrometheusSink) SourceFetched(source string, records int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.sourceFetchesTotal.WithLabelValues(source, result).Inc()
	s.sourceRecords.WithLabelValues(source).Add(float64(records))
}

func (s *PrometheusSink) SubmissionOutcome(outcome string) {
	s.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) LedgerError(op string) {
	s.ledgerErrors.WithLabelValues(op).Inc()
}
