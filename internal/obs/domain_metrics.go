package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts quote computations by outcome.
	QuoteTotal *prometheus.CounterVec
	// QuoteErrorTotal counts business errors surfaced on quotes by code.
	QuoteErrorTotal *prometheus.CounterVec
	// QuoteDuration records quote computation latency in milliseconds.
	QuoteDuration prometheus.Histogram
	// VoucherApplyTotal counts voucher application attempts by outcome.
	VoucherApplyTotal *prometheus.CounterVec
	// SubmissionTotal counts checkout submission outcomes.
	SubmissionTotal *prometheus.CounterVec
	// RateCacheHits counts shipping rate cache lookups by result.
	RateCacheHits *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of quote computations by outcome.",
		}, []string{"result"})
		QuoteErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_error_total",
			Help:      "Count of business errors carried on computed quotes.",
		}, []string{"code"})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Quote computation latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		})
		VoucherApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_apply_total",
			Help:      "Count of voucher application attempts by outcome.",
		}, []string{"result"})
		SubmissionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_total",
			Help:      "Count of checkout submission outcomes.",
		}, []string{"result"})
		RateCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_cache_lookups_total",
			Help:      "Shipping rate cache lookups by result.",
		}, []string{"result"})

		QuoteTotal = registerOrReuse(reg, QuoteTotal).(*prometheus.CounterVec)
		QuoteErrorTotal = registerOrReuse(reg, QuoteErrorTotal).(*prometheus.CounterVec)
		QuoteDuration = registerOrReuse(reg, QuoteDuration).(prometheus.Histogram)
		VoucherApplyTotal = registerOrReuse(reg, VoucherApplyTotal).(*prometheus.CounterVec)
		SubmissionTotal = registerOrReuse(reg, SubmissionTotal).(*prometheus.CounterVec)
		RateCacheHits = registerOrReuse(reg, RateCacheHits).(*prometheus.CounterVec)
	})
}
