// Package metrics holds the Prometheus collectors of the CRM core.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "mutations_total",
		Help:      "Mutations handled by the coordinator, by operation and outcome.",
	}, []string{"op", "outcome"})

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "partition_commits_total",
		Help:      "Partition transactions committed or rejected by the store.",
	}, []string{"outcome"})

	commitSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crm",
		Name:      "partition_commit_keys",
		Help:      "Keys written per partition transaction.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50},
	})

	corruptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "corrupt_partitions_total",
		Help:      "Persisted values that failed to parse and were read as empty.",
	}, []string{"kind"})
)

// Outcome classifies an error for labelling.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, schema.ErrValidation):
		return "invalid"
	case errors.Is(err, schema.ErrNotFound):
		return "not_found"
	case errors.Is(err, schema.ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}

// ObserveMutation counts one coordinator operation.
func ObserveMutation(op string, err error) {
	mutationsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveCommit counts one partition transaction of n keys.
func ObserveCommit(n int, err error) {
	commitsTotal.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		commitSize.Observe(float64(n))
	}
}

// ObserveCorrupt counts a partition read as empty because it did not parse.
func ObserveCorrupt(kind string) {
	corruptTotal.WithLabelValues(kind).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
