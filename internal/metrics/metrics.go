// Package metrics exposes Prometheus instruments for the data layer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imanconnect"

// Registry owns every instrument. It implements dbpool.Observer,
// flatfile.WriteObserver and backup.Observer.
type Registry struct {
	reg *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	acquireWait     prometheus.Histogram
	acquireFailures prometheus.Counter
	connsInUse      prometheus.Gauge
	backups         *prometheus.CounterVec
	backupTime      prometheus.Histogram
	backupCount     prometheus.Gauge
	flatFileWrites  *prometheus.CounterVec
}

// New creates a registry with the Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Data access operations by name and outcome status.",
		}, []string{"op", "status"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Data access operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled connection.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}),
		acquireFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_failures_total",
			Help:      "Connection acquisitions that timed out or failed.",
		}),
		connsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connections_in_use",
			Help:      "Connections currently borrowed from the pool.",
		}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Backup attempts by result.",
		}, []string{"result"}),
		backupTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "duration_seconds",
			Help:      "Time taken by a backup including verification and pruning.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		backupCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "files",
			Help:      "Backup files currently kept.",
		}),
		flatFileWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flatfile",
			Name:      "writes_total",
			Help:      "Daily flat file rewrites by file and result.",
		}, []string{"file", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.operations, r.operationTime,
		r.acquireWait, r.acquireFailures, r.connsInUse,
		r.backups, r.backupTime, r.backupCount,
		r.flatFileWrites,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveOperation records one façade operation with its final status.
func (r *Registry) ObserveOperation(op, status string, elapsed time.Duration) {
	r.operations.WithLabelValues(op, status).Inc()
	r.operationTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveAcquire(wait time.Duration, err error) {
	r.acquireWait.Observe(wait.Seconds())
	if err != nil {
		r.acquireFailures.Inc()
	}
}

func (r *Registry) SetConnectionsInUse(n int) { r.connsInUse.Set(float64(n)) }

func (r *Registry) ObserveBackup(elapsed time.Duration, err error) {
	r.backupTime.Observe(elapsed.Seconds())
	r.backups.WithLabelValues(result(err)).Inc()
}

func (r *Registry) SetBackupCount(n int) { r.backupCount.Set(float64(n)) }

func (r *Registry) ObserveFlatFileWrite(file string, err error) {
	r.flatFileWrites.WithLabelValues(file, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, r *Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
