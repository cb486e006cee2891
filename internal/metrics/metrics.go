package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pipeline"

var (
	ObjectsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scanner",
		Name:      "objects_discovered_total",
		Help:      "Objects found at or after the watermark.",
	})

	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scanner",
		Name:      "jobs_created_total",
		Help:      "Jobs enqueued as PENDING.",
	})

	Watermark = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watermark_timestamp_seconds",
		Help:      "Watermark read at the start of the last scan pass.",
	})

	LoaderJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "jobs_total",
		Help:      "Jobs finalized by the loader, by final status.",
	}, []string{"status"})

	RowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "rows_written_total",
		Help:      "Rows written to the reporting store.",
	})

	RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "rows_skipped_total",
		Help:      "Rows dropped because they failed to transform.",
	})
)
