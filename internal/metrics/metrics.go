package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus collectors for pipeline health. Registered once from the cmd
// mains.
var (
	BatchesUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_batches_uploaded_total",
			Help: "Total number of batches accepted by a dialer vendor",
		},
		[]string{"vendor", "bucket"},
	)

	RecordsExcluded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_records_excluded_total",
			Help: "Total number of records excluded by an eligibility filter",
		},
		[]string{"bucket", "reason"},
	)

	VendorCallFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_vendor_call_failures_total",
			Help: "Total number of failed vendor calls by error class",
		},
		[]string{"vendor", "op", "class"},
	)

	ResultRecordsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dialer_result_records_stored_total",
			Help: "Total number of vendor call results stored to contact history",
		},
	)

	ResultRecordsUnparsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dialer_result_records_unparsed_total",
			Help: "Total number of vendor call results that did not match the expected shape",
		},
	)

	TasksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_tasks_failed_total",
			Help: "Total number of dialer tasks ending in FAILURE",
		},
		[]string{"stage_type"},
	)
)

// Register adds every pipeline collector to the registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		BatchesUploaded,
		RecordsExcluded,
		VendorCallFailures,
		ResultRecordsStored,
		ResultRecordsUnparsed,
		TasksFailed,
	)
}
