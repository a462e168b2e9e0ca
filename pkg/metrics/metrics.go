package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ekaya_pipeline_build_info",
			Help: "Build information of ekaya-pipeline",
		},
		[]string{"version"},
	)

	ChunkFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_pipeline_chunk_fetch_total",
			Help: "Total number of consistency chunk fetches",
		},
		[]string{"database_type", "status"},
	)

	ChunkFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_pipeline_chunk_fetch_duration_seconds",
			Help:    "Duration of consistency chunk fetches",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"database_type"},
	)

	ChunkRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_pipeline_chunk_records_total",
			Help: "Total number of records read by consistency chunk fetches",
		},
		[]string{"database_type"},
	)

	TableCheckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_pipeline_table_check_total",
			Help: "Total number of table consistency checks by result",
		},
		[]string{"result"},
	)

	ReplicationDelayMilliseconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ekaya_pipeline_replication_delay_milliseconds",
			Help: "Last measured replication delay per data source, -1 when the measurement failed",
		},
		[]string{"group", "data_source"},
	)

	DataSourceDisabledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_pipeline_data_source_disabled_total",
			Help: "Total number of disablement notifications emitted",
		},
		[]string{"group", "data_source"},
	)

	HeartbeatDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ekaya_pipeline_heartbeat_duration_seconds",
			Help:    "Duration of discovery heartbeat rounds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)
)
