package ports

// Metric names shared by the pipelines and the observability adapters.
const (
	MetricSamplesCollected = "electro_samples_collected_total"
	MetricSamplesDiscarded = "electro_samples_discarded_total"
	MetricFramesAssembled  = "electro_frames_assembled_total"
	MetricFramesDiagnosed  = "electro_frames_diagnosed_total"
	MetricFramesDropped    = "electro_frames_dropped_total"
	MetricDLQ              = "electro_dlq_total"
	MetricWALSizeBytes     = "electro_wal_size_bytes"
	MetricQueueLength      = "electro_queue_length"
	MetricDiagnosisLatency = "electro_diagnosis_latency_seconds"
	MetricSinkLatency      = "electro_sink_latency_seconds"
	MetricDefectSeverity   = "electro_defect_severity"
	MetricConditionLevel   = "electro_condition_level"
	MetricPhaseAsymmetry   = "electro_phase_asymmetry"
	MetricDQRatio          = "electro_dq_ratio"
	MetricPhaseCurrentRMS  = "electro_phase_current_rms"
)
