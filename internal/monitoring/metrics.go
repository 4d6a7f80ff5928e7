package monitoring

import (
	"expvar"

	"tailscale.com/metrics"
)

// Process metrics. Names follow the tsweb varz convention: a counter_ or
// gauge_ prefix selects the Prometheus type and LabelMap values become
// labelled series.
var (
	AlertsTotal       = &metrics.LabelMap{Label: "type"}
	DedupedAlerts     = new(expvar.Int)
	CorrelationGroups = new(expvar.Int)
	ClipUploads       = new(expvar.Int)
	ClipFailures      = new(expvar.Int)
	NotifyOutcomes    = &metrics.LabelMap{Label: "outcome"}
	IngestBatches     = new(expvar.Int)

	WSClients     = new(expvar.Int)
	LastAlertTS   = new(expvar.Float)
	PersonCount   = &metrics.LabelMap{Label: "camera_id"}
	ZoneOccupancy = &metrics.LabelMap{Label: "camera_id"}
)

func init() {
	expvar.Publish("counter_alerts_total", AlertsTotal)
	expvar.Publish("counter_deduped_alerts_total", DedupedAlerts)
	expvar.Publish("counter_alert_correlation_groups_total", CorrelationGroups)
	expvar.Publish("counter_clip_uploads_total", ClipUploads)
	expvar.Publish("counter_clip_failures_total", ClipFailures)
	expvar.Publish("counter_notify_outcomes_total", NotifyOutcomes)
	expvar.Publish("counter_ingest_batches_total", IngestBatches)
	expvar.Publish("gauge_ws_clients", WSClients)
	expvar.Publish("gauge_last_alert_ts", LastAlertTS)
	expvar.Publish("gauge_person_count", PersonCount)
	expvar.Publish("gauge_zone_occupancy", ZoneOccupancy)
}
