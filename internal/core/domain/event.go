package domain

// EventType identifies the kind of event fanned out to subscribers.
type EventType string

const (
	EventTypeNewBlock         EventType = "new_block"
	EventTypeMetricsSnapshot  EventType = "metrics_snapshot"
	EventTypeBackfillComplete EventType = "backfill_complete"
)
