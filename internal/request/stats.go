package request

// Stats records domain counters. Implemented by observability.Metrics;
// a nil Stats disables counting.
type Stats interface {
	RequestSubmitted()
	RequestDecided(decision string)
	DecisionConflict()
	FeedEvent(eventType string)
}
