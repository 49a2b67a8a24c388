package orchestrator

// Notifier receives progress events for an analysis request, keyed by the
// request's correlation id. Implementations must tolerate being called from
// multiple goroutines; delivery is best effort and never blocks a request.
type Notifier interface {
	DatasetCount(correlationID string, count int)
	DatasetAnalyzed(correlationID string, dataset string)
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) DatasetCount(string, int)       {}
func (NopNotifier) DatasetAnalyzed(string, string) {}
