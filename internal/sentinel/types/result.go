package types

// ProcessedResult is what one processing pass produced. Alert is set only
// for denied events. Duplicate marks an event id that was already processed;
// such a result carries the earlier event and changed nothing.
type ProcessedResult struct {
	Event     AccessEvent    `json:"event"`
	Alert     *SecurityAlert `json:"alert,omitempty"`
	Delta     StatsDelta     `json:"delta"`
	Persisted bool           `json:"persisted"`
	Notify    bool           `json:"notify"`
	Duplicate bool           `json:"duplicate,omitempty"`
}
