package audit

import (
	"encoding/json"
	"fmt"
)

// Counters are the cross-process totals a higher-level orchestrator
// consumes.
type Counters struct {
	Runs        int64 `json:"runs"`
	Passes      int64 `json:"passes"`
	Attempts    int64 `json:"attempts"`
	Exhaustions int64 `json:"exhaustions"`
}

// BumpCounters adds delta to the shared counters through the store.
func BumpCounters(store Store, delta Counters) error {
	old, err := store.Load()
	if err != nil {
		return err
	}
	defer store.Release()

	var counters Counters
	if len(old) > 0 {
		if err := json.Unmarshal(old, &counters); err != nil {
			return fmt.Errorf("audit counters corrupt: %w", err)
		}
	}

	counters.Runs += delta.Runs
	counters.Passes += delta.Passes
	counters.Attempts += delta.Attempts
	counters.Exhaustions += delta.Exhaustions

	updated, err := json.MarshalIndent(counters, "", "  ")
	if err != nil {
		return err
	}
	return store.CompareAndSwap(old, updated)
}

// ReadCounters returns the current shared counters.
func ReadCounters(store Store) (Counters, error) {
	data, err := store.Load()
	if err != nil {
		return Counters{}, err
	}
	defer store.Release()

	var counters Counters
	if len(data) == 0 {
		return counters, nil
	}
	if err := json.Unmarshal(data, &counters); err != nil {
		return Counters{}, fmt.Errorf("audit counters corrupt: %w", err)
	}
	return counters, nil
}
