package task

import "encoding/json"

// Result is what a successful handler hands back to the scheduler.
type Result struct {
	// Data is stored in the run cache under CacheKey when CacheKey is set.
	Data any

	// CacheKey names Data for later jobs of the same run. Empty means the
	// data is not cached.
	CacheKey string

	// Children are follow-up jobs, inserted in order. Each depends on the
	// job that produced it and inherits its batch.
	Children []ChildSpec
}

// ChildSpec describes a job to create from a result.
type ChildSpec struct {
	Type     Type
	Params   json.RawMessage
	Priority int
}

// Child builds a ChildSpec, encoding params as JSON.
func Child(t Type, params any, priority int) (ChildSpec, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return ChildSpec{}, err
	}
	return ChildSpec{Type: t, Params: raw, Priority: priority}, nil
}
