package api

import "encoding/json"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status"`
}

// SplitListResponse lists the cached split names
type SplitListResponse struct {
	Splits []string `json:"splits"`
	Count  int      `json:"count"`
}

// SplitResponse is a cached split definition
type SplitResponse struct {
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	Killed           bool            `json:"killed"`
	DefaultTreatment string          `json:"defaultTreatment"`
	ChangeNumber     int64           `json:"changeNumber"`
	Segments         []string        `json:"segments,omitempty"`
	Definition       json.RawMessage `json:"definition,omitempty"`
}

// SegmentMembershipResponse reports whether a key is in a segment
type SegmentMembershipResponse struct {
	Segment string `json:"segment"`
	Key     string `json:"key"`
	Member  bool   `json:"member"`
}
