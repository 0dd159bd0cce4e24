package models

import "sort"

// Unit is the measurement unit attached to a metric sample.
type Unit string

const (
	UnitNone         Unit = "None"
	UnitCount        Unit = "Count"
	UnitPercent      Unit = "Percent"
	UnitSeconds      Unit = "Seconds"
	UnitMilliseconds Unit = "Milliseconds"
	UnitBytes        Unit = "Bytes"
)

// MetricSample is a single data point reported for a target.
type MetricSample struct {
	Name       string            `json:"name"`
	Dimensions map[string]string `json:"dimensions"`
	Unit       Unit              `json:"unit"`
	Value      float64           `json:"value"`
}

// DimensionKeys returns the dimension names in sorted order.
func (m MetricSample) DimensionKeys() []string {
	keys := make([]string, 0, len(m.Dimensions))
	for key := range m.Dimensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
