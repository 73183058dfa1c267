package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Metric is one named value in an ordered result map
type Metric struct {
	Key   string
	Value interface{}
}

// Metrics is an ordered key/value list; keys keep insertion order and are unique
type Metrics []Metric

// Set adds or replaces a value, keeping the original position for existing keys
func (m *Metrics) Set(key string, value interface{}) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Metric{Key: key, Value: value})
}

// Get returns the value for key
func (m Metrics) Get(key string) (interface{}, bool) {
	for _, kv := range m {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Float returns a numeric value for key, converting integer types
func (m Metrics) Float(key string) (float64, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

// Keys returns keys in order
func (m Metrics) Keys() []string {
	keys := make([]string, len(m))
	for i, kv := range m {
		keys[i] = kv.Key
	}
	return keys
}

// MarshalJSON writes metrics as a JSON object in insertion order
func (m Metrics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ArtifactRef points at a stored artifact
type ArtifactRef struct {
	Handle      string `json:"handle"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Digest      string `json:"digest"`
}

// EmbedResult contains the outcome of an embed operation
type EmbedResult struct {
	Carrier  string        `json:"carrier"`
	Method   string        `json:"method"`
	Metrics  Metrics       `json:"metrics"`
	Artifact ArtifactRef   `json:"artifact"`
	Duration time.Duration `json:"duration"`
}

// Extraction status values
const (
	StatusFound  = "found"
	StatusAbsent = "absent"
)

// ExtractResult contains the outcome of an extraction attempt; an absent payload is
// a normal result with PayloadBytes == 0 and a nil Artifact
type ExtractResult struct {
	Carrier      string        `json:"carrier"`
	Method       string        `json:"method"`
	Status       string        `json:"status"`
	PayloadBytes int           `json:"payloadBytes"`
	Metadata     Metrics       `json:"metadata"`
	Payload      []byte        `json:"-"`
	Artifact     *ArtifactRef  `json:"artifact,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Found reports whether a payload was recovered
func (r *ExtractResult) Found() bool { return r.Status == StatusFound }

// DetectionResult is one detector's verdict. Probability is nil when the detector
// cannot apply to the input
type DetectionResult struct {
	Detector    string   `json:"detector"`
	Probability *float64 `json:"probability"`
	Stats       Metrics  `json:"stats"`
}

// Score returns the probability or -1 when inapplicable
func (r DetectionResult) Score() float64 {
	if r.Probability == nil {
		return -1
	}
	return *r.Probability
}

// Prob wraps p for DetectionResult.Probability
func Prob(p float64) *float64 { return &p }

// DetectReport contains the ordered detections for one carrier input
type DetectReport struct {
	Carrier    string            `json:"carrier"`
	Detections []DetectionResult `json:"detections"`
	Duration   time.Duration     `json:"duration"`
}

// Highest returns the detection with the largest applicable probability
func (r *DetectReport) Highest() (DetectionResult, bool) {
	var best DetectionResult
	found := false
	for _, d := range r.Detections {
		if d.Probability == nil {
			continue
		}
		if !found || *d.Probability > *best.Probability {
			best = d
			found = true
		}
	}
	return best, found
}
