// Package fs simulates filesystem hiding places. The carrier file is copied
// unchanged and the packed bits live in a companion file stored next to it:
// ".hidden" stands in for an NTFS alternate data stream, ".slack" for the slack
// space after the file's last cluster.
package fs

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/filehandler"
	"StegLab/pkg/models"
)

// Key is the registry key of the fs carrier
const Key = "fs"

// Companion suffixes
const (
	SuffixStream = ".hidden"
	SuffixSlack  = ".slack"
)

// New returns the fs carrier entry
func New() (*carrier.Carrier, error) {
	ads := NewSidecar()
	slack := NewSlack()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "Any file; data goes to a simulated stream or slack companion",
		Formats:     []string{"*/*"},
		Embedders:   []carrier.Embedder{ads, slack},
		Extractors:  []carrier.Extractor{ads, slack},
		Detectors: []carrier.Detector{
			NewCompanionDetector("ads", "Alternate stream", SuffixStream),
			NewCompanionDetector("slack", "Slack space", SuffixSlack),
		},
	})
}

// SlackOptions tunes pseudo-slack reporting
type SlackOptions struct {
	// ClusterSize is the simulated allocation unit in bytes
	ClusterSize int `json:"cluster_size" validate:"gte=512,lte=65536"`
}

// Companion stores packed bits in a companion file with a fixed suffix
type Companion struct {
	carrier.BaseMethod
	suffix string
	slack  bool
}

// NewSidecar creates the sidecar method
func NewSidecar() *Companion {
	return &Companion{
		BaseMethod: carrier.NewBaseMethod("sidecar", "Alternate data stream", "Packed bits in a .hidden companion; carrier bytes unchanged"),
		suffix:     SuffixStream,
	}
}

// NewSlack creates the pseudo-slack method
func NewSlack() *Companion {
	return &Companion{
		BaseMethod: carrier.NewBaseMethod("pseudo-slack", "Slack space", "Packed bits in a .slack companion; carrier bytes unchanged"),
		suffix:     SuffixSlack,
		slack:      true,
	}
}

// Suffix returns the companion suffix
func (m *Companion) Suffix() string { return m.suffix }

// Defaults returns the default options
func (m *Companion) Defaults() any {
	if m.slack {
		return &SlackOptions{ClusterSize: 4096}
	}
	return &carrier.NoOptions{}
}

// Capacity is unbounded
func (m *Companion) Capacity(context.Context, []byte, any) (int, error) {
	return carrier.Unbounded, nil
}

// Embed clones the carrier and attaches the companion
func (m *Companion) Embed(_ context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	hidden := bitstream.BitsToBytes(bits)
	ct := filehandler.SniffContentType(cover)
	out := &carrier.Output{
		Data:        append([]byte(nil), cover...),
		ContentType: ct,
		Ext:         filehandler.ExtensionFor(ct),
		Companions:  map[string][]byte{m.suffix: hidden},
	}

	var metrics models.Metrics
	metrics.Set("bits_embedded", len(bits))
	metrics.Set("companion_bytes", len(hidden))
	metrics.Set("carrier_bytes_changed", 0)
	if o, ok := opts.(*SlackOptions); ok && m.slack {
		free := (o.ClusterSize - len(cover)%o.ClusterSize) % o.ClusterSize
		metrics.Set("cluster_size", o.ClusterSize)
		metrics.Set("slack_bytes", free)
		metrics.Set("fits_slack", len(hidden) <= free)
	}
	return out, metrics, nil
}

// Bits reads the companion; without one the input carries no bits
func (m *Companion) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	var meta models.Metrics
	meta.Set("companion_lookup", in.HasCompanions())
	data, ok, err := in.LookupCompanion(m.suffix)
	if err != nil {
		return nil, 0, nil, err
	}
	meta.Set("companion_present", ok)
	bits := bitstream.BytesToBits(data)
	return bitstream.Slice(bits), len(bits), meta, nil
}

// CompanionDetector reports whether the companion with its suffix exists
type CompanionDetector struct {
	carrier.BaseMethod
	suffix string
}

// NewCompanionDetector creates a presence detector for suffix
func NewCompanionDetector(name, label, suffix string) *CompanionDetector {
	return &CompanionDetector{
		BaseMethod: carrier.NewBaseMethod(name, label, "Presence and size of the "+suffix+" companion"),
		suffix:     suffix,
	}
}

// Detect implements carrier.Detector. Bytes supplied without an artifact have
// no companions to inspect, so the probability is null.
func (d *CompanionDetector) Detect(_ context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("companion_lookup", in.HasCompanions())
	if !in.HasCompanions() {
		return res, nil
	}
	data, ok, err := in.LookupCompanion(d.suffix)
	if err != nil {
		return res, err
	}
	res.Stats.Set("exists", ok)
	res.Stats.Set("size", len(data))
	p := 0.0
	if ok {
		p = 1
	}
	res.Probability = models.Prob(p)
	return res, nil
}
