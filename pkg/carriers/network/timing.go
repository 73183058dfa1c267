package network

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/models"
)

// GapOptions tunes inter-packet-gap; both values are in seconds
type GapOptions struct {
	BaseGap float64 `json:"base_gap" validate:"gt=0,lte=60"`
	Delta   float64 `json:"delta" validate:"gt=0"`
}

func (o *GapOptions) check() error {
	if o.Delta >= o.BaseGap {
		return perr.WithField(perr.InvalidOptionsf("delta (%g) must be smaller than base_gap (%g)", o.Delta, o.BaseGap), "delta")
	}
	// timestamps are written with microsecond resolution
	if o.Delta < 2e-6 {
		return perr.WithField(perr.InvalidOptionsf("delta (%g) is below the capture timestamp resolution", o.Delta), "delta")
	}
	return nil
}

// Gap re-times the capture so each gap is base_gap+delta for 1 and base_gap-delta for 0.
// Gaps past the payload are set to base_gap.
type Gap struct {
	carrier.BaseMethod
}

// NewGap creates the inter-packet-gap method
func NewGap() *Gap {
	return &Gap{carrier.NewBaseMethod("inter-packet-gap", "Inter-packet gap", "Packet timestamps re-spaced to encode one bit per gap")}
}

// Defaults returns the default options
func (m *Gap) Defaults() any { return &GapOptions{BaseGap: 0.01, Delta: 0.002} }

// Capacity returns packets-1
func (m *Gap) Capacity(_ context.Context, cover []byte, opts any) (int, error) {
	if err := opts.(*GapOptions).check(); err != nil {
		return 0, err
	}
	c, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	return max(0, len(c.Packets)-1), nil
}

// Embed rewrites every timestamp after the first
func (m *Gap) Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	o := opts.(*GapOptions)
	if err := o.check(); err != nil {
		return nil, nil, err
	}
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()

	if len(stego.Packets) > 0 {
		t := stego.Packets[0].Info.Timestamp
		for i := 1; i < len(stego.Packets); i++ {
			gap := o.BaseGap
			if k := i - 1; k < len(bits) {
				if bits[k]&1 == 1 {
					gap += o.Delta
				} else {
					gap -= o.Delta
				}
			}
			t = t.Add(seconds(gap))
			stego.Packets[i].Info.Timestamp = t
		}
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	capacity := max(0, len(orig.Packets)-1)
	var metrics models.Metrics
	metrics.Set("bits_embedded", len(bits))
	metrics.Set("capacity_bits", capacity)
	if capacity > 0 {
		metrics.Set("utilization", float64(len(bits))/float64(capacity))
	}
	metrics.Set("packets", len(orig.Packets))
	metrics.Set("base_gap", o.BaseGap)
	metrics.Set("delta", o.Delta)
	return out, metrics, nil
}

// Bits reads gap > base_gap as 1
func (m *Gap) Bits(_ context.Context, in carrier.Input, opts any) (bitstream.Source, int, models.Metrics, error) {
	o := opts.(*GapOptions)
	if err := o.check(); err != nil {
		return nil, 0, nil, err
	}
	c, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	g := gaps(c)
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		if g[i] > o.BaseGap {
			return 1, nil
		}
		return 0, nil
	})
	var meta models.Metrics
	meta.Set("packets", len(c.Packets))
	meta.Set("base_gap", o.BaseGap)
	return src, len(g), meta, nil
}
