package video

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// FrameLSB replaces the LSB of every frame byte, all planes, frame then byte order
type FrameLSB struct {
	carrier.BaseMethod
}

// NewFrameLSB creates the frame-rgb-lsb method
func NewFrameLSB() *FrameLSB {
	return &FrameLSB{carrier.NewBaseMethod("frame-rgb-lsb", "Frame LSB", "Least significant bit of every frame byte across all planes")}
}

// Capacity returns the total frame byte count
func (m *FrameLSB) Capacity(ctx context.Context, cover []byte, _ any) (int, error) {
	s, err := Decode(ctx, cover)
	if err != nil {
		return 0, err
	}
	return s.Bytes(), nil
}

// Embed writes bits into frame byte LSBs
func (m *FrameLSB) Embed(ctx context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	orig, err := Decode(ctx, cover)
	if err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()

	i := 0
	for _, f := range stego.Frames {
		if i >= len(bits) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for j := range f {
			if i >= len(bits) {
				break
			}
			f[j] = f[j]&^1 | bits[i]&1
			i++
		}
	}
	return output(stego), videoMetrics(len(bits), orig.Bytes(), orig, stego), nil
}

// Bits reads frame byte LSBs
func (m *FrameLSB) Bits(ctx context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	s, err := Decode(ctx, in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	size, _ := s.FrameSize()
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		return s.Frames[i/size][i%size] & 1, nil
	})
	return src, s.Bytes(), streamMeta(s), nil
}

func streamMeta(s *Stream) models.Metrics {
	var meta models.Metrics
	meta.Set("frames", len(s.Frames))
	meta.Set("width", s.Width)
	meta.Set("height", s.Height)
	return meta
}

func videoMetrics(bits, capacity int, orig, stego *Stream) models.Metrics {
	var m models.Metrics
	m.Set("bits_embedded", bits)
	m.Set("capacity_bits", capacity)
	if capacity > 0 {
		m.Set("utilization", stats.Round(float64(bits)/float64(capacity), 6))
	}
	m.Set("frames", len(orig.Frames))

	var sum float64
	n := 0
	for k := range orig.Frames {
		for j, v := range orig.Frames[k] {
			d := float64(v) - float64(stego.Frames[k][j])
			sum += d * d
		}
		n += len(orig.Frames[k])
	}
	if n > 0 {
		mse := sum / float64(n)
		m.Set("mse", stats.Round(mse, 6))
		if mse > 0 {
			m.Set("psnr", stats.Round(stats.PSNRFromMSE(mse), 4))
		}
	}
	return m
}
