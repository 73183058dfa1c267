package audio

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// LSB replaces the least significant bit of each 16-bit sample in interleaved order
type LSB struct {
	carrier.BaseMethod
}

// NewLSB creates the pcm-lsb method
func NewLSB() *LSB {
	return &LSB{carrier.NewBaseMethod("pcm-lsb", "PCM LSB", "Least significant bit of every 16-bit sample, channels interleaved")}
}

// Capacity returns the total sample count
func (m *LSB) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	p, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	return len(p.Samples), nil
}

// Embed writes bits into sample LSBs
func (m *LSB) Embed(ctx context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()
	for i, b := range bits {
		stego.Samples[i] = stego.Samples[i]&^1 | int(b&1)
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	return out, audioMetrics(len(bits), len(orig.Samples), orig, stego), nil
}

// Bits reads sample LSBs
func (m *LSB) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	p, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	var meta models.Metrics
	meta.Set("sample_rate", p.SampleRate)
	meta.Set("channels", p.Channels)
	return bitstream.SourceFunc(func(i int) (uint8, error) {
		return uint8(p.Samples[i] & 1), nil
	}), len(p.Samples), meta, nil
}

func audioMetrics(bits, capacity int, orig, stego *PCM) models.Metrics {
	var m models.Metrics
	m.Set("bits_embedded", bits)
	m.Set("capacity_bits", capacity)
	if capacity > 0 {
		m.Set("utilization", stats.Round(float64(bits)/float64(capacity), 6))
	}
	if snr := stats.SNR(orig.Samples, stego.Samples); stats.Finite(snr) {
		m.Set("snr_db", stats.Round(snr, 4))
	}
	return m
}
