package image

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// LSB hides one bit in the least significant bit of each R, G and B sample,
// scanning pixels row-major. Alpha is never touched.
type LSB struct {
	carrier.BaseMethod
}

// NewLSB creates the rgb-lsb method
func NewLSB() *LSB {
	return &LSB{
		BaseMethod: carrier.NewBaseMethod("rgb-lsb", "RGB LSB",
			"Sequential least significant bit replacement over R,G,B channels in row-major order"),
	}
}

// Capacity returns width*height*3
func (m *LSB) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	r, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	return r.Width() * r.Height() * 3, nil
}

// Embed writes bits into the RGB LSB plane
func (m *LSB) Embed(ctx context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()
	pix := stego.Img.Pix

	for i, b := range bits {
		if i%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		off := stego.RGBOffset(i)
		pix[off] = pix[off]&^1 | b&1
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	capacity := orig.Width() * orig.Height() * 3
	return out, qualityMetrics(len(bits), capacity, orig, stego), nil
}

// Bits reads the RGB LSB plane
func (m *LSB) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	r, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	pix := r.Img.Pix
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		return pix[r.RGBOffset(i)] & 1, nil
	})

	var meta models.Metrics
	meta.Set("width", r.Width())
	meta.Set("height", r.Height())
	return src, r.Width() * r.Height() * 3, meta, nil
}

func qualityMetrics(bits, capacity int, orig, stego *Raster) models.Metrics {
	var m models.Metrics
	m.Set("bits_embedded", bits)
	m.Set("capacity_bits", capacity)
	if capacity > 0 {
		m.Set("utilization", stats.Round(float64(bits)/float64(capacity), 6))
	}
	psnr, mse := stats.PSNR(orig.RGB(), stego.RGB())
	m.Set("mse", stats.Round(mse, 6))
	if stats.Finite(psnr) {
		m.Set("psnr", stats.Round(psnr, 4))
	}
	if ssim := orig.SSIM(stego); stats.Finite(ssim) {
		m.Set("ssim", stats.Round(ssim, 6))
	}
	return m
}
