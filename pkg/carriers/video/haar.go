package video

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/transform"
)

// HaarOptions tunes haar-ll
type HaarOptions struct {
	// Step is the quantization step of the LL coefficient (half the 2x2 block sum)
	Step int `json:"step" validate:"gte=2,lte=64"`
}

// Haar quantizes the LL coefficient of a one-level Haar transform of the Y plane.
// LL of a 2x2 block is half its pixel sum, so the sum is quantized with twice the step.
type Haar struct {
	carrier.BaseMethod
}

// NewHaar creates the haar-ll method
func NewHaar() *Haar {
	return &Haar{carrier.NewBaseMethod("haar-ll", "Haar LL", "Quantization of the Haar LL coefficient of each 2x2 luma block")}
}

// Defaults returns the default options
func (m *Haar) Defaults() any { return &HaarOptions{Step: 8} }

func blocksPerFrame(s *Stream) int { return (s.Width / 2) * (s.Height / 2) }

// blockSum returns the pixel sum of 2x2 luma block b of frame f and the four offsets
func blockSum(s *Stream, f []byte, b int) (int, [4]int) {
	bw := s.Width / 2
	x, y := (b%bw)*2, (b/bw)*2
	offs := [4]int{y*s.Width + x, y*s.Width + x + 1, (y+1)*s.Width + x, (y+1)*s.Width + x + 1}
	sum := 0
	for _, o := range offs {
		sum += int(f[o])
	}
	return sum, offs
}

// Capacity returns frames * (W/2) * (H/2)
func (m *Haar) Capacity(ctx context.Context, cover []byte, _ any) (int, error) {
	s, err := Decode(ctx, cover)
	if err != nil {
		return 0, err
	}
	return len(s.Frames) * blocksPerFrame(s), nil
}

// Embed moves each block sum onto the lattice point of the bit's parity and
// spreads the change over the block's four pixels
func (m *Haar) Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	step := opts.(*HaarOptions).Step
	orig, err := Decode(ctx, cover)
	if err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()
	per := blocksPerFrame(stego)
	delta := float64(2 * step)

	for i, b := range bits {
		if i%per == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		f := stego.Frames[i/per]
		sum, offs := blockSum(stego, f, i%per)
		target := int(transform.QIMEmbed(float64(sum), delta, b))
		// keep the target reachable by four 8-bit pixels
		for target > 4*255 {
			target -= 2 * int(delta)
		}
		for target < 0 {
			target += 2 * int(delta)
		}
		spread(f, offs, target-sum)
	}

	metrics := videoMetrics(len(bits), len(orig.Frames)*per, orig, stego)
	metrics.Set("step", step)
	return output(stego), metrics, nil
}

// spread adds d to the four pixels as evenly as their [0,255] range allows
func spread(f []byte, offs [4]int, d int) {
	for d != 0 {
		moved := false
		for _, o := range offs {
			if d == 0 {
				break
			}
			switch {
			case d > 0 && f[o] < 255:
				f[o]++
				d--
				moved = true
			case d < 0 && f[o] > 0:
				f[o]--
				d++
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// Bits reads the parity of each quantized block sum
func (m *Haar) Bits(ctx context.Context, in carrier.Input, opts any) (bitstream.Source, int, models.Metrics, error) {
	step := opts.(*HaarOptions).Step
	s, err := Decode(ctx, in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	per := blocksPerFrame(s)
	delta := float64(2 * step)
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		sum, _ := blockSum(s, s.Frames[i/per], i%per)
		return transform.QIMExtract(float64(sum), delta), nil
	})
	meta := streamMeta(s)
	meta.Set("step", step)
	return src, len(s.Frames) * per, meta, nil
}
