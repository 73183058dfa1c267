package video

import (
	"context"

	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
	"StegLab/pkg/transform"
)

// FrameLSBDetector measures LSB bias over all frame bytes and how much the
// per-frame ones ratio varies between frames
type FrameLSBDetector struct {
	carrier.BaseMethod
}

// NewFrameLSBDetector creates the frame-lsb detector
func NewFrameLSBDetector() *FrameLSBDetector {
	return &FrameLSBDetector{carrier.NewBaseMethod("frame-lsb", "Frame LSB bias", "LSB ones ratio across frames and its per-frame variance")}
}

// Detect implements carrier.Detector
func (d *FrameLSBDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	s, err := Decode(ctx, in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	limit := carrier.LimitsFrom(ctx).SampleSize

	var bits []uint8
	var ratios []float64
	for _, f := range s.Frames {
		if limit > 0 && len(bits) >= limit {
			break
		}
		ones := 0
		for _, v := range f {
			bits = append(bits, v&1)
			ones += int(v & 1)
		}
		if len(f) > 0 {
			ratios = append(ratios, float64(ones)/float64(len(f)))
		}
	}
	bias := stats.Bias(bits, limit)

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("frames", len(s.Frames))
	res.Stats.Set("samples", bias.Samples)
	res.Stats.Set("ones_ratio", stats.Round(bias.OnesRatio, 6))
	res.Stats.Set("chi_square", stats.Round(bias.ChiSquare, 6))
	res.Stats.Set("frame_ratio_variance", stats.Round(stats.Variance(ratios), 8))
	if bias.Samples > 0 {
		res.Probability = models.Prob(bias.Probability())
	}
	return res, nil
}

// DWTDetector measures how tightly 2x2 luma block sums sit on the haar-ll lattice
type DWTDetector struct {
	carrier.BaseMethod
}

// NewDWTDetector creates the dwt detector
func NewDWTDetector() *DWTDetector {
	return &DWTDetector{carrier.NewBaseMethod("dwt", "Haar LL lattice", "Concentration of LL coefficients on the quantization lattice")}
}

// Defaults returns the default options
func (d *DWTDetector) Defaults() any { return &HaarOptions{Step: 8} }

// Detect implements carrier.Detector
func (d *DWTDetector) Detect(ctx context.Context, in carrier.Input, opts any) (models.DetectionResult, error) {
	step := opts.(*HaarOptions).Step
	s, err := Decode(ctx, in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	per := blocksPerFrame(s)
	total := len(s.Frames) * per
	if limit := carrier.LimitsFrom(ctx).SampleSize; limit > 0 && total*4 > limit {
		total = limit / 4
	}

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("blocks", total)
	if total == 0 {
		return res, nil
	}

	delta := float64(2 * step)
	residuals := make([]float64, 0, total)
	for i := 0; i < total; i++ {
		sum, _ := blockSum(s, s.Frames[i/per], i%per)
		residuals = append(residuals, transform.QIMResidual(float64(sum), delta))
	}
	mean := stats.Mean(residuals)
	res.Stats.Set("lattice_residual", stats.Round(mean, 6))
	res.Stats.Set("residual_variance", stats.Round(stats.Variance(residuals), 6))
	res.Probability = models.Prob(stats.Clamp01((0.25 - mean) / 0.25))
	return res, nil
}
