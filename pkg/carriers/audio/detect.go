package audio

import (
	"context"

	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// LSBDetector tests sample parity against a fair coin
type LSBDetector struct {
	carrier.BaseMethod
}

// NewLSBDetector creates the audio lsb detector
func NewLSBDetector() *LSBDetector {
	return &LSBDetector{carrier.NewBaseMethod("lsb", "Parity bias", "Chi-square deviation of sample parity from a 0.5 ratio")}
}

// Detect implements carrier.Detector
func (d *LSBDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	pcm, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	bits := make([]uint8, len(pcm.Samples))
	for i, s := range pcm.Samples {
		bits[i] = uint8(s & 1)
	}
	bias := stats.Bias(bits, carrier.LimitsFrom(ctx).SampleSize)

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("samples", bias.Samples)
	res.Stats.Set("ones_ratio", stats.Round(bias.OnesRatio, 6))
	res.Stats.Set("chi_square", stats.Round(bias.ChiSquare, 6))
	res.Stats.Set("transitions", stats.Round(bias.Transitions, 6))
	if bias.Samples > 0 {
		res.Probability = models.Prob(bias.Probability())
	}
	return res, nil
}
