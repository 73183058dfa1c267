package network

import (
	"context"

	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// HeaderDetector tests IPv4 identification parity against a fair coin
type HeaderDetector struct {
	carrier.BaseMethod
}

// NewHeaderDetector creates the header detector
func NewHeaderDetector() *HeaderDetector {
	return &HeaderDetector{carrier.NewBaseMethod("header", "IP ID parity", "Parity bias and transition rate of IPv4 identification fields")}
}

// Detect implements carrier.Detector
func (d *HeaderDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	c, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	refs := ipv4Refs(c)
	bits := make([]uint8, len(refs))
	for i, ref := range refs {
		bits[i] = c.Packets[ref.pkt].Data[ref.start+5] & 1
	}
	bias := stats.Bias(bits, carrier.LimitsFrom(ctx).SampleSize)

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("ipv4_packets", len(refs))
	res.Stats.Set("ones_ratio", stats.Round(bias.OnesRatio, 6))
	res.Stats.Set("transitions", stats.Round(bias.Transitions, 6))
	if bias.Samples > 0 {
		res.Probability = models.Prob(bias.Probability())
	}
	return res, nil
}

// TimingDetector looks for gaps that collapse onto two levels. It splits gaps at
// their mean and reports how much of the variance the two-level split explains.
type TimingDetector struct {
	carrier.BaseMethod
}

// NewTimingDetector creates the timing detector
func NewTimingDetector() *TimingDetector {
	return &TimingDetector{carrier.NewBaseMethod("timing", "Gap regularity", "Inter-packet gap variance and two-level clustering")}
}

// Detect implements carrier.Detector
func (d *TimingDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	c, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	g := gaps(c)
	if n := carrier.LimitsFrom(ctx).SampleSize; n > 0 && len(g) > n {
		g = g[:n]
	}

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("gaps", len(g))
	if len(g) < 2 {
		return res, nil
	}
	mean := stats.Mean(g)
	total := stats.Variance(g)
	res.Stats.Set("mean_gap", stats.Round(mean, 9))
	res.Stats.Set("variance", stats.Round(total, 12))
	if total == 0 {
		res.Probability = models.Prob(0)
		return res, nil
	}

	var lo, hi []float64
	for _, v := range g {
		if v > mean {
			hi = append(hi, v)
		} else {
			lo = append(lo, v)
		}
	}
	within := (stats.Variance(lo)*float64(len(lo)) + stats.Variance(hi)*float64(len(hi))) / float64(len(g))
	explained := stats.Clamp01(1 - within/total)
	res.Stats.Set("explained", stats.Round(explained, 6))
	res.Probability = models.Prob(explained)
	return res, nil
}
