package text

import (
	"context"

	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

func isZeroWidth(r rune) bool {
	switch r {
	case zeroBit, oneBit, frameBeg, frameEnd, '\u200D':
		return true
	}
	return false
}

// ZeroWidthDetector scores the density of zero-width characters
type ZeroWidthDetector struct {
	carrier.BaseMethod
}

// NewZeroWidthDetector creates the zero-width detector
func NewZeroWidthDetector() *ZeroWidthDetector {
	return &ZeroWidthDetector{carrier.NewBaseMethod("zero-width", "Zero-width density", "Share of zero-width runes and their transitions")}
}

// Detect implements carrier.Detector
func (d *ZeroWidthDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	s, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	limit := carrier.LimitsFrom(ctx).SampleSize

	total, hidden, transitions := 0, 0, 0
	prev := false
	for _, r := range s {
		if limit > 0 && total >= limit {
			break
		}
		zw := isZeroWidth(r)
		if zw {
			hidden++
		}
		if total > 0 && zw != prev {
			transitions++
		}
		prev = zw
		total++
	}

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("runes", total)
	res.Stats.Set("zero_width", hidden)
	res.Stats.Set("transitions", transitions)
	if total == 0 {
		return res, nil
	}
	ratio := float64(hidden) / float64(total)
	res.Stats.Set("ratio", stats.Round(ratio, 6))
	res.Probability = models.Prob(stats.Clamp01(ratio * 200))
	return res, nil
}

// WhitespaceDetector scores the share of lines ending in a two-character gap
type WhitespaceDetector struct {
	carrier.BaseMethod
}

// NewWhitespaceDetector creates the whitespace detector
func NewWhitespaceDetector() *WhitespaceDetector {
	return &WhitespaceDetector{carrier.NewBaseMethod("whitespace", "Trailing whitespace", "Share of lines ending in a space-space or space-tab gap")}
}

// Detect implements carrier.Detector
func (d *WhitespaceDetector) Detect(_ context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	s, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	ls, _ := lines(s)

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("lines", len(ls))
	if len(ls) == 0 {
		return res, nil
	}
	marked, tabs := 0, 0
	for _, l := range ls {
		if b, ok := gapBit(l); ok {
			marked++
			tabs += int(b)
		}
	}
	ratio := float64(marked) / float64(len(ls))
	res.Stats.Set("marked_lines", marked)
	res.Stats.Set("tab_gaps", tabs)
	res.Stats.Set("ratio", stats.Round(ratio, 6))
	res.Probability = models.Prob(stats.Clamp01(ratio * 5))
	return res, nil
}
