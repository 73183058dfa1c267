package audio

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
)

// EchoOptions tunes echo-binary. Zero delays and frame size are derived from
// the sample rate: 2ms, 4ms and 100ms.
type EchoOptions struct {
	DelayShort int     `json:"delay_short" validate:"omitempty,gte=1,lte=8192"`
	DelayLong  int     `json:"delay_long" validate:"omitempty,gte=1,lte=8192"`
	Decay      float64 `json:"decay" validate:"gt=0,lt=1"`
	FrameSize  int     `json:"frame_size" validate:"omitempty,gte=64"`
}

type echoParams struct {
	short, long, frame int
	decay              float64
}

func (o *EchoOptions) resolve(sampleRate int) (echoParams, error) {
	p := echoParams{short: o.DelayShort, long: o.DelayLong, frame: o.FrameSize, decay: o.Decay}
	if p.short == 0 {
		p.short = max(1, int(0.002*float64(sampleRate)))
	}
	if p.long == 0 {
		p.long = max(p.short+1, int(0.004*float64(sampleRate)))
	}
	if p.frame == 0 {
		p.frame = max(64, sampleRate/10)
	}
	if p.long <= p.short {
		return p, perr.WithField(perr.InvalidOptionsf("delay_long (%d) must exceed delay_short (%d)", p.long, p.short), "delay_long")
	}
	if p.long >= p.frame {
		return p, perr.WithField(perr.InvalidOptionsf("frame_size (%d) must exceed delay_long (%d)", p.frame, p.long), "frame_size")
	}
	return p, nil
}

// Echo hides one bit per frame as an echo at one of two delays. The echo of a
// frame is built from that frame's own samples only, so frames stay independent.
type Echo struct {
	carrier.BaseMethod
}

// NewEcho creates the echo-binary method
func NewEcho() *Echo {
	return &Echo{carrier.NewBaseMethod("echo-binary", "Echo hiding", "Per-frame echo at a short (0) or long (1) delay")}
}

// Defaults returns the default options
func (m *Echo) Defaults() any { return &EchoOptions{Decay: 0.5} }

// Capacity returns frames per channel / frame_size
func (m *Echo) Capacity(_ context.Context, cover []byte, opts any) (int, error) {
	pcm, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	p, err := opts.(*EchoOptions).resolve(pcm.SampleRate)
	if err != nil {
		return 0, err
	}
	return pcm.Frames() / p.frame, nil
}

// Embed adds the echoes to every channel
func (m *Echo) Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	p, err := opts.(*EchoOptions).resolve(orig.SampleRate)
	if err != nil {
		return nil, nil, err
	}

	stego := orig.Clone()
	nch := orig.Channels
	for k, b := range bits {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		delay := p.short
		if b == 1 {
			delay = p.long
		}
		start := k * p.frame
		for ch := 0; ch < nch; ch++ {
			for n := start + delay; n < start+p.frame; n++ {
				v := float64(orig.Samples[n*nch+ch]) + p.decay*float64(orig.Samples[(n-delay)*nch+ch])
				stego.Samples[n*nch+ch] = clamp16(v)
			}
		}
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	metrics := audioMetrics(len(bits), orig.Frames()/p.frame, orig, stego)
	metrics.Set("delay_short", p.short)
	metrics.Set("delay_long", p.long)
	metrics.Set("decay", p.decay)
	metrics.Set("frame_size", p.frame)
	return out, metrics, nil
}

// Bits decides each frame by comparing its autocorrelation at the two delays on channel 0
func (m *Echo) Bits(_ context.Context, in carrier.Input, opts any) (bitstream.Source, int, models.Metrics, error) {
	pcm, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	p, err := opts.(*EchoOptions).resolve(pcm.SampleRate)
	if err != nil {
		return nil, 0, nil, err
	}
	samples := pcm.Channel(0)

	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		frame := samples[i*p.frame : (i+1)*p.frame]
		if autocorr(frame, p.long) > autocorr(frame, p.short) {
			return 1, nil
		}
		return 0, nil
	})

	var meta models.Metrics
	meta.Set("delay_short", p.short)
	meta.Set("delay_long", p.long)
	meta.Set("frame_size", p.frame)
	return src, len(samples) / p.frame, meta, nil
}

// autocorr returns sum(x[n]*x[n-lag]) over the frame
func autocorr(x []float64, lag int) float64 {
	var s float64
	for n := lag; n < len(x); n++ {
		s += x[n] * x[n-lag]
	}
	return s
}

func energy(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s
}

// EchoDetectOptions tunes the echo detector
type EchoDetectOptions struct {
	DelayLong int `json:"delay_long" validate:"omitempty,gte=1,lte=8192"`
	FrameSize int `json:"frame_size" validate:"omitempty,gte=64"`
}

// EchoDetector scores the normalized autocorrelation at the long delay per frame
type EchoDetector struct {
	carrier.BaseMethod
}

// NewEchoDetector creates the echo detector
func NewEchoDetector() *EchoDetector {
	return &EchoDetector{carrier.NewBaseMethod("echo", "Echo autocorrelation", "Mean normalized autocorrelation at delay_long per frame")}
}

// Defaults returns the default options
func (d *EchoDetector) Defaults() any { return &EchoDetectOptions{} }

// Detect implements carrier.Detector
func (d *EchoDetector) Detect(ctx context.Context, in carrier.Input, opts any) (models.DetectionResult, error) {
	pcm, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	o := opts.(*EchoDetectOptions)
	eo := EchoOptions{DelayLong: o.DelayLong, FrameSize: o.FrameSize}
	p, err := eo.resolve(pcm.SampleRate)
	if err != nil {
		return models.DetectionResult{}, err
	}

	samples := pcm.Channel(0)
	if n := carrier.LimitsFrom(ctx).SampleSize; n > 0 && len(samples) > n {
		samples = samples[:n]
	}
	frames := len(samples) / p.frame

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("frames", frames)
	res.Stats.Set("delay_long", p.long)
	if frames == 0 {
		return res, nil
	}

	scores := make([]float64, 0, frames)
	for k := 0; k < frames; k++ {
		frame := samples[k*p.frame : (k+1)*p.frame]
		scores = append(scores, autocorr(frame, p.long)/(energy(frame)+1e-9))
	}
	mean := stats.Mean(scores)
	res.Stats.Set("mean_score", stats.Round(mean, 6))
	res.Stats.Set("score_variance", stats.Round(stats.Variance(scores), 6))
	res.Probability = models.Prob(stats.Clamp01(mean * 10))
	return res, nil
}
