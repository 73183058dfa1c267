package engine

import (
	"context"
	"time"

	"StegLab/pkg/carrier"
	"StegLab/pkg/logger"
	"StegLab/pkg/models"

	"golang.org/x/sync/errgroup"
)

// Detect runs every detector registered for the carrier and returns one result
// per detector in registration order
func (e *Engine) Detect(ctx context.Context, req DetectRequest) (*models.DetectReport, error) {
	ctx = e.begin(ctx)
	start := time.Now()
	report, err := e.detect(ctx, req)
	e.metrics.RecordOperation("detect", req.Carrier, "", err, time.Since(start))

	log := logger.C(ctx)
	if err != nil {
		log.Warn().Err(err).
			Str("op", "detect").
			Str("carrier", req.Carrier).
			Str("handle", req.Handle).
			Msg("detect failed")
		return nil, withOp(err, "detect")
	}
	report.Duration = time.Since(start)

	ev := log.Info().
		Str("op", "detect").
		Str("carrier", req.Carrier).
		Int("detectors", len(report.Detections)).
		Dur("duration", report.Duration)
	if best, ok := report.Highest(); ok {
		ev = ev.Str("top_detector", best.Detector).Float64("top_probability", *best.Probability)
	}
	ev.Msg("detect complete")
	return report, nil
}

func (e *Engine) detect(ctx context.Context, req DetectRequest) (*models.DetectReport, error) {
	c, err := e.enabled(req.Carrier)
	if err != nil {
		return nil, err
	}
	if req.Handle == "" {
		if err := e.checkInput(len(req.Data)); err != nil {
			return nil, err
		}
	}

	detectors := c.Detectors()
	opts := make([]any, len(detectors))
	for i, d := range detectors {
		if opts[i], err = carrier.DecodeOptions(d, req.Options[d.Name()]); err != nil {
			return nil, err
		}
	}

	in, err := e.input(ctx, req.Data, req.Handle)
	if err != nil {
		return nil, err
	}
	if err := e.checkInput(len(in.Data)); err != nil {
		return nil, err
	}

	results := make([]models.DetectionResult, len(detectors))
	run := func(ctx context.Context, i int) error {
		res, err := detectors[i].Detect(ctx, in, opts[i])
		if err != nil {
			return err
		}
		if res.Detector == "" {
			res.Detector = detectors[i].Name()
		}
		results[i] = res
		return nil
	}

	if e.cfg.Detection.RunParallel() {
		g, gctx := errgroup.WithContext(ctx)
		for i := range detectors {
			i := i
			g.Go(func() error { return run(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range detectors {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range results {
		e.metrics.RecordDetection(req.Carrier, r.Detector, r.Probability)
	}
	return &models.DetectReport{Carrier: req.Carrier, Detections: results}, nil
}
