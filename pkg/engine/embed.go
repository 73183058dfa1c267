package engine

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/logger"
	"StegLab/pkg/models"
)

// Embed negotiates the request, writes the packed payload into the cover and
// stores the stego output
func (e *Engine) Embed(ctx context.Context, req EmbedRequest) (*models.EmbedResult, error) {
	ctx = e.begin(ctx)
	start := time.Now()
	res, err := e.embed(ctx, req)
	e.metrics.RecordOperation("embed", req.Carrier, req.Method, err, time.Since(start))

	log := logger.C(ctx)
	if err != nil {
		log.Warn().Err(err).
			Str("op", "embed").
			Str("carrier", req.Carrier).
			Str("method", req.Method).
			Int("payload_bytes", len(req.Payload)).
			Msg("embed failed")
		return nil, withOp(err, "embed")
	}
	res.Duration = time.Since(start)
	bits, _ := res.Metrics.Float("bits_embedded")
	log.Info().
		Str("op", "embed").
		Str("carrier", req.Carrier).
		Str("method", req.Method).
		Int("bits", int(bits)).
		Str("handle", res.Artifact.Handle).
		Dur("duration", res.Duration).
		Msg("embed complete")
	return res, nil
}

func (e *Engine) embed(ctx context.Context, req EmbedRequest) (*models.EmbedResult, error) {
	if _, err := e.admit(req.Carrier, len(req.Cover)); err != nil {
		return nil, err
	}
	plan, err := e.registry.Negotiate(ctx, carrier.Request{
		Carrier:         req.Carrier,
		Method:          req.Method,
		Role:            carrier.RoleEmbed,
		Options:         req.Options,
		Cover:           req.Cover,
		PayloadBytes:    len(req.Payload),
		MaxPayloadBytes: e.cfg.Limits.MaxPayloadBytes(),
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bits := bitstream.Pack(req.Payload, req.Passphrase)
	out, metrics, err := plan.Embedder.Embed(ctx, req.Cover, bits, plan.Options)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := metrics.Get("bits_embedded"); !ok {
		metrics.Set("bits_embedded", len(bits))
	}

	a, err := e.store.Put(ctx, out.Data, stegoName(req.Filename, req.Method, out.Ext), out.ContentType, out.Companions)
	if err != nil {
		return nil, err
	}
	e.metrics.ArtifactsStored.Inc()
	e.metrics.BitsEmbedded.WithLabelValues(req.Carrier, req.Method).Add(float64(len(bits)))

	return &models.EmbedResult{
		Carrier:  req.Carrier,
		Method:   req.Method,
		Metrics:  metrics,
		Artifact: a.Ref(),
	}, nil
}

// stegoName derives the artifact file name from the cover name, keeping the
// stem and using the extension of the produced format
func stegoName(cover, method, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(cover), filepath.Ext(cover))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "cover"
	}
	return stem + "." + method + ext
}
