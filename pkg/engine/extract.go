package engine

import (
	"context"
	"time"
	"unicode/utf8"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/filehandler"
	"StegLab/pkg/logger"
	"StegLab/pkg/models"
)

// Extract reads a packed payload from the input. A missing or unreadable header
// is a normal result with status absent, never an error.
func (e *Engine) Extract(ctx context.Context, req ExtractRequest) (*models.ExtractResult, error) {
	ctx = e.begin(ctx)
	start := time.Now()
	res, err := e.extract(ctx, req)
	e.metrics.RecordOperation("extract", req.Carrier, req.Method, err, time.Since(start))

	log := logger.C(ctx)
	if err != nil {
		log.Warn().Err(err).
			Str("op", "extract").
			Str("carrier", req.Carrier).
			Str("method", req.Method).
			Str("handle", req.Handle).
			Msg("extract failed")
		return nil, withOp(err, "extract")
	}
	res.Duration = time.Since(start)
	ev := log.Info().
		Str("op", "extract").
		Str("carrier", req.Carrier).
		Str("method", req.Method).
		Str("status", res.Status).
		Int("payload_bytes", res.PayloadBytes).
		Dur("duration", res.Duration)
	if res.Artifact != nil {
		ev = ev.Str("handle", res.Artifact.Handle)
	}
	ev.Msg("extract complete")
	return res, nil
}

func (e *Engine) extract(ctx context.Context, req ExtractRequest) (*models.ExtractResult, error) {
	if _, err := e.enabled(req.Carrier); err != nil {
		return nil, err
	}
	if req.Handle == "" {
		if err := e.checkInput(len(req.Data)); err != nil {
			return nil, err
		}
	}
	// method and options are settled before a handle is touched
	plan, err := e.registry.Negotiate(ctx, carrier.Request{
		Carrier: req.Carrier,
		Method:  req.Method,
		Role:    carrier.RoleExtract,
		Options: req.Options,
	})
	if err != nil {
		return nil, err
	}
	in, err := e.input(ctx, req.Data, req.Handle)
	if err != nil {
		return nil, err
	}
	if err := e.checkInput(len(in.Data)); err != nil {
		return nil, err
	}

	res := &models.ExtractResult{Carrier: req.Carrier, Method: req.Method, Status: models.StatusAbsent}
	src, n, meta, err := plan.Extractor.Bits(ctx, in, plan.Options)
	if perr.IsKind(err, perr.KindCorruptOrAbsent) {
		res.Metadata.Set("status", res.Status)
		res.Metadata.Set("payload_bytes", 0)
		res.Metadata.Set("reason", err.Error())
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := bitstream.Unpack(src, n, req.Passphrase)
	if err != nil && !perr.IsKind(err, perr.KindCorruptOrAbsent) {
		return nil, err
	}
	if err == nil && len(payload) == 0 {
		// a zero header is what a cleared or untouched bit plane reads as
		err = perr.CorruptOrAbsentf("header declares an empty payload")
	}
	found := err == nil
	if found {
		res.Status = models.StatusFound
		res.PayloadBytes = len(payload)
		res.Payload = payload
	}

	res.Metadata.Set("status", res.Status)
	res.Metadata.Set("payload_bytes", res.PayloadBytes)
	res.Metadata.Set("capacity_bits", n)
	for _, kv := range meta {
		res.Metadata.Set(kv.Key, kv.Value)
	}
	if !found {
		res.Metadata.Set("reason", err.Error())
		return res, nil
	}
	if utf8.Valid(payload) {
		res.Metadata.Set("payload_text", string(payload))
	}

	ct := filehandler.SniffContentType(payload)
	a, err := e.store.Put(ctx, payload, "payload"+filehandler.ExtensionFor(ct), ct, nil)
	if err != nil {
		return nil, err
	}
	e.metrics.ArtifactsStored.Inc()
	ref := a.Ref()
	res.Artifact = &ref
	return res, nil
}
