package carrier

import (
	"context"

	"StegLab/pkg/bitstream"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/options"
)

// Request is a capability negotiation input
type Request struct {
	Carrier string
	Method  string
	Role    Role
	Options options.Map
	// Cover is the carrier bytes; only read by the embed capacity check
	Cover []byte
	// PayloadBytes is the payload length for embed
	PayloadBytes int
	// MaxPayloadBytes is a configured ceiling; 0 disables it
	MaxPayloadBytes int64
}

// Plan is a validated request ready for dispatch
type Plan struct {
	Carrier   *Carrier
	Method    Method
	Options   any
	Capacity  int
	Required  int
	Embedder  Embedder
	Extractor Extractor
}

// Negotiate validates a request against the registry. Checks run in order:
// carrier, method, options, then (for embed) capacity. Nothing is written and the
// cover is only parsed for its capacity, so the call is idempotent.
func (r *Registry) Negotiate(ctx context.Context, req Request) (*Plan, error) {
	if req.Role == RoleDetect {
		return nil, perr.InvalidOptionsf("detect requests are not negotiated per method")
	}

	m, err := r.Resolve(req.Carrier, req.Method, req.Role)
	if err != nil {
		return nil, err
	}
	c, _ := r.Lookup(req.Carrier)

	opts, err := DecodeOptions(m, req.Options)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Carrier: c, Method: m, Options: opts}
	switch req.Role {
	case RoleExtract:
		plan.Extractor = m.(Extractor)
		return plan, nil
	case RoleEmbed:
		plan.Embedder = m.(Embedder)
	}

	plan.Required = bitstream.EncodedBits(req.PayloadBytes)
	if req.MaxPayloadBytes > 0 && int64(req.PayloadBytes) > req.MaxPayloadBytes {
		err := perr.PayloadTooLarge(plan.Required, bitstream.EncodedBits(int(req.MaxPayloadBytes)))
		return nil, perr.WithNum(err, "max_payload_bytes", float64(req.MaxPayloadBytes))
	}

	capacity, err := plan.Embedder.Capacity(ctx, req.Cover, opts)
	if err != nil {
		return nil, err
	}
	plan.Capacity = capacity
	if capacity != Unbounded && plan.Required > capacity {
		return nil, perr.PayloadTooLarge(plan.Required, capacity)
	}
	return plan, nil
}

// DecodeOptions decodes raw into the method's typed defaults
func DecodeOptions(m Method, raw options.Map) (any, error) {
	opts := m.Defaults()
	if err := options.Decode(raw, opts); err != nil {
		return nil, perr.WithOp(err, m.Name())
	}
	return opts, nil
}
