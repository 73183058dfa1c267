// Package engine dispatches embed, extract and detect requests against the
// carrier registry and persists their outputs in the artifact store.
package engine

import (
	"context"
	"time"

	"StegLab/pkg/artifact"
	"StegLab/pkg/carrier"
	"StegLab/pkg/carriers/network"
	"StegLab/pkg/config"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/logger"
	"StegLab/pkg/metrics"
	"StegLab/pkg/options"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is safe for concurrent use; the registry is read-only and the store
// allocates handles atomically
type Engine struct {
	cfg      *config.Config
	registry *carrier.Registry
	store    *artifact.Store
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// Option customizes New
type Option func(*Engine)

// WithRegistry replaces the builtin registry
func WithRegistry(r *carrier.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithStore replaces the store built from cfg.Storage
func WithStore(s *artifact.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithMetrics registers the engine collectors with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = metrics.New(reg) }
}

// New builds an engine from a finalized configuration
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, log: logger.Named("engine")}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		r, err := Builtin()
		if err != nil {
			return nil, err
		}
		e.registry = r
	}
	if e.store == nil {
		s, err := artifact.New(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		e.store = s
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	return e, nil
}

// Registry returns the carrier catalog
func (e *Engine) Registry() *carrier.Registry { return e.registry }

// Store returns the artifact store
func (e *Engine) Store() *artifact.Store { return e.store }

// Metrics returns the engine collectors
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// EmbedRequest hides Payload in Cover
type EmbedRequest struct {
	Carrier    string
	Method     string
	Cover      []byte
	Filename   string
	Payload    []byte
	Passphrase string
	Options    options.Map
}

// ExtractRequest reads a payload from Data, or from the artifact Handle when set
type ExtractRequest struct {
	Carrier    string
	Method     string
	Data       []byte
	Handle     string
	Passphrase string
	Options    options.Map
}

// DetectRequest runs every detector of Carrier over Data or the artifact Handle.
// Options are keyed by detector id.
type DetectRequest struct {
	Carrier string
	Data    []byte
	Handle  string
	Options map[string]options.Map
}

// begin stamps ctx with a request id and the configured budgets
func (e *Engine) begin(ctx context.Context) context.Context {
	if logger.RequestID(ctx) == "" {
		ctx = logger.WithRequest(ctx, uuid.NewString())
	}
	return carrier.WithLimits(ctx, carrier.Limits{
		MaxFrames:  e.cfg.Video.MaxFrames,
		MaxBytes:   e.cfg.Video.MaxBytesValue(),
		SampleSize: e.cfg.Detection.SampleSize,
	})
}

// admit checks the carrier exists and is enabled, and that the input is within
// max_input
func (e *Engine) admit(key string, inputBytes int) (*carrier.Carrier, error) {
	c, err := e.enabled(key)
	if err != nil {
		return nil, err
	}
	if err := e.checkInput(inputBytes); err != nil {
		return nil, err
	}
	return c, nil
}

// enabled resolves a carrier key, refusing the network carrier unless the
// configuration turns it on
func (e *Engine) enabled(key string) (*carrier.Carrier, error) {
	c, err := e.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	if key == network.Key && !e.cfg.Network.IsEnabled() {
		err := perr.UnknownCarrierf("carrier %q is disabled by configuration", key)
		return nil, perr.WithField(err, "carrier")
	}
	return c, nil
}

func (e *Engine) checkInput(inputBytes int) error {
	if limit := e.cfg.Limits.MaxInputBytes(); limit > 0 && int64(inputBytes) > limit {
		err := perr.ResourceExceededf("input of %d bytes exceeds max_input %d", inputBytes, limit)
		err = perr.WithNum(err, "input_bytes", float64(inputBytes))
		return perr.WithNum(err, "max_input_bytes", float64(limit))
	}
	return nil
}

// input resolves direct bytes or a stored artifact into a carrier input
func (e *Engine) input(ctx context.Context, data []byte, handle string) (carrier.Input, error) {
	if handle == "" {
		return carrier.Input{Data: data}, nil
	}
	_, content, err := e.store.Get(ctx, handle)
	if err != nil {
		return carrier.Input{}, err
	}
	return carrier.Input{
		Data: content,
		Companion: func(suffix string) ([]byte, bool, error) {
			return e.store.Companion(ctx, handle, suffix)
		},
	}, nil
}

// Sweep applies the configured retention to the store
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	n, err := e.store.Sweep(ctx, e.cfg.Storage.RetentionDuration())
	e.metrics.ArtifactsSwept.Add(float64(n))
	return n, err
}

// GetArtifact returns a stored artifact and its bytes
func (e *Engine) GetArtifact(ctx context.Context, handle string) (*artifact.Artifact, []byte, error) {
	ctx = e.begin(ctx)
	start := time.Now()
	a, data, err := e.store.Get(ctx, handle)
	e.metrics.RecordOperation("get_artifact", "", "", err, time.Since(start))

	ev := logger.C(ctx).Debug()
	if err != nil {
		ev = logger.C(ctx).Warn().Err(err)
	}
	ev.Str("op", "get_artifact").Str("handle", handle).Dur("duration", time.Since(start)).Msg("get artifact")
	if err != nil {
		return nil, nil, withOp(err, "get_artifact")
	}
	return a, data, nil
}

// withOp labels structured errors that do not carry an operation yet
func withOp(err error, op string) error {
	if e, ok := perr.As(err); ok && e.Op() == "" {
		return perr.WithOp(err, op)
	}
	return err
}
