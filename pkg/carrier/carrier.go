package carrier

import (
	"context"
	"fmt"
	"strings"

	perr "StegLab/pkg/errors"
)

/*
carrier.go holds the catalog entry for one carrier kind.
Carrier: a key, accepted formats, and the embed, extract and detect method sets in registration order.
Input: carrier bytes handed to extract and detect, plus companion lookup when an artifact backs them.
Output: stego bytes produced by an embedder, with any companion files stored next to them.
Limits: per-request budgets carried on the context.
*/

// Role is the capability a method is resolved for
type Role string

const (
	RoleEmbed   Role = "embed"
	RoleExtract Role = "extract"
	RoleDetect  Role = "detect"
)

// Unbounded is returned by capacity estimators whose channel has no carrier-imposed limit
const Unbounded = -1

// CompanionFunc looks up a companion file stored next to an artifact
type CompanionFunc func(suffix string) ([]byte, bool, error)

// Input is the carrier handed to extractors and detectors
type Input struct {
	Data []byte
	// Companion is nil when the bytes were supplied directly rather than by handle
	Companion CompanionFunc
}

// HasCompanions reports whether companion lookup is possible for this input
func (in Input) HasCompanions() bool { return in.Companion != nil }

// LookupCompanion returns the companion with the given suffix
func (in Input) LookupCompanion(suffix string) ([]byte, bool, error) {
	if in.Companion == nil {
		return nil, false, nil
	}
	return in.Companion(suffix)
}

// Output is what an embedder produces
type Output struct {
	Data        []byte
	ContentType string
	// Ext is the file extension, with dot, for the stored artifact
	Ext        string
	Companions map[string][]byte
}

// Limits are request budgets; zero fields mean unlimited
type Limits struct {
	MaxFrames  int
	MaxBytes   int64
	SampleSize int
}

type limitsKey struct{}

// WithLimits stores limits on ctx
func WithLimits(ctx context.Context, l Limits) context.Context {
	return context.WithValue(ctx, limitsKey{}, l)
}

// LimitsFrom returns the limits stored on ctx, or the zero value
func LimitsFrom(ctx context.Context) Limits {
	l, _ := ctx.Value(limitsKey{}).(Limits)
	return l
}

// Carrier is one immutable registry entry
type Carrier struct {
	key         string
	description string
	formats     []string
	embedders   []Embedder
	extractors  []Extractor
	detectors   []Detector
}

// Spec declares a carrier for New
type Spec struct {
	Key         string
	Description string
	// Formats are MIME or container patterns, e.g. "image/png", "audio/*"
	Formats    []string
	Embedders  []Embedder
	Extractors []Extractor
	Detectors  []Detector
}

// New builds a carrier entry and checks method ids are unique per role
func New(s Spec) (*Carrier, error) {
	if s.Key == "" {
		return nil, fmt.Errorf("carrier key required")
	}
	c := &Carrier{
		key:         s.Key,
		description: s.Description,
		formats:     append([]string(nil), s.Formats...),
		embedders:   append([]Embedder(nil), s.Embedders...),
		extractors:  append([]Extractor(nil), s.Extractors...),
		detectors:   append([]Detector(nil), s.Detectors...),
	}
	if err := uniqueNames(c.key, RoleEmbed, names(c.embedders)); err != nil {
		return nil, err
	}
	if err := uniqueNames(c.key, RoleExtract, names(c.extractors)); err != nil {
		return nil, err
	}
	if err := uniqueNames(c.key, RoleDetect, names(c.detectors)); err != nil {
		return nil, err
	}
	return c, nil
}

// Key returns the carrier key
func (c *Carrier) Key() string { return c.key }

// Description returns the carrier description
func (c *Carrier) Description() string { return c.description }

// Formats returns the accepted format patterns
func (c *Carrier) Formats() []string { return append([]string(nil), c.formats...) }

// Accepts reports whether a MIME type matches one of the carrier's format patterns
func (c *Carrier) Accepts(mime string) bool {
	mime = strings.ToLower(mime)
	for _, f := range c.formats {
		if f == mime || f == "*/*" {
			return true
		}
		if strings.HasSuffix(f, "/*") && strings.HasPrefix(mime, strings.TrimSuffix(f, "*")) {
			return true
		}
	}
	return false
}

// Embedders returns embed methods in registration order
func (c *Carrier) Embedders() []Embedder { return append([]Embedder(nil), c.embedders...) }

// Extractors returns extract methods in registration order
func (c *Carrier) Extractors() []Extractor { return append([]Extractor(nil), c.extractors...) }

// Detectors returns detectors in registration order
func (c *Carrier) Detectors() []Detector { return append([]Detector(nil), c.detectors...) }

// Embedder returns the embed method with the given id
func (c *Carrier) Embedder(id string) (Embedder, bool) {
	for _, m := range c.embedders {
		if m.Name() == id {
			return m, true
		}
	}
	return nil, false
}

// Extractor returns the extract method with the given id
func (c *Carrier) Extractor(id string) (Extractor, bool) {
	for _, m := range c.extractors {
		if m.Name() == id {
			return m, true
		}
	}
	return nil, false
}

// Capacity runs the estimator of the named embed method over the actual cover bytes
func (c *Carrier) Capacity(ctx context.Context, cover []byte, method string, opts any) (int, error) {
	m, ok := c.Embedder(method)
	if !ok {
		return 0, perr.UnknownMethodf("carrier %q has no embed method %q", c.key, method)
	}
	if opts == nil {
		opts = m.Defaults()
	}
	return m.Capacity(ctx, cover, opts)
}

func names[M Method](ms []M) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name()
	}
	return out
}

func uniqueNames(key string, role Role, ns []string) error {
	seen := make(map[string]bool, len(ns))
	for _, n := range ns {
		if n == "" {
			return fmt.Errorf("carrier %s: %s method with empty id", key, role)
		}
		if seen[n] {
			return fmt.Errorf("carrier %s: duplicate %s method %q", key, role, n)
		}
		seen[n] = true
	}
	return nil
}
