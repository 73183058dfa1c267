package carrier

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/models"
)

// Method is the identity shared by every embed, extract and detect strategy
type Method interface {
	// Name returns the stable method id, e.g. "rgb-lsb"
	Name() string

	// Label returns a short human label
	Label() string

	// Description returns what the method does
	Description() string

	// Defaults returns a fresh pointer to the method's typed options holding defaults
	Defaults() any
}

// Embedder writes packed payload bits into a carrier
type Embedder interface {
	Method

	// Capacity returns the number of bit slots the cover offers, or Unbounded
	Capacity(ctx context.Context, cover []byte, opts any) (int, error)

	// Embed writes bits, header included, into cover and reports quality metrics
	Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*Output, models.Metrics, error)
}

// Extractor re-derives the bit slots an Embedder wrote
type Extractor interface {
	Method

	// Bits returns the slot sequence in scan order, the number of slots available,
	// and method diagnostics. A carrier that cannot hold a header is reported through
	// slots < bitstream.HeaderBits, never as an error.
	Bits(ctx context.Context, in Input, opts any) (bitstream.Source, int, models.Metrics, error)
}

// Detector estimates whether an input carries hidden data, without knowing the method
type Detector interface {
	Method

	// Detect returns one result; a nil probability marks the detector inapplicable
	Detect(ctx context.Context, in Input, opts any) (models.DetectionResult, error)
}

// NoOptions is the options type of methods without tunables
type NoOptions struct{}

// BaseMethod provides the identity half of a Method
type BaseMethod struct {
	name        string
	label       string
	description string
}

// NewBaseMethod creates a new BaseMethod
func NewBaseMethod(name, label, description string) BaseMethod {
	return BaseMethod{
		name:        name,
		label:       label,
		description: description,
	}
}

// Name returns the method id
func (b *BaseMethod) Name() string {
	return b.name
}

// Label returns the method label
func (b *BaseMethod) Label() string {
	return b.label
}

// Description returns the method description
func (b *BaseMethod) Description() string {
	return b.description
}

// Defaults returns empty options; methods with tunables override it
func (b *BaseMethod) Defaults() any {
	return &NoOptions{}
}
