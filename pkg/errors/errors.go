// Package errors provides the structured error type shared by every StegLab
// operation. Import it as perr.
package errors

import (
	stderrs "errors"
	"fmt"
	"sort"
)

// Kind classifies an error for callers and front ends
// Values are stable for wire compatibility; append only
type Kind uint16

const (
	// KindUnknown is for unclassified errors
	KindUnknown Kind = iota

	// KindUnknownCarrier is for carrier keys missing from the registry
	KindUnknownCarrier

	// KindUnknownMethod is for method ids not registered under a carrier for the role
	KindUnknownMethod

	// KindInvalidOptions is for malformed or type-mismatched options
	KindInvalidOptions

	// KindPayloadTooLarge is for payloads that exceed the carrier capacity
	KindPayloadTooLarge

	// KindCorruptOrAbsent is for missing or unreadable headers during extraction
	KindCorruptOrAbsent

	// KindUnderlyingFormat is for carrier bytes that cannot be parsed as the declared format
	KindUnderlyingFormat

	// KindResourceExceeded is for operations over a size or frame budget
	KindResourceExceeded

	// KindArtifactNotFound is for handles with no stored artifact
	KindArtifactNotFound

	// KindArtifactPathInvalid is for handles that escape or malform the sandbox path
	KindArtifactPathInvalid

	// KindArtifactCorrupt is for stored artifacts whose meta, content or digest no longer agree
	KindArtifactCorrupt
)

var kindNames = map[Kind]string{
	KindUnknown:             "Unknown",
	KindUnknownCarrier:      "UnknownCarrier",
	KindUnknownMethod:       "UnknownMethod",
	KindInvalidOptions:      "InvalidOptions",
	KindPayloadTooLarge:     "PayloadTooLarge",
	KindCorruptOrAbsent:     "CorruptOrAbsent",
	KindUnderlyingFormat:    "UnderlyingFormatError",
	KindResourceExceeded:    "ResourceExceeded",
	KindArtifactNotFound:    "ArtifactNotFound",
	KindArtifactPathInvalid: "ArtifactPathInvalid",
	KindArtifactCorrupt:     "ArtifactCorrupt",
}

// String returns the taxonomy name of the kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// Error is the structured error type
// msg is human facing; kind is machine facing
// field names the offending option, op the operation, nums carries numeric context
type Error struct {
	orig  error
	msg   string
	kind  Kind
	field string
	op    string
	nums  map[string]float64
}

// Wire is the JSON-serializable form handed to front ends
type Wire struct {
	Kind    string             `json:"kind"`
	Message string             `json:"message"`
	Field   string             `json:"field,omitempty"`
	Op      string             `json:"op,omitempty"`
	Context map[string]float64 `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Kind returns the error kind
func (e *Error) Kind() Kind { return e.kind }

// Field returns the offending option field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Num returns a numeric context value and whether it was set
func (e *Error) Num(key string) (float64, bool) {
	v, ok := e.nums[key]
	return v, ok
}

// Nums returns a copy of the numeric context
func (e *Error) Nums() map[string]float64 {
	out := make(map[string]float64, len(e.nums))
	for k, v := range e.nums {
		out[k] = v
	}
	return out
}

// NumKeys returns the numeric context keys in sorted order
func (e *Error) NumKeys() []string {
	keys := make([]string, 0, len(e.nums))
	for k := range e.nums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToWire converts an *Error to a Wire payload
func (e *Error) ToWire() Wire {
	w := Wire{Kind: e.kind.String(), Message: e.Error(), Field: e.field, Op: e.op}
	if len(e.nums) > 0 {
		w.Context = e.Nums()
	}
	return w
}

// WireFrom converts any error into a Wire payload with best-effort mapping
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Kind: KindUnknown.String(), Message: err.Error()}
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf extracts the Kind from any error, defaulting to Unknown
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err has the given kind
func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// IsUnsupportedCombination reports whether err rejects the carrier or method itself
func IsUnsupportedCombination(err error) bool {
	k := KindOf(err)
	return err != nil && (k == KindUnknownCarrier || k == KindUnknownMethod)
}

// IsValidation reports whether err is a request-validation failure the caller can fix
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindUnknownCarrier, KindUnknownMethod, KindInvalidOptions, KindPayloadTooLarge:
		return err != nil
	}
	return false
}

// Mutators (copy-on-write)

// WithField attaches an option field name. If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label. If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// WithNum attaches a numeric context value. If err isn't *Error, returns err unchanged
func WithNum(err error, key string, v float64) error {
	if e, ok := As(err); ok {
		c := *e
		c.nums = make(map[string]float64, len(e.nums)+1)
		for k, n := range e.nums {
			c.nums[k] = n
		}
		c.nums[key] = v
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given kind and message
func New(kind Kind, msg string) error { return &Error{kind: kind, msg: msg} }

// Newf returns a new *Error with kind and formatted message
func Newf(kind Kind, format string, a ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with kind and message
func Wrap(orig error, kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with kind and formatted message
func Wrapf(orig error, kind Kind, format string, a ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// UnknownCarrierf returns an unknown carrier error
func UnknownCarrierf(format string, a ...any) error { return Newf(KindUnknownCarrier, format, a...) }

// UnknownMethodf returns an unknown method error
func UnknownMethodf(format string, a ...any) error { return Newf(KindUnknownMethod, format, a...) }

// InvalidOptionsf returns an invalid options error
func InvalidOptionsf(format string, a ...any) error { return Newf(KindInvalidOptions, format, a...) }

// CorruptOrAbsentf returns a corrupt-or-absent error
func CorruptOrAbsentf(format string, a ...any) error { return Newf(KindCorruptOrAbsent, format, a...) }

// FormatErrf wraps a parse failure of carrier bytes
func FormatErrf(orig error, format string, a ...any) error {
	return Wrapf(orig, KindUnderlyingFormat, format, a...)
}

// ResourceExceededf returns a resource budget error
func ResourceExceededf(format string, a ...any) error {
	return Newf(KindResourceExceeded, format, a...)
}

// NotFoundf returns an artifact not found error
func NotFoundf(format string, a ...any) error { return Newf(KindArtifactNotFound, format, a...) }

// PathInvalidf returns an artifact path invalid error
func PathInvalidf(format string, a ...any) error { return Newf(KindArtifactPathInvalid, format, a...) }

// Corruptf wraps a stored artifact that fails to decode or verify
func Corruptf(orig error, format string, a ...any) error {
	return Wrapf(orig, KindArtifactCorrupt, format, a...)
}

// PayloadTooLarge builds the capacity shortfall error with its measured deficit
func PayloadTooLarge(requiredBits, capacityBits int) error {
	err := Newf(KindPayloadTooLarge, "payload needs %d bits but carrier holds %d", requiredBits, capacityBits)
	err = WithNum(err, "required_bits", float64(requiredBits))
	err = WithNum(err, "capacity_bits", float64(capacityBits))
	return WithNum(err, "deficit_bits", float64(requiredBits-capacityBits))
}
