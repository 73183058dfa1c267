package errors

import (
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "UnknownCarrier", KindUnknownCarrier.String())
	assert.Equal(t, "UnderlyingFormatError", KindUnderlyingFormat.String())
	assert.Equal(t, "Kind(999)", Kind(999).String())
}

func TestWrapAndUnwrap(t *testing.T) {
	root := stderrs.New("eof")
	err := FormatErrf(root, "decode %s", "png")

	assert.Equal(t, "decode png: eof", err.Error())
	assert.True(t, stderrs.Is(err, root))
	assert.Equal(t, KindUnderlyingFormat, KindOf(err))

	outer := fmt.Errorf("embed: %w", err)
	assert.True(t, IsKind(outer, KindUnderlyingFormat))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(stderrs.New("plain")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestMutatorsAreCopyOnWrite(t *testing.T) {
	base := InvalidOptionsf("bad type")
	withField := WithField(base, "decay")
	withNum := WithNum(withField, "min", 0)

	b, _ := As(base)
	f, _ := As(withField)
	n, _ := As(withNum)

	assert.Empty(t, b.Field())
	assert.Equal(t, "decay", f.Field())
	_, ok := f.Num("min")
	assert.False(t, ok)
	v, ok := n.Num("min")
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	plain := stderrs.New("x")
	assert.Same(t, plain, WithOp(plain, "embed"))
}

func TestPayloadTooLargeCarriesDeficit(t *testing.T) {
	err := PayloadTooLarge(130, 120)
	e, ok := As(err)
	require.True(t, ok)

	assert.Equal(t, KindPayloadTooLarge, e.Kind())
	deficit, _ := e.Num("deficit_bits")
	assert.Equal(t, 10.0, deficit)
	assert.Equal(t, []string{"capacity_bits", "deficit_bits", "required_bits"}, e.NumKeys())
}

func TestWireFrom(t *testing.T) {
	assert.Equal(t, Wire{}, WireFrom(nil))

	w := WireFrom(WithField(UnknownMethodf("no method %q", "x"), "method"))
	assert.Equal(t, "UnknownMethod", w.Kind)
	assert.Equal(t, "method", w.Field)

	w = WireFrom(stderrs.New("boom"))
	assert.Equal(t, "Unknown", w.Kind)
	assert.Equal(t, "boom", w.Message)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsUnsupportedCombination(UnknownCarrierf("x")))
	assert.True(t, IsUnsupportedCombination(UnknownMethodf("x")))
	assert.False(t, IsUnsupportedCombination(InvalidOptionsf("x")))

	assert.True(t, IsValidation(PayloadTooLarge(2, 1)))
	assert.False(t, IsValidation(ResourceExceededf("frames")))
	assert.False(t, IsValidation(nil))
}
