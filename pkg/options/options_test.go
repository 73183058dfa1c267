package options

import (
	"testing"

	perr "StegLab/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoLike struct {
	Decay     float64 `json:"decay" validate:"gt=0,lt=1"`
	FrameSize int     `json:"frame_size" validate:"omitempty,gte=64"`
	Label     string  `json:"label"`
	Strict    bool    `json:"strict"`
}

func defaults() *echoLike { return &echoLike{Decay: 0.5, Label: "x"} }

func TestDecodeAppliesDefaults(t *testing.T) {
	dst := defaults()
	require.NoError(t, Decode(nil, dst))
	assert.Equal(t, 0.5, dst.Decay)
	assert.Equal(t, "x", dst.Label)
}

func TestDecodeOverridesAndIgnoresUnknown(t *testing.T) {
	dst := defaults()
	err := Decode(Map{"decay": 0.25, "frame_size": 512.0, "strict": true, "not_a_key": "whatever"}, dst)
	require.NoError(t, err)
	assert.Equal(t, 0.25, dst.Decay)
	assert.Equal(t, 512, dst.FrameSize)
	assert.True(t, dst.Strict)
}

func TestDecodeMatchesKeysExactly(t *testing.T) {
	dst := defaults()
	require.NoError(t, Decode(Map{"DECAY": 0.9, "Frame_Size": 128, "Label": "y"}, dst))
	assert.Equal(t, 0.5, dst.Decay)
	assert.Equal(t, "x", dst.Label)
	assert.Equal(t, defaults().FrameSize, dst.FrameSize)

	// a bad value behind a case variant never reaches the struct
	require.NoError(t, Decode(Map{"Decay": "loud"}, defaults()))
}

func TestDecodeTypeMismatch(t *testing.T) {
	dst := defaults()
	err := Decode(Map{"decay": "loud"}, dst)
	require.Error(t, err)
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
	e, _ := perr.As(err)
	assert.Equal(t, "decay", e.Field())

	err = Decode(Map{"frame_size": 12.5}, defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))

	err = Decode(Map{"strict": 1}, defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
}

func TestDecodeRejectsNestedValues(t *testing.T) {
	err := Decode(Map{"decay": []any{1, 2}}, defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))

	err = Decode(Map{"extra": map[string]any{"a": 1}}, defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
}

func TestDecodeBounds(t *testing.T) {
	err := Decode(Map{"decay": 0.0}, defaults())
	require.Error(t, err)
	e, _ := perr.As(err)
	assert.Equal(t, "decay", e.Field())
	assert.Contains(t, err.Error(), "decay must be greater than 0")

	err = Decode(Map{"frame_size": 8}, defaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_size must be at least 64")
}

func TestNullKeepsDefault(t *testing.T) {
	dst := defaults()
	require.NoError(t, Decode(Map{"decay": nil}, dst))
	assert.Equal(t, 0.5, dst.Decay)
}
