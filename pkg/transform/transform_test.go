package transform

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCTInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var b Block
	for r := 0; r < BlockSize; r++ {
		for c := 0; c < BlockSize; c++ {
			b[r][c] = float64(rng.Intn(256))
		}
	}
	coef := DCT(&b)
	back := IDCT(&coef)
	for r := 0; r < BlockSize; r++ {
		for c := 0; c < BlockSize; c++ {
			assert.InDelta(t, b[r][c], back[r][c], 1e-9)
		}
	}
}

func TestDCTFlatBlockIsDCOnly(t *testing.T) {
	var b Block
	for r := range b {
		for c := range b[r] {
			b[r][c] = 100
		}
	}
	coef := DCT(&b)
	assert.InDelta(t, 800, coef[0][0], 1e-9)
	assert.InDelta(t, 0, coef[2][1], 1e-9)
}

func TestQIM(t *testing.T) {
	for _, v := range []float64{-37.2, -3, 0, 4.9, 15.99, 123.4} {
		for _, bit := range []uint8{0, 1} {
			q := QIMEmbed(v, 16, bit)
			assert.Equal(t, bit, QIMExtract(q, 16))
			assert.LessOrEqual(t, q-v, 16.0)
			assert.GreaterOrEqual(t, q-v, -16.0)
			// survives perturbation below half a step
			assert.Equal(t, bit, QIMExtract(q+7.9, 16))
			assert.Equal(t, bit, QIMExtract(q-7.9, 16))
			assert.InDelta(t, 0, QIMResidual(q, 16), 1e-12)
		}
	}
	assert.InDelta(t, 0.5, QIMResidual(8, 16), 1e-12)
}
