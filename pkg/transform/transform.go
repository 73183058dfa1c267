// Package transform implements the block transforms used by frequency-domain
// methods: an orthonormal 8x8 DCT-II and quantization index modulation.
package transform

import "math"

// BlockSize is the DCT block edge
const BlockSize = 8

// Block is an 8x8 block indexed [row][col]
type Block [BlockSize][BlockSize]float64

var cosTable [BlockSize][BlockSize]float64

func init() {
	for k := 0; k < BlockSize; k++ {
		a := math.Sqrt(2.0 / BlockSize)
		if k == 0 {
			a = math.Sqrt(1.0 / BlockSize)
		}
		for n := 0; n < BlockSize; n++ {
			cosTable[k][n] = a * math.Cos(math.Pi*(2*float64(n)+1)*float64(k)/(2*BlockSize))
		}
	}
}

// DCT returns the orthonormal 2D DCT-II of b
func DCT(b *Block) Block {
	var tmp, out Block
	for r := 0; r < BlockSize; r++ {
		for k := 0; k < BlockSize; k++ {
			var s float64
			for n := 0; n < BlockSize; n++ {
				s += cosTable[k][n] * b[r][n]
			}
			tmp[r][k] = s
		}
	}
	for c := 0; c < BlockSize; c++ {
		for k := 0; k < BlockSize; k++ {
			var s float64
			for n := 0; n < BlockSize; n++ {
				s += cosTable[k][n] * tmp[n][c]
			}
			out[k][c] = s
		}
	}
	return out
}

// IDCT inverts DCT
func IDCT(c *Block) Block {
	var tmp, out Block
	for col := 0; col < BlockSize; col++ {
		for n := 0; n < BlockSize; n++ {
			var s float64
			for k := 0; k < BlockSize; k++ {
				s += cosTable[k][n] * c[k][col]
			}
			tmp[n][col] = s
		}
	}
	for r := 0; r < BlockSize; r++ {
		for n := 0; n < BlockSize; n++ {
			var s float64
			for k := 0; k < BlockSize; k++ {
				s += cosTable[k][n] * tmp[r][k]
			}
			out[r][n] = s
		}
	}
	return out
}

// Coord is a coefficient position (row, col) inside a block
type Coord struct{ U, V int }

// QIMEmbed moves v to the nearest lattice point of step whose index parity equals bit
func QIMEmbed(v, step float64, bit uint8) float64 {
	q := math.Round(v / step)
	if uint8(int64(q)&1) != bit&1 {
		// pick the neighbouring index closer to v
		if v/step > q {
			q++
		} else {
			q--
		}
	}
	return q * step
}

// QIMExtract returns the parity of the lattice index nearest v
func QIMExtract(v, step float64) uint8 {
	return uint8(int64(math.Round(v/step)) & 1)
}

// QIMResidual returns the distance of v from the nearest lattice point as a
// fraction of step, in [0, 0.5]
func QIMResidual(v, step float64) float64 {
	f := v/step - math.Round(v/step)
	return math.Abs(f)
}
