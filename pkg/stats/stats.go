// Package stats holds the closed-form statistics shared by detectors
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Entropy returns the Shannon entropy in bits of a two-symbol distribution
func Entropy(zeroProb, oneProb float64) float64 {
	// Avoid log(0)
	if zeroProb <= 0 || oneProb <= 0 {
		return 0
	}
	return -zeroProb*math.Log2(zeroProb) - oneProb*math.Log2(oneProb)
}

// Variance returns the population variance of values
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, v := stat.PopMeanVariance(values, nil)
	return v
}

// Mean returns the arithmetic mean of values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Sigmoid is the logistic function
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Clamp01 bounds v to [0, 1], mapping NaN to 0
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ChiSquareCDF returns P(X <= x) for a chi-squared variable with dof degrees of freedom
func ChiSquareCDF(x float64, dof float64) float64 {
	if x <= 0 {
		return 0
	}
	return distuv.ChiSquared{K: dof}.CDF(x)
}

// ChiSquareSurvival returns P(X > x) for a chi-squared variable with dof degrees of freedom
func ChiSquareSurvival(x float64, dof float64) float64 {
	if x <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: dof}.Survival(x)
}

// BitBias summarises a 0/1 sequence against the fair-coin null hypothesis
type BitBias struct {
	Samples int
	Ones    int
	// OnesRatio is Ones/Samples
	OnesRatio float64
	// ChiSquare is (ones-zeros)^2/n, one degree of freedom
	ChiSquare float64
	Entropy   float64
	// Transitions is the rate of adjacent 0->1 and 1->0 changes
	Transitions float64
}

// Probability maps the bias to [0,1]; larger deviation gives larger values
func (b BitBias) Probability() float64 {
	return ChiSquareCDF(b.ChiSquare, 1)
}

// Bias computes BitBias over bits, inspecting at most limit values when limit > 0
func Bias(bits []uint8, limit int) BitBias {
	if limit > 0 && len(bits) > limit {
		bits = bits[:limit]
	}
	n := len(bits)
	if n == 0 {
		return BitBias{}
	}

	ones, transitions := 0, 0
	for i, b := range bits {
		if b&1 == 1 {
			ones++
		}
		if i > 0 && bits[i-1]&1 != b&1 {
			transitions++
		}
	}
	zeros := n - ones
	diff := float64(ones - zeros)
	ratio := float64(ones) / float64(n)

	out := BitBias{
		Samples:   n,
		Ones:      ones,
		OnesRatio: ratio,
		ChiSquare: diff * diff / float64(n),
		Entropy:   Entropy(1-ratio, ratio),
	}
	if n > 1 {
		out.Transitions = float64(transitions) / float64(n-1)
	}
	return out
}

// PairsOfValues runs the Westfeld-Pfitzmann pairs-of-values test over a histogram of
// 8-bit values. It returns the statistic, its degrees of freedom, and ok=false when
// fewer than two pairs are populated.
func PairsOfValues(hist [256]int) (chi float64, dof int, ok bool) {
	pairs := 0
	for k := 0; k < 128; k++ {
		a, b := float64(hist[2*k]), float64(hist[2*k+1])
		expected := (a + b) / 2
		if expected == 0 {
			continue
		}
		d := a - expected
		chi += d * d / expected
		pairs++
	}
	if pairs < 2 {
		return 0, 0, false
	}
	return chi, pairs - 1, true
}

// PSNR returns the peak signal-to-noise ratio in dB for 8-bit samples, and the MSE.
// Identical inputs yield +Inf, which callers should omit.
func PSNR(a, b []byte) (psnr, mse float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return math.Inf(1), 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	mse = sum / float64(n)
	return PSNRFromMSE(mse), mse
}

// SSIMWindow is the side of the square window SSIM slides over the image
const SSIMWindow = 7

// SSIM returns the mean structural similarity of two w x h single-channel
// images with an 8-bit range. Each window position contributes one score from
// the window means, sample variances and covariance.
func SSIM(a, b []float64, w, h int) float64 {
	if w <= 0 || h <= 0 || len(a) < w*h || len(b) < w*h {
		return math.NaN()
	}
	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)
	win := SSIMWindow
	if w < win {
		win = w
	}
	if h < win {
		win = h
	}
	if win < 2 {
		// no variance to speak of, compare the means alone
		ma, mb := Mean(a[:w*h]), Mean(b[:w*h])
		return (2*ma*mb + c1) / (ma*ma + mb*mb + c1)
	}

	xa := make([]float64, win*win)
	xb := make([]float64, win*win)
	var sum float64
	var n int
	for y := 0; y+win <= h; y++ {
		for x := 0; x+win <= w; x++ {
			for j := 0; j < win; j++ {
				row := (y+j)*w + x
				copy(xa[j*win:(j+1)*win], a[row:row+win])
				copy(xb[j*win:(j+1)*win], b[row:row+win])
			}
			ma, va := stat.MeanVariance(xa, nil)
			mb, vb := stat.MeanVariance(xb, nil)
			cov := stat.Covariance(xa, xb, nil)
			sum += ((2*ma*mb + c1) * (2*cov + c2)) / ((ma*ma + mb*mb + c1) * (va + vb + c2))
			n++
		}
	}
	return sum / float64(n)
}

// PSNRFromMSE converts an 8-bit mean squared error to PSNR in dB; zero gives +Inf
func PSNRFromMSE(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/mse)
}

// SNR returns the signal-to-noise ratio in dB of stego against the original signal
func SNR(orig, stego []int) float64 {
	n := len(orig)
	if len(stego) < n {
		n = len(stego)
	}
	var sig, noise float64
	for i := 0; i < n; i++ {
		s := float64(orig[i])
		d := float64(stego[i]) - s
		sig += s * s
		noise += d * d
	}
	if noise == 0 || sig == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(sig/noise)
}

// Finite reports whether v is a usable metric value
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round rounds v to the given number of decimals
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
