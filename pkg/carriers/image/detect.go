package image

import (
	"context"
	"math"

	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
	"StegLab/pkg/transform"
)

// LSBDetector compares the RGB LSB ones/zeros ratio against the fair-coin null
// hypothesis; a larger chi-square deviation gives a larger probability
type LSBDetector struct {
	carrier.BaseMethod
}

// NewLSBDetector creates the lsb detector
func NewLSBDetector() *LSBDetector {
	return &LSBDetector{carrier.NewBaseMethod("lsb", "LSB bias", "Chi-square deviation of the RGB LSB plane from a 0.5 ratio")}
}

// Detect implements carrier.Detector
func (d *LSBDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	r, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	rgb := r.RGB()
	bits := make([]uint8, len(rgb))
	for i, v := range rgb {
		bits[i] = v & 1
	}
	bias := stats.Bias(bits, carrier.LimitsFrom(ctx).SampleSize)

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("samples", bias.Samples)
	res.Stats.Set("ones_ratio", stats.Round(bias.OnesRatio, 6))
	res.Stats.Set("chi_square", stats.Round(bias.ChiSquare, 6))
	res.Stats.Set("entropy", stats.Round(bias.Entropy, 6))
	res.Stats.Set("transitions", stats.Round(bias.Transitions, 6))
	if bias.Samples > 0 {
		res.Probability = models.Prob(bias.Probability())
	}
	return res, nil
}

// ChiSquareDetector runs the pairs-of-values test over channel histograms. LSB
// replacement equalizes the counts of each value pair, so a high survival
// probability of the statistic flags embedding.
type ChiSquareDetector struct {
	carrier.BaseMethod
}

// NewChiSquareDetector creates the chi-square detector
func NewChiSquareDetector() *ChiSquareDetector {
	return &ChiSquareDetector{carrier.NewBaseMethod("chi-square", "Pairs of values", "Westfeld-Pfitzmann chi-square attack over RGB values")}
}

// Detect implements carrier.Detector
func (d *ChiSquareDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	r, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	rgb := r.RGB()
	if n := carrier.LimitsFrom(ctx).SampleSize; n > 0 && len(rgb) > n {
		rgb = rgb[:n]
	}

	var hist [256]int
	for _, v := range rgb {
		hist[v]++
	}

	res := models.DetectionResult{Detector: d.Name()}
	chi, dof, ok := stats.PairsOfValues(hist)
	res.Stats.Set("samples", len(rgb))
	res.Stats.Set("chi_square", stats.Round(chi, 6))
	res.Stats.Set("dof", dof)
	if ok {
		res.Probability = models.Prob(stats.ChiSquareSurvival(chi, float64(dof)))
	}
	return res, nil
}

// RSDetector implements regular/singular group analysis on luma: LSB embedding
// pulls the regular and singular group counts together under the positive flip
// mask while pushing them apart under the negative one
type RSDetector struct {
	carrier.BaseMethod
}

// NewRSDetector creates the rs-analysis detector
func NewRSDetector() *RSDetector {
	return &RSDetector{carrier.NewBaseMethod("rs-analysis", "RS analysis", "Regular/singular group imbalance under LSB flipping masks")}
}

var rsMask = [4]int{0, 1, 1, 0}

func smoothness(g [4]int) int {
	s := 0
	for i := 1; i < len(g); i++ {
		s += absInt(g[i] - g[i-1])
	}
	return s
}

func flipPos(v int) int { return v ^ 1 }

func flipNeg(v int) int { return ((v + 1) ^ 1) - 1 }

// Detect implements carrier.Detector
func (d *RSDetector) Detect(ctx context.Context, in carrier.Input, _ any) (models.DetectionResult, error) {
	r, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	limit := carrier.LimitsFrom(ctx).SampleSize

	var rm, sm, rn, sn, groups int
	w, h := r.Width(), r.Height()
	pix := r.Img.Pix
scan:
	for y := 0; y < h; y++ {
		for x := 0; x+4 <= w; x += 4 {
			if limit > 0 && groups*4 >= limit {
				break scan
			}
			var g, pos, neg [4]int
			for i := 0; i < 4; i++ {
				off := r.Offset(x+i, y, 0)
				g[i] = int(0.299*float64(pix[off]) + 0.587*float64(pix[off+1]) + 0.114*float64(pix[off+2]) + 0.5)
				pos[i], neg[i] = g[i], g[i]
				if rsMask[i] == 1 {
					pos[i] = flipPos(g[i])
					neg[i] = flipNeg(g[i])
				}
			}
			f := smoothness(g)
			switch fp := smoothness(pos); {
			case fp > f:
				rm++
			case fp < f:
				sm++
			}
			switch fn := smoothness(neg); {
			case fn > f:
				rn++
			case fn < f:
				sn++
			}
			groups++
		}
	}

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("groups", groups)
	if groups == 0 {
		return res, nil
	}
	n := float64(groups)
	res.Stats.Set("r_m", stats.Round(float64(rm)/n, 6))
	res.Stats.Set("s_m", stats.Round(float64(sm)/n, 6))
	res.Stats.Set("r_neg_m", stats.Round(float64(rn)/n, 6))
	res.Stats.Set("s_neg_m", stats.Round(float64(sn)/n, 6))

	pos := float64(rm-sm) / n
	neg := float64(rn-sn) / n
	p := 0.0
	if neg > 0 {
		p = stats.Clamp01(1 - pos/neg)
	}
	res.Stats.Set("imbalance", stats.Round(neg-pos, 6))
	res.Probability = models.Prob(p)
	return res, nil
}

// DCTDetector measures mid-band coefficient energy and how tightly those
// coefficients sit on a quantization lattice. Natural blocks leave coefficients
// spread uniformly between lattice points; quantization embedding snaps them on.
type DCTDetector struct {
	carrier.BaseMethod
}

// DCTDetectOptions tunes the lattice probe
type DCTDetectOptions struct {
	Strength float64 `json:"strength" validate:"gte=4,lte=128"`
}

// NewDCTDetector creates the dct detector
func NewDCTDetector() *DCTDetector {
	return &DCTDetector{carrier.NewBaseMethod("dct", "DCT mid-band", "Mid-band coefficient variance and lattice concentration")}
}

// Defaults returns the default options
func (d *DCTDetector) Defaults() any { return &DCTDetectOptions{Strength: 16} }

// Detect implements carrier.Detector
func (d *DCTDetector) Detect(ctx context.Context, in carrier.Input, opts any) (models.DetectionResult, error) {
	step := opts.(*DCTDetectOptions).Strength
	r, err := Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}

	res := models.DetectionResult{Detector: d.Name()}
	blocks := blockCount(r)
	if limit := carrier.LimitsFrom(ctx).SampleSize; limit > 0 && blocks*64 > limit {
		blocks = (limit + 63) / 64
	}
	res.Stats.Set("blocks", blocks)
	if blocks == 0 {
		return res, nil
	}

	bw := r.Width() / transform.BlockSize
	var band []float64
	residual, probes := 0.0, 0
	for blk := 0; blk < blocks; blk++ {
		luma := lumaBlock(r, blk%bw, blk/bw)
		coef := transform.DCT(&luma)
		for u := 1; u < 4; u++ {
			for v := 1; v < 4; v++ {
				band = append(band, coef[u][v])
			}
		}
		for _, c := range MidBand {
			// coefficients near zero look the same in flat content and stego
			if math.Abs(coef[c.U][c.V]) < step/2 {
				continue
			}
			residual += transform.QIMResidual(coef[c.U][c.V], step)
			probes++
		}
	}

	res.Stats.Set("midband_variance", stats.Round(stats.Variance(band), 6))
	if probes == 0 {
		res.Probability = models.Prob(0)
		return res, nil
	}
	mean := residual / float64(probes)
	res.Stats.Set("lattice_residual", stats.Round(mean, 6))
	res.Probability = models.Prob(stats.Clamp01((0.25 - mean) / 0.25))
	return res, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
