// Package watermark implements provenance watermarking of grayscale images:
// one bit per 8x8 block quantized into a single DCT coefficient.
package watermark

import (
	"context"
	"math"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	imagecarrier "StegLab/pkg/carriers/image"
	"StegLab/pkg/models"
	"StegLab/pkg/stats"
	"StegLab/pkg/transform"
)

// Key is the registry key of the watermark carrier
const Key = "watermark"

// Coefficient carries the watermark bit of each block
var Coefficient = transform.Coord{U: 3, V: 2}

// New returns the watermark carrier entry
func New() (*carrier.Carrier, error) {
	m := NewIDCT()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "Grayscale images; colour inputs are converted to luma",
		Formats:     imagecarrier.Formats,
		Embedders:   []carrier.Embedder{m},
		Extractors:  []carrier.Extractor{m},
		Detectors:   []carrier.Detector{NewDetector()},
	})
}

// Options tunes idct and the watermark detector
type Options struct {
	Strength float64 `json:"strength" validate:"gte=2,lte=128"`
}

// IDCT quantizes coefficient (3,2) of every 8x8 block of the gray image
type IDCT struct {
	carrier.BaseMethod
}

// NewIDCT creates the idct method
func NewIDCT() *IDCT {
	return &IDCT{carrier.NewBaseMethod("idct", "DCT watermark", "Quantization of DCT coefficient (3,2) per 8x8 block of the gray image")}
}

// Defaults returns the default options
func (m *IDCT) Defaults() any { return &Options{Strength: 10} }

func blocks(r *imagecarrier.Raster) (bw, n int) {
	bw = r.Width() / transform.BlockSize
	return bw, bw * (r.Height() / transform.BlockSize)
}

// gray converts r in place so R=G=B=luma
func gray(r *imagecarrier.Raster) {
	pix := r.Img.Pix
	for y := 0; y < r.Height(); y++ {
		for x := 0; x < r.Width(); x++ {
			o := r.Offset(x, y, 0)
			l := 0.299*float64(pix[o]) + 0.587*float64(pix[o+1]) + 0.114*float64(pix[o+2])
			v := uint8(math.Min(255, math.Round(l)))
			pix[o], pix[o+1], pix[o+2] = v, v, v
		}
	}
}

func grayBlock(r *imagecarrier.Raster, bx, by int) transform.Block {
	var b transform.Block
	for y := 0; y < transform.BlockSize; y++ {
		for x := 0; x < transform.BlockSize; x++ {
			b[y][x] = float64(r.Img.Pix[r.Offset(bx*transform.BlockSize+x, by*transform.BlockSize+y, 0)])
		}
	}
	return b
}

// Capacity returns the 8x8 block count
func (m *IDCT) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	r, err := imagecarrier.Decode(cover)
	if err != nil {
		return 0, err
	}
	_, n := blocks(r)
	return n, nil
}

// Embed converts the cover to gray and writes one bit per block
func (m *IDCT) Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	step := opts.(*Options).Strength
	r, err := imagecarrier.Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	gray(r)
	orig := r.Clone()
	bw, n := blocks(r)

	for i, b := range bits {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		embedBlock(r, i%bw, i/bw, b, step)
	}

	data, ct, ext, err := imagecarrier.Encode(r)
	if err != nil {
		return nil, nil, err
	}
	var metrics models.Metrics
	metrics.Set("bits_embedded", len(bits))
	metrics.Set("capacity_bits", n)
	if n > 0 {
		metrics.Set("utilization", stats.Round(float64(len(bits))/float64(n), 6))
	}
	psnr, mse := stats.PSNR(orig.RGB(), r.RGB())
	metrics.Set("mse", stats.Round(mse, 6))
	if stats.Finite(psnr) {
		metrics.Set("psnr", stats.Round(psnr, 4))
	}
	if ssim := orig.SSIM(r); stats.Finite(ssim) {
		metrics.Set("ssim", stats.Round(ssim, 6))
	}
	metrics.Set("strength", step)
	return &carrier.Output{Data: data, ContentType: ct, Ext: ext}, metrics, nil
}

func embedBlock(r *imagecarrier.Raster, bx, by int, bit uint8, step float64) {
	pix := r.Img.Pix
	for pass := 0; pass < 4; pass++ {
		blk := grayBlock(r, bx, by)
		coef := transform.DCT(&blk)
		c := coef[Coefficient.U][Coefficient.V]
		if pass > 0 && transform.QIMExtract(c, step) == bit {
			return
		}
		var delta transform.Block
		delta[Coefficient.U][Coefficient.V] = transform.QIMEmbed(c, step, bit) - c
		d := transform.IDCT(&delta)
		for y := 0; y < transform.BlockSize; y++ {
			for x := 0; x < transform.BlockSize; x++ {
				o := r.Offset(bx*transform.BlockSize+x, by*transform.BlockSize+y, 0)
				v := uint8(math.Max(0, math.Min(255, math.Round(float64(pix[o])+d[y][x]))))
				pix[o], pix[o+1], pix[o+2] = v, v, v
			}
		}
	}
}

// Bits reads the coefficient parity of each block
func (m *IDCT) Bits(_ context.Context, in carrier.Input, opts any) (bitstream.Source, int, models.Metrics, error) {
	step := opts.(*Options).Strength
	r, err := imagecarrier.Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	gray(r)
	bw, n := blocks(r)
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		blk := grayBlock(r, i%bw, i/bw)
		coef := transform.DCT(&blk)
		return transform.QIMExtract(coef[Coefficient.U][Coefficient.V], step), nil
	})
	var meta models.Metrics
	meta.Set("blocks", n)
	meta.Set("strength", step)
	return src, n, meta, nil
}

// Detector checks how tightly coefficient (3,2) sits on the watermark lattice
type Detector struct {
	carrier.BaseMethod
}

// NewDetector creates the watermark-dct detector
func NewDetector() *Detector {
	return &Detector{carrier.NewBaseMethod("watermark-dct", "DCT watermark", "Lattice residual and energy of coefficient (3,2)")}
}

// Defaults returns the default options
func (d *Detector) Defaults() any { return &Options{Strength: 10} }

// Detect implements carrier.Detector
func (d *Detector) Detect(ctx context.Context, in carrier.Input, opts any) (models.DetectionResult, error) {
	step := opts.(*Options).Strength
	r, err := imagecarrier.Decode(in.Data)
	if err != nil {
		return models.DetectionResult{}, err
	}
	gray(r)
	bw, n := blocks(r)
	if limit := carrier.LimitsFrom(ctx).SampleSize; limit > 0 && n*64 > limit {
		n = (limit + 63) / 64
	}

	res := models.DetectionResult{Detector: d.Name()}
	res.Stats.Set("blocks", n)
	if n == 0 {
		return res, nil
	}
	var energy, residual float64
	probes := 0
	for i := 0; i < n; i++ {
		blk := grayBlock(r, i%bw, i/bw)
		coef := transform.DCT(&blk)
		c := coef[Coefficient.U][Coefficient.V]
		energy += c * c
		if math.Abs(c) < step/2 {
			continue
		}
		residual += transform.QIMResidual(c, step)
		probes++
	}
	res.Stats.Set("energy", stats.Round(math.Sqrt(energy/float64(n)), 6))
	res.Stats.Set("probes", probes)
	if probes == 0 {
		res.Probability = models.Prob(0)
		return res, nil
	}
	mean := residual / float64(probes)
	res.Stats.Set("lattice_residual", stats.Round(mean, 6))
	res.Probability = models.Prob(stats.Clamp01((0.25 - mean) / 0.25))
	return res, nil
}
