package image

import (
	"context"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
	"StegLab/pkg/transform"
)

// MidBand is the coefficient set modulated in every 8x8 luma block, in embedding order
var MidBand = []transform.Coord{{U: 2, V: 1}, {U: 1, V: 2}, {U: 2, V: 2}, {U: 3, V: 1}, {U: 1, V: 3}}

// DCTOptions tunes dct-midband
type DCTOptions struct {
	// Strength is the quantization step applied to each mid-band coefficient
	Strength float64 `json:"strength" validate:"gte=4,lte=128"`
}

// DCT quantizes mid-band DCT coefficients of the luma channel, one bit per coefficient.
// The luma change is spread equally over R, G and B.
type DCT struct {
	carrier.BaseMethod
}

// NewDCT creates the dct-midband method
func NewDCT() *DCT {
	return &DCT{
		BaseMethod: carrier.NewBaseMethod("dct-midband", "DCT mid-band",
			"Quantization index modulation of five mid-band coefficients per 8x8 luma block"),
	}
}

// Defaults returns the default options
func (m *DCT) Defaults() any { return &DCTOptions{Strength: 16} }

// Capacity returns blocks*len(MidBand)
func (m *DCT) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	r, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	return blockCount(r) * len(MidBand), nil
}

func blockCount(r *Raster) int {
	return (r.Width() / transform.BlockSize) * (r.Height() / transform.BlockSize)
}

// lumaBlock returns the luma of block (bx, by)
func lumaBlock(r *Raster, bx, by int) transform.Block {
	var b transform.Block
	pix := r.Img.Pix
	for y := 0; y < transform.BlockSize; y++ {
		for x := 0; x < transform.BlockSize; x++ {
			off := r.Offset(bx*transform.BlockSize+x, by*transform.BlockSize+y, 0)
			b[y][x] = 0.299*float64(pix[off]) + 0.587*float64(pix[off+1]) + 0.114*float64(pix[off+2])
		}
	}
	return b
}

// Embed modulates mid-band coefficients block by block in row-major block order
func (m *DCT) Embed(ctx context.Context, cover []byte, bits []uint8, opts any) (*carrier.Output, models.Metrics, error) {
	step := opts.(*DCTOptions).Strength
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()
	bw := stego.Width() / transform.BlockSize

	for start, blk := 0, 0; start < len(bits); start, blk = start+len(MidBand), blk+1 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := start + len(MidBand)
		if end > len(bits) {
			end = len(bits)
		}
		embedBlock(stego, blk%bw, blk/bw, bits[start:end], step)
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	metrics := qualityMetrics(len(bits), blockCount(orig)*len(MidBand), orig, stego)
	metrics.Set("strength", step)
	return out, metrics, nil
}

// embedBlock sets the block's coefficients to carry bits. Pixel rounding and
// clipping can push a coefficient back across a decision boundary, so the block is
// re-measured and corrected a few times.
func embedBlock(r *Raster, bx, by int, bits []uint8, step float64) {
	pix := r.Img.Pix
	for pass := 0; pass < 4; pass++ {
		luma := lumaBlock(r, bx, by)
		coef := transform.DCT(&luma)

		var delta transform.Block
		dirty := false
		for i, b := range bits {
			c := MidBand[i]
			if pass > 0 && transform.QIMExtract(coef[c.U][c.V], step) == b {
				continue
			}
			target := transform.QIMEmbed(coef[c.U][c.V], step, b)
			delta[c.U][c.V] = target - coef[c.U][c.V]
			dirty = true
		}
		if !dirty {
			return
		}

		d := transform.IDCT(&delta)
		for y := 0; y < transform.BlockSize; y++ {
			for x := 0; x < transform.BlockSize; x++ {
				off := r.Offset(bx*transform.BlockSize+x, by*transform.BlockSize+y, 0)
				for ch := 0; ch < 3; ch++ {
					pix[off+ch] = clampByte(float64(pix[off+ch]) + d[y][x])
				}
			}
		}
	}
}

// Bits reads coefficient parities in embedding order
func (m *DCT) Bits(_ context.Context, in carrier.Input, opts any) (bitstream.Source, int, models.Metrics, error) {
	step := opts.(*DCTOptions).Strength
	r, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	bw := r.Width() / transform.BlockSize

	cached, cachedBlk := transform.Block{}, -1
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		blk := i / len(MidBand)
		if blk != cachedBlk {
			luma := lumaBlock(r, blk%bw, blk/bw)
			cached, cachedBlk = transform.DCT(&luma), blk
		}
		c := MidBand[i%len(MidBand)]
		return transform.QIMExtract(cached[c.U][c.V], step), nil
	})

	var meta models.Metrics
	meta.Set("blocks", blockCount(r))
	meta.Set("strength", step)
	return src, blockCount(r) * len(MidBand), meta, nil
}
