// Package image implements the raster image carrier: spatial RGB LSB and DCT
// mid-band embedding, plus the image steganalysis detectors.
package image

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/stats"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Key is the registry key of the image carrier
const Key = "image"

// Formats accepted by the image carrier
var Formats = []string{"image/png", "image/bmp", "image/tiff", "image/gif", "image/jpeg"}

// New returns the image carrier entry
func New() (*carrier.Carrier, error) {
	lsb := NewLSB()
	dct := NewDCT()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "Raster images; stego output is written losslessly",
		Formats:     Formats,
		Embedders:   []carrier.Embedder{lsb, dct},
		Extractors:  []carrier.Extractor{lsb, dct},
		Detectors: []carrier.Detector{
			NewLSBDetector(),
			NewChiSquareDetector(),
			NewRSDetector(),
			NewDCTDetector(),
		},
	})
}

// Raster is a decoded image as 8-bit non-premultiplied RGBA with origin (0,0)
type Raster struct {
	Img    *image.NRGBA
	Format string
}

// Width returns the raster width
func (r *Raster) Width() int { return r.Img.Rect.Dx() }

// Height returns the raster height
func (r *Raster) Height() int { return r.Img.Rect.Dy() }

// Offset returns the Pix index of channel ch (0=R,1=G,2=B) of pixel (x, y)
func (r *Raster) Offset(x, y, ch int) int {
	return y*r.Img.Stride + x*4 + ch
}

// RGBOffset returns the Pix index of the i-th RGB sample in row-major, R,G,B order
func (r *Raster) RGBOffset(i int) int {
	p := i / 3
	w := r.Width()
	return r.Offset(p%w, p/w, i%3)
}

// RGB returns the R,G,B channel bytes in scan order
func (r *Raster) RGB() []byte {
	w, h := r.Width(), r.Height()
	out := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := r.Img.Pix[y*r.Img.Stride:]
		for x := 0; x < w; x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// Luma returns the Rec. 601 luminance of every pixel in scan order
func (r *Raster) Luma() []float64 {
	w, h := r.Width(), r.Height()
	out := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		row := r.Img.Pix[y*r.Img.Stride:]
		for x := 0; x < w; x++ {
			out = append(out, 0.299*float64(row[x*4])+0.587*float64(row[x*4+1])+0.114*float64(row[x*4+2]))
		}
	}
	return out
}

// SSIM returns the structural similarity of the luminance of r and o
func (r *Raster) SSIM(o *Raster) float64 {
	return stats.SSIM(r.Luma(), o.Luma(), r.Width(), r.Height())
}

// Clone returns a deep copy
func (r *Raster) Clone() *Raster {
	img := image.NewNRGBA(r.Img.Rect)
	copy(img.Pix, r.Img.Pix)
	return &Raster{Img: img, Format: r.Format}
}

// Decode parses image bytes into a Raster
func Decode(data []byte) (*Raster, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, perr.FormatErrf(err, "failed to decode image")
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, perr.FormatErrf(nil, "image has no pixels")
	}
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		for y := 0; y < b.Dy(); y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+b.Dx()*4], n.Pix[y*n.Stride:])
		}
	} else {
		draw.Draw(img, img.Rect, src, b.Min, draw.Src)
	}
	return &Raster{Img: img, Format: format}, nil
}

// Encode writes r losslessly. BMP and TIFF inputs keep their container;
// everything else, JPEG included, becomes PNG.
func Encode(r *Raster) ([]byte, string, string, error) {
	var buf bytes.Buffer
	switch r.Format {
	case "bmp":
		if err := bmp.Encode(&buf, r.Img); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/bmp", ".bmp", nil
	case "tiff":
		if err := tiff.Encode(&buf, r.Img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/tiff", ".tiff", nil
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, r.Img); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/png", ".png", nil
	}
}

func output(r *Raster) (*carrier.Output, error) {
	data, ct, ext, err := Encode(r)
	if err != nil {
		return nil, perr.FormatErrf(err, "failed to encode stego image")
	}
	return &carrier.Output{Data: data, ContentType: ct, Ext: ext}, nil
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
