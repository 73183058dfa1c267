package text

import (
	"context"
	"strings"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
)

const (
	zeroBit  = '\u200B' // zero width space
	oneBit   = '\u200C' // zero width non-joiner
	frameBeg = '\u2060' // word joiner
	frameEnd = '\uFEFF' // zero width no-break space
)

// ZeroWidth appends the packed bits as invisible characters after the cover text
type ZeroWidth struct {
	carrier.BaseMethod
}

// NewZeroWidth creates the zero-width method
func NewZeroWidth() *ZeroWidth {
	return &ZeroWidth{carrier.NewBaseMethod("zero-width", "Zero-width characters",
		"Bits as U+200B/U+200C between U+2060 and U+FEFF sentinels after the text")}
}

// Capacity is unbounded; the channel only grows the text
func (m *ZeroWidth) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	if _, err := Decode(cover); err != nil {
		return 0, err
	}
	return carrier.Unbounded, nil
}

// Embed appends the framed bit run
func (m *ZeroWidth) Embed(_ context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	s, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	var b strings.Builder
	b.Grow(len(s) + 3*(len(bits)+2))
	b.WriteString(s)
	b.WriteRune(frameBeg)
	for _, bit := range bits {
		if bit&1 == 1 {
			b.WriteRune(oneBit)
		} else {
			b.WriteRune(zeroBit)
		}
	}
	b.WriteRune(frameEnd)

	metrics := textMetrics(len(bits), carrier.Unbounded)
	metrics.Set("visible_runes_changed", 0)
	return output(b.String()), metrics, nil
}

// Bits returns the bits of the first well-formed frame, or none
func (m *ZeroWidth) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	s, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	bits := findFrame(s)
	var meta models.Metrics
	meta.Set("framed", bits != nil)
	return bitstream.Slice(bits), len(bits), meta, nil
}

// findFrame scans for a start sentinel followed only by bit runes up to an end sentinel
func findFrame(s string) []uint8 {
	for {
		i := strings.IndexRune(s, frameBeg)
		if i < 0 {
			return nil
		}
		s = s[i+len(string(frameBeg)):]
		var bits []uint8
	run:
		for j, r := range s {
			switch r {
			case zeroBit:
				bits = append(bits, 0)
			case oneBit:
				bits = append(bits, 1)
			case frameEnd:
				if bits == nil {
					bits = []uint8{}
				}
				return bits
			default:
				s = s[j:]
				break run
			}
		}
		if !strings.ContainsRune(s, frameBeg) {
			return nil
		}
	}
}
