package text

import (
	"context"
	"strings"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
)

const (
	gapZero = "  "
	gapOne  = " \t"
)

// Whitespace hides one bit per line as a two-character trailing gap
type Whitespace struct {
	carrier.BaseMethod
}

// NewWhitespace creates the trailing-whitespace method
func NewWhitespace() *Whitespace {
	return &Whitespace{carrier.NewBaseMethod("trailing-whitespace", "Trailing whitespace",
		"One bit per line: two spaces for 0, space and tab for 1")}
}

// Capacity returns the line count
func (m *Whitespace) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	s, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	ls, _ := lines(s)
	return len(ls), nil
}

// splitCR separates a trailing carriage return so gaps go before it
func splitCR(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}

// Embed rewrites the trailing whitespace of the first len(bits) lines
func (m *Whitespace) Embed(_ context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	s, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	ls, nl := lines(s)
	for i, b := range bits {
		body, cr := splitCR(ls[i])
		gap := gapZero
		if b&1 == 1 {
			gap = gapOne
		}
		ls[i] = strings.TrimRight(body, " \t") + gap + cr
	}
	return output(joinLines(ls, nl)), textMetrics(len(bits), len(ls)), nil
}

func gapBit(line string) (uint8, bool) {
	body, _ := splitCR(line)
	switch {
	case strings.HasSuffix(body, gapOne):
		return 1, true
	case strings.HasSuffix(body, gapZero):
		return 0, true
	}
	return 0, false
}

// Bits reads gaps from the leading run of marked lines
func (m *Whitespace) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	s, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	ls, _ := lines(s)
	bits := make([]uint8, 0, len(ls))
	for _, l := range ls {
		b, ok := gapBit(l)
		if !ok {
			break
		}
		bits = append(bits, b)
	}
	var meta models.Metrics
	meta.Set("lines", len(ls))
	meta.Set("marked_lines", len(bits))
	return bitstream.Slice(bits), len(bits), meta, nil
}
