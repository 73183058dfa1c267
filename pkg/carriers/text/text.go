// Package text implements the plain text carrier: zero-width characters appended
// after the visible text, and trailing whitespace patterns at line ends.
package text

import (
	"strings"
	"unicode/utf8"

	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/models"
)

// Key is the registry key of the text carrier
const Key = "text"

// ContentType of stego output
const ContentType = "text/plain; charset=utf-8"

// Formats accepted by the text carrier
var Formats = []string{"text/plain", "text/markdown", "text/csv", "text/*"}

// New returns the text carrier entry
func New() (*carrier.Carrier, error) {
	zw := NewZeroWidth()
	ws := NewWhitespace()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "UTF-8 plain text",
		Formats:     Formats,
		Embedders:   []carrier.Embedder{zw, ws},
		Extractors:  []carrier.Extractor{zw, ws},
		Detectors:   []carrier.Detector{NewZeroWidthDetector(), NewWhitespaceDetector()},
	})
}

// Decode validates data as UTF-8 text
func Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", perr.FormatErrf(nil, "text carrier is not valid UTF-8")
	}
	return string(data), nil
}

func output(s string) *carrier.Output {
	return &carrier.Output{Data: []byte(s), ContentType: ContentType, Ext: ".txt"}
}

// lines splits s on \n. A final newline does not start another line.
func lines(s string) (out []string, trailingNewline bool) {
	if s == "" {
		return nil, false
	}
	trailingNewline = strings.HasSuffix(s, "\n")
	if trailingNewline {
		s = s[:len(s)-1]
	}
	return strings.Split(s, "\n"), trailingNewline
}

func joinLines(ls []string, trailingNewline bool) string {
	s := strings.Join(ls, "\n")
	if trailingNewline {
		s += "\n"
	}
	return s
}

func textMetrics(bits, capacity int) models.Metrics {
	var m models.Metrics
	m.Set("bits_embedded", bits)
	if capacity != carrier.Unbounded {
		m.Set("capacity_bits", capacity)
		if capacity > 0 {
			m.Set("utilization", float64(bits)/float64(capacity))
		}
	}
	return m
}
