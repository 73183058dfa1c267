package text

import (
	"context"
	"strings"
	"testing"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cover = "The quick brown fox\njumps over\nthe lazy dog.\n"

func unpack(t *testing.T, x carrier.Extractor, data []byte, pass string) ([]byte, error) {
	t.Helper()
	src, n, _, err := x.Bits(context.Background(), carrier.Input{Data: data}, nil)
	require.NoError(t, err)
	return bitstream.Unpack(src, n, pass)
}

func visible(s string) string {
	return strings.Map(func(r rune) rune {
		if isZeroWidth(r) {
			return -1
		}
		return r
	}, s)
}

func TestZeroWidthRoundTrip(t *testing.T) {
	m := NewZeroWidth()
	n, err := m.Capacity(context.Background(), []byte(cover), nil)
	require.NoError(t, err)
	assert.Equal(t, carrier.Unbounded, n)

	payload := []byte("a much longer payload than the cover text itself could ever hold")
	out, metrics, err := m.Embed(context.Background(), []byte(cover), bitstream.Pack(payload, "pw"), nil)
	require.NoError(t, err)
	assert.Equal(t, cover, visible(string(out.Data)))
	assert.True(t, strings.HasPrefix(string(out.Data), cover))
	bits, _ := metrics.Float("bits_embedded")
	assert.Equal(t, float64(bitstream.EncodedBits(len(payload))), bits)

	got, err := unpack(t, m, out.Data, "pw")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestZeroWidthAbsent(t *testing.T) {
	_, err := unpack(t, NewZeroWidth(), []byte(cover), "")
	assert.True(t, perr.IsKind(err, perr.KindCorruptOrAbsent))

	// a start sentinel with stray characters after it is not a frame
	broken := cover + "\u2060\u200Bx\u200C\uFEFF"
	_, err = unpack(t, NewZeroWidth(), []byte(broken), "")
	assert.True(t, perr.IsKind(err, perr.KindCorruptOrAbsent))
}

func TestZeroWidthSkipsStraySentinel(t *testing.T) {
	m := NewZeroWidth()
	out, _, err := m.Embed(context.Background(), []byte("lead \u2060 word"), bitstream.Pack([]byte("hi"), ""), nil)
	require.NoError(t, err)
	got, err := unpack(t, m, out.Data, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}

func TestWhitespaceRoundTrip(t *testing.T) {
	m := NewWhitespace()
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("line with trailing blanks \t \r\n")
	}
	c := []byte(b.String())

	n, err := m.Capacity(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	out, metrics, err := m.Embed(context.Background(), c, bitstream.Pack([]byte("ok"), ""), nil)
	require.NoError(t, err)
	bits, _ := metrics.Float("bits_embedded")
	assert.Equal(t, 48.0, bits)

	ls, nl := lines(string(out.Data))
	assert.True(t, nl)
	assert.Len(t, ls, 60)
	assert.True(t, strings.HasSuffix(ls[0], "\r"))

	got, err := unpack(t, m, out.Data, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestWhitespaceLastLineWithoutNewline(t *testing.T) {
	n, err := NewWhitespace().Capacity(context.Background(), []byte("a\nb\nc"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = NewWhitespace().Capacity(context.Background(), []byte(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWhitespaceAbsent(t *testing.T) {
	_, err := unpack(t, NewWhitespace(), []byte(cover), "")
	assert.True(t, perr.IsKind(err, perr.KindCorruptOrAbsent))
}

func TestInvalidUTF8(t *testing.T) {
	_, err := NewWhitespace().Capacity(context.Background(), []byte{0xff, 0xfe, 0x00}, nil)
	assert.True(t, perr.IsKind(err, perr.KindUnderlyingFormat))
}

func TestDetectors(t *testing.T) {
	zwd := NewZeroWidthDetector()
	clean, err := zwd.Detect(context.Background(), carrier.Input{Data: []byte(cover)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *clean.Probability)

	out, _, err := NewZeroWidth().Embed(context.Background(), []byte(cover), bitstream.Pack([]byte("x"), ""), nil)
	require.NoError(t, err)
	stego, err := zwd.Detect(context.Background(), carrier.Input{Data: out.Data}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *stego.Probability)

	empty, err := zwd.Detect(context.Background(), carrier.Input{Data: nil}, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Probability)

	wsd := NewWhitespaceDetector()
	clean, err = wsd.Detect(context.Background(), carrier.Input{Data: []byte(cover)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *clean.Probability)
}
