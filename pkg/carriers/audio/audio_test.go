package audio

import (
	"context"
	"math/rand"
	"testing"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/options"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseWAV(t *testing.T, sampleRate, channels, frames int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	p := &PCM{SampleRate: sampleRate, Channels: channels, Samples: make([]int, frames*channels)}
	for i := range p.Samples {
		p.Samples[i] = rng.Intn(16001) - 8000
	}
	data, err := Encode(p)
	require.NoError(t, err)
	return data
}

func unpack(t *testing.T, x carrier.Extractor, data []byte, opts any, pass string) ([]byte, error) {
	t.Helper()
	src, n, _, err := x.Bits(context.Background(), carrier.Input{Data: data}, opts)
	require.NoError(t, err)
	return bitstream.Unpack(src, n, pass)
}

func TestWAVRoundTrip(t *testing.T) {
	data := noiseWAV(t, 8000, 2, 100, 1)
	p, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 8000, p.SampleRate)
	assert.Equal(t, 2, p.Channels)
	assert.Equal(t, 100, p.Frames())
	assert.Len(t, p.Samples, 200)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("RIFF....not really"))
	assert.True(t, perr.IsKind(err, perr.KindUnderlyingFormat))
}

func TestPCMLSBRoundTrip(t *testing.T) {
	m := NewLSB()
	cover := noiseWAV(t, 8000, 2, 2000, 2)

	capacity, err := m.Capacity(context.Background(), cover, nil)
	require.NoError(t, err)
	assert.Equal(t, 4000, capacity)

	payload := []byte("pcm payload")
	out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, "k"), nil)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", out.ContentType)

	bits, _ := metrics.Float("bits_embedded")
	assert.Equal(t, float64(bitstream.EncodedBits(len(payload))), bits)
	_, ok := metrics.Float("snr_db")
	assert.True(t, ok)

	got, err := unpack(t, m, out.Data, nil, "k")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEchoRoundTrip(t *testing.T) {
	m := NewEcho()
	opts := m.Defaults()
	require.NoError(t, options.Decode(options.Map{"frame_size": 256}, opts))

	cover := noiseWAV(t, 8000, 1, 32000, 3)
	capacity, err := m.Capacity(context.Background(), cover, opts)
	require.NoError(t, err)
	assert.Equal(t, 125, capacity)

	out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack([]byte("hello world"), ""), opts)
	require.NoError(t, err)
	short, _ := metrics.Float("delay_short")
	long, _ := metrics.Float("delay_long")
	assert.Equal(t, 16.0, short)
	assert.Equal(t, 32.0, long)

	got, err := unpack(t, m, out.Data, opts, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func TestEchoOptionBounds(t *testing.T) {
	m := NewEcho()

	err := options.Decode(options.Map{"decay": 1.5}, m.Defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
	assert.Equal(t, "decay", perr.WireFrom(err).Field)

	opts := m.Defaults()
	require.NoError(t, options.Decode(options.Map{"delay_short": 40, "delay_long": 20}, opts))
	_, err = m.Capacity(context.Background(), noiseWAV(t, 8000, 1, 1000, 4), opts)
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
}

func TestEchoDetectorRises(t *testing.T) {
	m := NewEcho()
	opts := m.Defaults()
	require.NoError(t, options.Decode(options.Map{"frame_size": 256}, opts))
	cover := noiseWAV(t, 8000, 1, 32000, 5)

	payload := make([]byte, 11)
	for i := range payload {
		payload[i] = 0xFF
	}
	out, _, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), opts)
	require.NoError(t, err)

	d := NewEchoDetector()
	dopts := d.Defaults()
	require.NoError(t, options.Decode(options.Map{"frame_size": 256}, dopts))

	clean, err := d.Detect(context.Background(), carrier.Input{Data: cover}, dopts)
	require.NoError(t, err)
	stego, err := d.Detect(context.Background(), carrier.Input{Data: out.Data}, dopts)
	require.NoError(t, err)
	require.NotNil(t, clean.Probability)
	require.NotNil(t, stego.Probability)
	assert.Greater(t, *stego.Probability, *clean.Probability)
}

func TestLSBDetector(t *testing.T) {
	p := &PCM{SampleRate: 8000, Channels: 1, Samples: make([]int, 4000)}
	for i := range p.Samples {
		// parity alternates exactly
		p.Samples[i] = 200*(i%5) - 400 + i%2
	}
	cover, err := Encode(p)
	require.NoError(t, err)

	d := NewLSBDetector()
	before, err := d.Detect(context.Background(), carrier.Input{Data: cover}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *before.Probability)

	out, _, err := NewLSB().Embed(context.Background(), cover, bitstream.Pack([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), ""), nil)
	require.NoError(t, err)
	after, err := d.Detect(context.Background(), carrier.Input{Data: out.Data}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, *after.Probability, *before.Probability)
}

func TestTooShortForHeader(t *testing.T) {
	cover := noiseWAV(t, 8000, 1, 20, 6)
	_, err := unpack(t, NewLSB(), cover, nil, "")
	assert.True(t, perr.IsKind(err, perr.KindCorruptOrAbsent))
}

func TestCarrierEntry(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, Key, c.Key())
	assert.True(t, c.Accepts("audio/wav"))
	var ids []string
	for _, d := range c.Detectors() {
		ids = append(ids, d.Name())
	}
	assert.Equal(t, []string{"lsb", "echo"}, ids)
}
