package video

import (
	"context"
	"math/rand"
	"testing"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseY4M(t *testing.T, w, h, frames int, seed int64) []byte {
	t.Helper()
	s := NewStream(w, h, "420jpeg")
	size, err := s.FrameSize()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < frames; i++ {
		f := make([]byte, size)
		for j := range f {
			f[j] = byte(40 + rng.Intn(170))
		}
		s.Frames = append(s.Frames, f)
		s.FrameParams = append(s.FrameParams, "")
	}
	return Encode(s)
}

func unpack(t *testing.T, ctx context.Context, x carrier.Extractor, data []byte, opts any) ([]byte, error) {
	t.Helper()
	src, n, _, err := x.Bits(ctx, carrier.Input{Data: data}, opts)
	require.NoError(t, err)
	return bitstream.Unpack(src, n, "")
}

func TestY4MCodec(t *testing.T) {
	data := noiseY4M(t, 16, 8, 3, 1)
	s, err := Decode(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Width)
	assert.Equal(t, 8, s.Height)
	assert.Len(t, s.Frames, 3)
	assert.Len(t, s.Frames[0], 16*8+2*8*4)
	assert.Equal(t, data, Encode(s))
}

func TestY4MRejects(t *testing.T) {
	for name, data := range map[string][]byte{
		"magic":     []byte("RIFF W16 H8\n"),
		"no header": []byte("YUV4MPEG2 W16 H8"),
		"geometry":  []byte("YUV4MPEG2 W0 H8\n"),
		"truncated": []byte("YUV4MPEG2 W16 H8\nFRAME\nabc"),
		"chroma":    []byte("YUV4MPEG2 W16 H8 C411\n"),
		"huge mono": []byte("YUV4MPEG2 W3037000500 H3037000500 Cmono\nFRAME\nabcdefgh"),
		"huge 444":  []byte("YUV4MPEG2 W4000000000 H4000000000 C444\nFRAME\nabcdefgh"),
		"oversized": []byte("YUV4MPEG2 W4096 H4096\nFRAME\nabcdefgh"),
	} {
		_, err := Decode(context.Background(), data)
		assert.True(t, perr.IsKind(err, perr.KindUnderlyingFormat), name)
	}
}

func TestBudget(t *testing.T) {
	data := noiseY4M(t, 16, 16, 5, 2)

	ctx := carrier.WithLimits(context.Background(), carrier.Limits{MaxFrames: 4})
	_, err := NewFrameLSB().Capacity(ctx, data, nil)
	assert.True(t, perr.IsKind(err, perr.KindResourceExceeded))

	ctx = carrier.WithLimits(context.Background(), carrier.Limits{MaxBytes: int64(len(data) - 1)})
	_, err = NewFrameLSB().Capacity(ctx, data, nil)
	assert.True(t, perr.IsKind(err, perr.KindResourceExceeded))

	ctx = carrier.WithLimits(context.Background(), carrier.Limits{MaxFrames: 5, MaxBytes: int64(len(data))})
	_, err = NewFrameLSB().Capacity(ctx, data, nil)
	assert.NoError(t, err)
}

func TestFrameLSBRoundTrip(t *testing.T) {
	m := NewFrameLSB()
	cover := noiseY4M(t, 16, 16, 2, 3)
	capacity, err := m.Capacity(context.Background(), cover, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*(256+128), capacity)

	payload := make([]byte, (capacity-bitstream.HeaderBits)/8)
	rand.New(rand.NewSource(4)).Read(payload)
	out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, ContentType, out.ContentType)
	_, ok := metrics.Float("psnr")
	assert.True(t, ok)

	got, err := unpack(t, context.Background(), m, out.Data, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHaarRoundTrip(t *testing.T) {
	m := NewHaar()
	cover := noiseY4M(t, 32, 16, 2, 5)
	capacity, err := m.Capacity(context.Background(), cover, m.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2*16*8, capacity)

	payload := []byte("haar ll payload")
	out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), m.Defaults())
	require.NoError(t, err)
	step, _ := metrics.Float("step")
	assert.Equal(t, 8.0, step)

	got, err := unpack(t, context.Background(), m, out.Data, m.Defaults())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHaarSaturatedBlocks(t *testing.T) {
	s := NewStream(16, 16, "mono")
	f := make([]byte, 256)
	for i := range f {
		f[i] = 255
	}
	s.Frames = [][]byte{f}
	s.FrameParams = []string{""}
	cover := Encode(s)

	m := NewHaar()
	out, _, err := m.Embed(context.Background(), cover, bitstream.Pack([]byte("x"), ""), m.Defaults())
	require.NoError(t, err)
	got, err := unpack(t, context.Background(), m, out.Data, m.Defaults())
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestDWTDetectorRises(t *testing.T) {
	m := NewHaar()
	cover := noiseY4M(t, 32, 32, 2, 6)
	capacity, _ := m.Capacity(context.Background(), cover, m.Defaults())
	payload := make([]byte, (capacity-bitstream.HeaderBits)/8)
	rand.New(rand.NewSource(7)).Read(payload)
	out, _, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), m.Defaults())
	require.NoError(t, err)

	d := NewDWTDetector()
	clean, err := d.Detect(context.Background(), carrier.Input{Data: cover}, d.Defaults())
	require.NoError(t, err)
	stego, err := d.Detect(context.Background(), carrier.Input{Data: out.Data}, d.Defaults())
	require.NoError(t, err)
	assert.Greater(t, *stego.Probability, *clean.Probability)
	assert.InDelta(t, 1.0, *stego.Probability, 1e-9)
}

func TestFrameLSBDetector(t *testing.T) {
	res, err := NewFrameLSBDetector().Detect(context.Background(), carrier.Input{Data: noiseY4M(t, 16, 16, 2, 8)}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Probability)
	frames, _ := res.Stats.Float("frames")
	assert.Equal(t, 2.0, frames)
}
