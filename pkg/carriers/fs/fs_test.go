package fs

import (
	"context"
	"errors"
	"testing"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func companions(files map[string][]byte) carrier.CompanionFunc {
	return func(suffix string) ([]byte, bool, error) {
		data, ok := files[suffix]
		return data, ok, nil
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	for _, m := range []*Companion{NewSidecar(), NewSlack()} {
		m := m
		t.Run(m.Name(), func(t *testing.T) {
			cover := []byte("plain report body\n")
			payload := []byte("kept beside the file")

			out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, "pw"), m.Defaults())
			require.NoError(t, err)
			assert.Equal(t, cover, out.Data)
			assert.Equal(t, ".txt", out.Ext)
			require.Contains(t, out.Companions, m.Suffix())
			size, _ := metrics.Float("companion_bytes")
			assert.Equal(t, float64(4+len(payload)), size)

			in := carrier.Input{Data: out.Data, Companion: companions(out.Companions)}
			src, n, _, err := m.Bits(context.Background(), in, m.Defaults())
			require.NoError(t, err)
			got, err := bitstream.Unpack(src, n, "pw")
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestSlackMetrics(t *testing.T) {
	m := NewSlack()
	out, metrics, err := m.Embed(context.Background(), make([]byte, 4000), bitstream.Pack([]byte("x"), ""), m.Defaults())
	require.NoError(t, err)
	assert.NotNil(t, out)
	free, _ := metrics.Float("slack_bytes")
	assert.Equal(t, 96.0, free)
	fits, _ := metrics.Get("fits_slack")
	assert.Equal(t, true, fits)
}

func TestBitsWithoutCompanion(t *testing.T) {
	src, n, _, err := NewSidecar().Bits(context.Background(), carrier.Input{Data: []byte("x")}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = bitstream.Unpack(src, n, "")
	assert.True(t, perr.IsKind(err, perr.KindCorruptOrAbsent))
}

func TestCompanionDetectors(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	dets := c.Detectors()
	require.Len(t, dets, 2)

	// direct bytes: structurally inapplicable
	for _, d := range dets {
		res, err := d.Detect(context.Background(), carrier.Input{Data: []byte("x")}, nil)
		require.NoError(t, err)
		assert.Nil(t, res.Probability, d.Name())
	}

	in := carrier.Input{Data: []byte("x"), Companion: companions(map[string][]byte{SuffixSlack: {1, 2}})}
	ads, err := dets[0].Detect(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "ads", ads.Detector)
	assert.Equal(t, 0.0, *ads.Probability)

	slack, err := dets[1].Detect(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *slack.Probability)

	boom := carrier.Input{Companion: func(string) ([]byte, bool, error) { return nil, false, errors.New("disk") }}
	_, err = dets[0].Detect(context.Background(), boom, nil)
	assert.Error(t, err)
}

func TestAcceptsAnything(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.True(t, c.Accepts("application/zip"))
	n, err := c.Capacity(context.Background(), nil, "sidecar", nil)
	require.NoError(t, err)
	assert.Equal(t, carrier.Unbounded, n)
}
