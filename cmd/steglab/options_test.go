package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *optionFlags {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o := addOptionFlags(fs)
	require.NoError(t, fs.Parse(args))
	return o
}

func TestParsePairTypes(t *testing.T) {
	cases := map[string]any{
		"strength=12":  12,
		"decay=0.25":   0.25,
		"enabled=true": true,
		"name=lsb":     "lsb",
		"empty=":       "",
		"path=a=b":     "a=b",
		"spaced= 3 ":   3,
	}
	for in, want := range cases {
		_, got, err := parsePair(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, _, err := parsePair("novalue")
	assert.ErrorIs(t, err, errUsage)
}

func TestMethodOptionsMergeFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strength: 8\ndelay_long: 4\n"), 0o644))

	o := parse(t, "--options-file", path, "--opt", "strength=16")
	m, err := o.methodOptions()
	require.NoError(t, err)
	assert.Equal(t, 16, m["strength"])
	assert.Equal(t, 4, m["delay_long"])
}

func TestJSONOptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base_gap": 0.02, "delta": 0.004}`), 0o644))

	m, err := parse(t, "--options-file", path).methodOptions()
	require.NoError(t, err)
	assert.Equal(t, 0.02, m["base_gap"])
}

func TestDetectorOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watermark-dct:\n  strength: 12\n"), 0o644))

	o := parse(t, "--options-file", path, "--opt", "echo.delay_long=6")
	m, err := o.detectorOptions()
	require.NoError(t, err)
	assert.Equal(t, 12, m["watermark-dct"]["strength"])
	assert.Equal(t, 6, m["echo"]["delay_long"])

	_, err = parse(t, "--opt", "strength=3").detectorOptions()
	assert.ErrorIs(t, err, errUsage)
}

func TestRunUsage(t *testing.T) {
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"frobnicate"}))
}
