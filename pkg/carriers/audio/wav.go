// Package audio implements the PCM WAV carrier: sample LSB and echo hiding
// embedders, plus parity and echo detectors.
package audio

import (
	"bytes"
	"errors"
	"io"

	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Key is the registry key of the audio carrier
const Key = "audio"

// Formats accepted by the audio carrier
var Formats = []string{"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"}

const wavFormatPCM = 1

// New returns the audio carrier entry
func New() (*carrier.Carrier, error) {
	lsb := NewLSB()
	echo := NewEcho()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "16-bit PCM WAV audio",
		Formats:     Formats,
		Embedders:   []carrier.Embedder{lsb, echo},
		Extractors:  []carrier.Extractor{lsb, echo},
		Detectors:   []carrier.Detector{NewLSBDetector(), NewEchoDetector()},
	})
}

// PCM is decoded 16-bit audio with interleaved channel samples
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int
}

// Frames returns the per-channel sample count
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Channel returns the samples of channel ch as float64
func (p *PCM) Channel(ch int) []float64 {
	out := make([]float64, 0, p.Frames())
	for i := ch; i < len(p.Samples); i += p.Channels {
		out = append(out, float64(p.Samples[i]))
	}
	return out
}

// Clone returns a deep copy
func (p *PCM) Clone() *PCM {
	c := *p
	c.Samples = append([]int(nil), p.Samples...)
	return &c
}

// Decode parses a RIFF/WAVE file holding 16-bit integer PCM
func Decode(data []byte) (*PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, perr.FormatErrf(dec.Err(), "not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM || dec.BitDepth != 16 {
		return nil, perr.FormatErrf(nil, "unsupported WAV encoding: format %d, %d-bit (want 16-bit PCM)",
			dec.WavAudioFormat, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, perr.FormatErrf(err, "failed to read PCM data")
	}
	if dec.NumChans == 0 {
		return nil, perr.FormatErrf(nil, "WAV file declares no channels")
	}
	return &PCM{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    buf.Data,
	}, nil
}

// Encode writes p as a 16-bit PCM WAV file
func Encode(p *PCM) ([]byte, error) {
	out := &seekBuffer{}
	enc := wav.NewEncoder(out, p.SampleRate, 16, p.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: p.Channels, SampleRate: p.SampleRate},
		Data:           p.Samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.data, nil
}

func output(p *PCM) (*carrier.Output, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, perr.FormatErrf(err, "failed to encode stego WAV")
	}
	return &carrier.Output{Data: data, ContentType: "audio/wav", Ext: ".wav"}, nil
}

func clamp16(v float64) int {
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	case v < 0:
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder patches chunk sizes on Close
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
