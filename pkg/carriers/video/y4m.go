// Package video implements the frame-sequence carrier over uncompressed
// YUV4MPEG2 streams: per-byte frame LSB and Haar LL quantization.
package video

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
)

const (
	streamMagic = "YUV4MPEG2"
	frameMagic  = "FRAME"

	// maxDimension bounds W and H so that frame sizes cannot overflow
	maxDimension = 1 << 16
)

// Key is the registry key of the video carrier
const Key = "video"

// ContentType of stego output
const ContentType = "video/x-yuv4mpeg"

// Formats accepted by the video carrier
var Formats = []string{ContentType, "video/yuv4mpeg", "application/x-yuv4mpeg"}

// New returns the video carrier entry
func New() (*carrier.Carrier, error) {
	lsb := NewFrameLSB()
	haar := NewHaar()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "Uncompressed YUV4MPEG2 frame sequences",
		Formats:     Formats,
		Embedders:   []carrier.Embedder{lsb, haar},
		Extractors:  []carrier.Extractor{lsb, haar},
		Detectors:   []carrier.Detector{NewFrameLSBDetector(), NewDWTDetector()},
	})
}

// Stream is a decoded y4m file. Frames hold every plane of a frame, Y first.
type Stream struct {
	Width  int
	Height int
	// Chroma is the C parameter, "420jpeg" when absent
	Chroma string
	// Params are the raw stream header parameters, written back unchanged
	Params      []string
	Frames      [][]byte
	FrameParams []string
}

// LumaSize returns the Y plane size
func (s *Stream) LumaSize() int { return s.Width * s.Height }

// FrameSize returns the byte size of one frame for the stream's chroma layout
func (s *Stream) FrameSize() (int, error) {
	return frameSize(s.Width, s.Height, s.Chroma)
}

// Bytes returns the total frame payload size
func (s *Stream) Bytes() int {
	n := 0
	for _, f := range s.Frames {
		n += len(f)
	}
	return n
}

// Clone returns a deep copy
func (s *Stream) Clone() *Stream {
	c := *s
	c.Frames = make([][]byte, len(s.Frames))
	for i, f := range s.Frames {
		c.Frames[i] = append([]byte(nil), f...)
	}
	c.FrameParams = append([]string(nil), s.FrameParams...)
	return &c
}

func frameSize(w, h int, chroma string) (int, error) {
	if w <= 0 || h <= 0 || w > maxDimension || h > maxDimension {
		return 0, fmt.Errorf("frame geometry %dx%d outside 1..%d", w, h, maxDimension)
	}
	luma := int64(w) * int64(h)
	cw, ch := int64(w+1)/2, int64(h+1)/2
	var size int64
	switch {
	case chroma == "mono":
		size = luma
	case strings.HasPrefix(chroma, "420"):
		size = luma + 2*cw*ch
	case chroma == "422":
		size = luma + 2*cw*int64(h)
	case chroma == "444":
		size = 3 * luma
	default:
		return 0, fmt.Errorf("unsupported chroma %q", chroma)
	}
	if size <= 0 || size > int64(math.MaxInt) {
		return 0, fmt.Errorf("frame size %d overflows", size)
	}
	return int(size), nil
}

// Decode parses a YUV4MPEG2 stream, enforcing the frame and byte budget in ctx
func Decode(ctx context.Context, data []byte) (*Stream, error) {
	limits := carrier.LimitsFrom(ctx)
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		err := perr.ResourceExceededf("video is %d bytes, budget is %d", len(data), limits.MaxBytes)
		return nil, perr.WithNum(perr.WithNum(err, "bytes", float64(len(data))), "max_bytes", float64(limits.MaxBytes))
	}

	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return nil, perr.FormatErrf(nil, "missing YUV4MPEG2 stream header")
	}
	fields := strings.Fields(string(data[:nl]))
	if len(fields) == 0 || fields[0] != streamMagic {
		return nil, perr.FormatErrf(nil, "not a YUV4MPEG2 stream")
	}

	s := &Stream{Chroma: "420jpeg", Params: fields[1:]}
	for _, p := range s.Params {
		if p == "" {
			continue
		}
		var err error
		switch p[0] {
		case 'W':
			s.Width, err = strconv.Atoi(p[1:])
		case 'H':
			s.Height, err = strconv.Atoi(p[1:])
		case 'C':
			s.Chroma = p[1:]
		}
		if err != nil {
			return nil, perr.FormatErrf(err, "bad stream parameter %q", p)
		}
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, perr.FormatErrf(nil, "stream header lacks a positive W and H")
	}
	size, err := s.FrameSize()
	if err != nil {
		return nil, perr.FormatErrf(err, "unsupported stream layout")
	}

	rest := data[nl+1:]
	for len(rest) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limits.MaxFrames > 0 && len(s.Frames) >= limits.MaxFrames {
			err := perr.ResourceExceededf("video exceeds the %d frame budget", limits.MaxFrames)
			return nil, perr.WithNum(err, "max_frames", float64(limits.MaxFrames))
		}
		eol := bytes.IndexByte(rest, '\n')
		if eol < 0 || !bytes.HasPrefix(rest, []byte(frameMagic)) {
			return nil, perr.FormatErrf(nil, "frame %d: missing FRAME header", len(s.Frames))
		}
		params := strings.TrimSpace(string(rest[len(frameMagic):eol]))
		rest = rest[eol+1:]
		if size <= 0 || len(rest) < size {
			return nil, perr.FormatErrf(nil, "frame %d: truncated, want %d bytes, have %d", len(s.Frames), size, len(rest))
		}
		s.Frames = append(s.Frames, append([]byte(nil), rest[:size]...))
		s.FrameParams = append(s.FrameParams, params)
		rest = rest[size:]
	}
	return s, nil
}

// Encode serializes s back into a YUV4MPEG2 stream
func Encode(s *Stream) []byte {
	var buf bytes.Buffer
	buf.Grow(s.Bytes() + len(s.Frames)*8 + 64)
	buf.WriteString(streamMagic)
	for _, p := range s.Params {
		buf.WriteByte(' ')
		buf.WriteString(p)
	}
	buf.WriteByte('\n')
	for i, f := range s.Frames {
		buf.WriteString(frameMagic)
		if i < len(s.FrameParams) && s.FrameParams[i] != "" {
			buf.WriteByte(' ')
			buf.WriteString(s.FrameParams[i])
		}
		buf.WriteByte('\n')
		buf.Write(f)
	}
	return buf.Bytes()
}

// NewStream returns an empty stream with the given geometry, 25 fps, progressive
func NewStream(w, h int, chroma string) *Stream {
	return &Stream{
		Width:  w,
		Height: h,
		Chroma: chroma,
		Params: []string{
			"W" + strconv.Itoa(w),
			"H" + strconv.Itoa(h),
			"F25:1", "Ip", "A1:1",
			"C" + chroma,
		},
	}
}

func output(s *Stream) *carrier.Output {
	return &carrier.Output{Data: Encode(s), ContentType: ContentType, Ext: ".y4m"}
}
