// Package bitstream packs payloads into the length-prefixed bit sequence that
// every carrier method writes, and unpacks it again.
//
// Layout: a 32-bit big-endian header holding the payload length in bits,
// followed by the payload bits, most significant bit first. A passphrase
// scrambles payload bits with a derived keystream; the header is never
// scrambled, so a wrong passphrase still yields a consistent length.
package bitstream

import (
	"crypto/sha256"
	"io"

	perr "StegLab/pkg/errors"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// HeaderBits is the fixed header width
const HeaderBits = 32

const keystreamInfo = "steglab bitstream keystream v1"

// Source yields carrier bits in scan order; i is always < the maxBits passed to Unpack
type Source interface {
	Bit(i int) (uint8, error)
}

// SourceFunc adapts a function to a Source
type SourceFunc func(i int) (uint8, error)

// Bit implements Source
func (f SourceFunc) Bit(i int) (uint8, error) { return f(i) }

// Slice is a Source over pre-extracted bits
type Slice []uint8

// Bit implements Source
func (s Slice) Bit(i int) (uint8, error) { return s[i] & 1, nil }

// EncodedBits returns the bit length of a packed payload of n bytes
func EncodedBits(n int) int { return HeaderBits + 8*n }

// Pack returns header and payload bits, one bit per element
func Pack(payload []byte, passphrase string) []uint8 {
	n := len(payload) * 8
	bits := make([]uint8, 0, HeaderBits+n)
	for i := HeaderBits - 1; i >= 0; i-- {
		bits = append(bits, uint8(uint32(n)>>uint(i))&1)
	}

	body := BytesToBits(payload)
	applyKeystream(body, passphrase)
	return append(bits, body...)
}

// Unpack reads a header and payload from src. It returns a CorruptOrAbsent error when
// fewer than HeaderBits are available, when the declared length is not a whole number
// of bytes, or when the declared length would read past maxBits.
func Unpack(src Source, maxBits int, passphrase string) ([]byte, error) {
	if maxBits < HeaderBits {
		err := perr.CorruptOrAbsentf("carrier holds %d bits, header needs %d", maxBits, HeaderBits)
		return nil, perr.WithNum(err, "available_bits", float64(maxBits))
	}

	var n uint32
	for i := 0; i < HeaderBits; i++ {
		b, err := src.Bit(i)
		if err != nil {
			return nil, err
		}
		n = n<<1 | uint32(b&1)
	}

	if n%8 != 0 {
		err := perr.CorruptOrAbsentf("declared length %d is not a whole number of bytes", n)
		return nil, perr.WithNum(err, "declared_bits", float64(n))
	}
	if uint64(n) > uint64(maxBits-HeaderBits) {
		err := perr.CorruptOrAbsentf("declared length %d exceeds the %d bits available", n, maxBits-HeaderBits)
		err = perr.WithNum(err, "declared_bits", float64(n))
		return nil, perr.WithNum(err, "available_bits", float64(maxBits-HeaderBits))
	}

	body := make([]uint8, n)
	for i := range body {
		b, err := src.Bit(HeaderBits + i)
		if err != nil {
			return nil, err
		}
		body[i] = b & 1
	}
	applyKeystream(body, passphrase)
	return BitsToBytes(body), nil
}

// BytesToBits expands data MSB first
func BytesToBits(data []byte) []uint8 {
	bits := make([]uint8, len(data)*8)
	for i, c := range data {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = (c >> uint(7-j)) & 1
		}
	}
	return bits
}

// BitsToBytes folds bits MSB first; a trailing partial byte is zero padded
func BitsToBytes(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		out[i/8] |= (b & 1) << uint(7-i%8)
	}
	return out
}

// applyKeystream XORs a passphrase-derived bit sequence over bits in place
func applyKeystream(bits []uint8, passphrase string) {
	if passphrase == "" || len(bits) == 0 {
		return
	}

	stream := make([]byte, (len(bits)+7)/8)
	if _, err := io.ReadFull(keystream(passphrase), stream); err != nil {
		// the blake3 XOF never runs dry
		panic(err)
	}
	for i := range bits {
		bits[i] ^= (stream[i/8] >> uint(7-i%8)) & 1
	}
}

func keystream(passphrase string) io.Reader {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(keystreamInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		panic(err)
	}
	h, err := blake3.NewKeyed(key)
	if err != nil {
		panic(err)
	}
	return h.Digest()
}
