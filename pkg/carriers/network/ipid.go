package network

import (
	"context"
	"encoding/binary"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	"StegLab/pkg/models"
)

// IPID hides one bit in the low bit of the identification field of each IPv4
// packet and recomputes the header checksum. Non-IPv4 frames are skipped.
type IPID struct {
	carrier.BaseMethod
}

// NewIPID creates the ip-id-lsb method
func NewIPID() *IPID {
	return &IPID{carrier.NewBaseMethod("ip-id-lsb", "IP ID parity", "Parity of the IPv4 identification field, one bit per IPv4 packet")}
}

// Capacity returns the IPv4 packet count
func (m *IPID) Capacity(_ context.Context, cover []byte, _ any) (int, error) {
	c, err := Decode(cover)
	if err != nil {
		return 0, err
	}
	return len(ipv4Refs(c)), nil
}

// Embed rewrites identification parities
func (m *IPID) Embed(ctx context.Context, cover []byte, bits []uint8, _ any) (*carrier.Output, models.Metrics, error) {
	orig, err := Decode(cover)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	stego := orig.Clone()
	refs := ipv4Refs(stego)

	changed := 0
	for i, b := range bits {
		ref := refs[i]
		hdr := stego.Packets[ref.pkt].Data[ref.start:ref.end]
		id := binary.BigEndian.Uint16(hdr[4:6])
		next := id&^1 | uint16(b&1)
		if next == id {
			continue
		}
		binary.BigEndian.PutUint16(hdr[4:6], next)
		binary.BigEndian.PutUint16(hdr[10:12], ipv4Checksum(hdr))
		changed++
	}

	out, err := output(stego)
	if err != nil {
		return nil, nil, err
	}
	var metrics models.Metrics
	metrics.Set("bits_embedded", len(bits))
	metrics.Set("capacity_bits", len(refs))
	if len(refs) > 0 {
		metrics.Set("utilization", float64(len(bits))/float64(len(refs)))
	}
	metrics.Set("packets", len(orig.Packets))
	metrics.Set("headers_rewritten", changed)
	return out, metrics, nil
}

// Bits reads identification parities
func (m *IPID) Bits(_ context.Context, in carrier.Input, _ any) (bitstream.Source, int, models.Metrics, error) {
	c, err := Decode(in.Data)
	if err != nil {
		return nil, 0, nil, err
	}
	refs := ipv4Refs(c)
	src := bitstream.SourceFunc(func(i int) (uint8, error) {
		ref := refs[i]
		return c.Packets[ref.pkt].Data[ref.start+5] & 1, nil
	})
	var meta models.Metrics
	meta.Set("packets", len(c.Packets))
	meta.Set("ipv4_packets", len(refs))
	return src, len(refs), meta, nil
}
