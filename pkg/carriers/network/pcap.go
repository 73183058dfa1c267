// Package network implements the offline packet capture carrier. Captures are
// parsed and rewritten in memory; nothing here opens a socket.
package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Key is the registry key of the network carrier
const Key = "network"

// ContentType of stego output
const ContentType = "application/vnd.tcpdump.pcap"

// Formats accepted by the network carrier
var Formats = []string{ContentType, "application/pcap", "application/x-pcap"}

// New returns the network carrier entry
func New() (*carrier.Carrier, error) {
	ipid := NewIPID()
	gap := NewGap()
	return carrier.New(carrier.Spec{
		Key:         Key,
		Description: "Offline libpcap capture files",
		Formats:     Formats,
		Embedders:   []carrier.Embedder{ipid, gap},
		Extractors:  []carrier.Extractor{ipid, gap},
		Detectors:   []carrier.Detector{NewHeaderDetector(), NewTimingDetector()},
	})
}

// Packet is one captured frame
type Packet struct {
	Info gopacket.CaptureInfo
	Data []byte
}

// Capture is a decoded pcap file
type Capture struct {
	LinkType layers.LinkType
	Snaplen  uint32
	Packets  []Packet
}

// Clone returns a deep copy
func (c *Capture) Clone() *Capture {
	out := &Capture{LinkType: c.LinkType, Snaplen: c.Snaplen, Packets: make([]Packet, len(c.Packets))}
	for i, p := range c.Packets {
		out.Packets[i] = Packet{Info: p.Info, Data: append([]byte(nil), p.Data...)}
	}
	return out
}

// Decode reads a classic libpcap file
func Decode(data []byte) (*Capture, error) {
	r, err := pcapgo.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, perr.FormatErrf(err, "not a pcap capture")
	}
	c := &Capture{LinkType: r.LinkType(), Snaplen: r.Snaplen()}
	for {
		pkt, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, perr.FormatErrf(err, "packet %d unreadable", len(c.Packets))
		}
		c.Packets = append(c.Packets, Packet{Info: ci, Data: pkt})
	}
	return c, nil
}

// Encode writes c as a microsecond-resolution pcap file
func Encode(c *Capture) ([]byte, error) {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	snaplen := c.Snaplen
	if snaplen == 0 {
		snaplen = 65535
	}
	if err := w.WriteFileHeader(snaplen, c.LinkType); err != nil {
		return nil, err
	}
	for _, p := range c.Packets {
		if err := w.WritePacket(p.Info, p.Data); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func output(c *Capture) (*carrier.Output, error) {
	data, err := Encode(c)
	if err != nil {
		return nil, perr.FormatErrf(err, "failed to write stego capture")
	}
	return &carrier.Output{Data: data, ContentType: ContentType, Ext: ".pcap"}, nil
}

// ipv4Header locates the first IPv4 header of a packet and returns its byte range
func ipv4Header(data []byte, link layers.LinkType) (start, end int, ok bool) {
	pkt := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	off := 0
	for _, l := range pkt.Layers() {
		if l.LayerType() == layers.LayerTypeIPv4 {
			ip, isIP := l.(*layers.IPv4)
			if !isIP || len(ip.Contents) < 20 || off+len(ip.Contents) > len(data) {
				return 0, 0, false
			}
			return off, off + len(ip.Contents), true
		}
		off += len(l.LayerContents())
	}
	return 0, 0, false
}

// ipv4Checksum returns the RFC 791 header checksum with the checksum field zeroed
func ipv4Checksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		if i == 10 {
			continue
		}
		sum += uint32(binary.BigEndian.Uint16(hdr[i:]))
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// ipRef is the location of an IPv4 header inside a capture
type ipRef struct{ pkt, start, end int }

// ipv4Refs returns the IPv4 headers in capture order
func ipv4Refs(c *Capture) []ipRef {
	var out []ipRef
	for i, p := range c.Packets {
		if s, e, ok := ipv4Header(p.Data, c.LinkType); ok {
			out = append(out, ipRef{pkt: i, start: s, end: e})
		}
	}
	return out
}

func gaps(c *Capture) []float64 {
	if len(c.Packets) < 2 {
		return nil
	}
	out := make([]float64, 0, len(c.Packets)-1)
	for i := 1; i < len(c.Packets); i++ {
		out = append(out, c.Packets[i].Info.Timestamp.Sub(c.Packets[i-1].Info.Timestamp).Seconds())
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond)
}
