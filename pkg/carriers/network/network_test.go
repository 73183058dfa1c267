package network

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"testing"
	"time"

	"StegLab/pkg/bitstream"
	"StegLab/pkg/carrier"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/options"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	dstMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 2}
)

func udpFrame(t *testing.T, id uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Id: id,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte("steglab"))))
	return buf.Bytes()
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: srcMAC, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))
	return buf.Bytes()
}

// capture writes n UDP packets with random ids and jittered gaps, plus an ARP frame every tenth packet
func capture(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		frame := udpFrame(t, uint16(rng.Intn(65536)))
		if i%10 == 9 {
			frame = arpFrame(t)
		}
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
		ts = ts.Add(time.Duration(1+rng.Intn(50000)) * time.Microsecond)
	}
	return buf.Bytes()
}

func unpack(t *testing.T, x carrier.Extractor, data []byte, opts any) ([]byte, error) {
	t.Helper()
	src, n, _, err := x.Bits(context.Background(), carrier.Input{Data: data}, opts)
	require.NoError(t, err)
	return bitstream.Unpack(src, n, "")
}

func TestDecodeEncode(t *testing.T) {
	data := capture(t, 20, 1)
	c, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, c.Packets, 20)
	assert.Equal(t, layers.LinkTypeEthernet, c.LinkType)

	again, err := Encode(c)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Len(t, ipv4Refs(c), 18)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte("definitely not pcap data"))
	assert.True(t, perr.IsKind(err, perr.KindUnderlyingFormat))
}

func TestIPIDRoundTrip(t *testing.T) {
	m := NewIPID()
	cover := capture(t, 100, 2)
	capacity, err := m.Capacity(context.Background(), cover, nil)
	require.NoError(t, err)
	assert.Equal(t, 90, capacity)

	payload := []byte("hidden!")
	out, metrics, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, ContentType, out.ContentType)
	bits, _ := metrics.Float("bits_embedded")
	assert.Equal(t, 88.0, bits)

	got, err := unpack(t, m, out.Data, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// every rewritten header still carries a valid checksum
	c, err := Decode(out.Data)
	require.NoError(t, err)
	for _, ref := range ipv4Refs(c) {
		hdr := c.Packets[ref.pkt].Data[ref.start:ref.end]
		assert.Equal(t, ipv4Checksum(hdr), binary.BigEndian.Uint16(hdr[10:12]))
	}
}

func TestGapRoundTrip(t *testing.T) {
	m := NewGap()
	cover := capture(t, 60, 3)
	capacity, err := m.Capacity(context.Background(), cover, m.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 59, capacity)

	payload := []byte("gap")
	out, _, err := m.Embed(context.Background(), cover, bitstream.Pack(payload, ""), m.Defaults())
	require.NoError(t, err)

	got, err := unpack(t, m, out.Data, m.Defaults())
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	c, err := Decode(out.Data)
	require.NoError(t, err)
	for _, g := range gaps(c)[bitstream.EncodedBits(len(payload)):] {
		assert.InDelta(t, 0.01, g, 1e-9)
	}
}

func TestGapOptions(t *testing.T) {
	m := NewGap()
	opts := m.Defaults()
	require.NoError(t, options.Decode(options.Map{"base_gap": 0.001, "delta": 0.002}, opts))
	_, err := m.Capacity(context.Background(), capture(t, 3, 4), opts)
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
	assert.Equal(t, "delta", perr.WireFrom(err).Field)

	err = options.Decode(options.Map{"base_gap": -1}, m.Defaults())
	assert.True(t, perr.IsKind(err, perr.KindInvalidOptions))
}

func TestDetectors(t *testing.T) {
	cover := capture(t, 200, 5)
	out, _, err := NewGap().Embed(context.Background(), cover, bitstream.Pack(bytes.Repeat([]byte{0x5a}, 20), ""), NewGap().Defaults())
	require.NoError(t, err)

	td := NewTimingDetector()
	clean, err := td.Detect(context.Background(), carrier.Input{Data: cover}, nil)
	require.NoError(t, err)
	stego, err := td.Detect(context.Background(), carrier.Input{Data: out.Data}, nil)
	require.NoError(t, err)
	assert.Greater(t, *stego.Probability, *clean.Probability)

	hd := NewHeaderDetector()
	res, err := hd.Detect(context.Background(), carrier.Input{Data: cover}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Probability)

	tiny, err := td.Detect(context.Background(), carrier.Input{Data: capture(t, 1, 6)}, nil)
	require.NoError(t, err)
	assert.Nil(t, tiny.Probability)
}
