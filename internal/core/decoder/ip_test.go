package decoder

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hdrstack/internal/core"
)

func TestReadIPv4Basic(t *testing.T) {
	data := concat(ipv4Header(17, 4), []byte{0x01, 0x02, 0x03, 0x04})

	ip, rest, err := readIPv4(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, uint8(17), ip.Protocol)
	assert.Equal(t, uint8(64), ip.TTL)
	assert.Equal(t, uint16(24), ip.TotalLen)
	assert.Equal(t, uint16(0x1234), ip.ID)
	assert.Equal(t, uint8(0x2), ip.Flags) // DF
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), ip.SrcIP)
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), ip.DstIP)
	assert.Empty(t, ip.Options)
	assert.Equal(t, 20, ip.Len())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, rest)
}

func TestReadIPv4WithOptions(t *testing.T) {
	hdr := ipv4Header(6, 0)
	hdr[0] = 0x46 // IHL 6
	hdr = append(hdr, 0x01, 0x01, 0x01, 0x00) // NOP, NOP, NOP, EOL
	hdr[3] = 24
	data := concat(hdr, []byte{0xEE})

	ip, rest, err := readIPv4(data)
	require.NoError(t, err)

	assert.Equal(t, 24, ip.Len())
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x00}, ip.Options)
	assert.Equal(t, []byte{0xEE}, rest)
}

func TestReadIPv4Errors(t *testing.T) {
	badVersion := ipv4Header(6, 0)
	badVersion[0] = 0x55

	badIHL := ipv4Header(6, 0)
	badIHL[0] = 0x44

	shortOptions := ipv4Header(6, 20)
	shortOptions[0] = 0x4F // IHL 15 = 60 bytes

	badTotalLen := ipv4Header(6, 0)
	badTotalLen[2], badTotalLen[3] = 0x00, 0x10

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", make([]byte, 19), core.ErrPacketTooShort},
		{"wrong version", badVersion, core.ErrMalformedField},
		{"ihl below minimum", badIHL, core.ErrMalformedField},
		{"options truncated", shortOptions, core.ErrPacketTooShort},
		{"total length below header", badTotalLen, core.ErrMalformedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readIPv4(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var de *core.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, core.LayerIPv4, de.Layer)
		})
	}
}

func TestReadIPv6Basic(t *testing.T) {
	data := concat(ipv6Header(17, 4), []byte{0x01, 0x02, 0x03, 0x04})
	data[1] = 0xA1 // traffic class low nibble + flow label high nibble
	data[2], data[3] = 0x23, 0x45

	ip, rest, err := readIPv6(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(0x0A), ip.TrafficClass)
	assert.Equal(t, uint32(0x12345), ip.FlowLabel)
	assert.Equal(t, uint16(4), ip.PayloadLen)
	assert.Equal(t, uint8(17), ip.NextHeader)
	assert.Equal(t, uint8(17), ip.Protocol)
	assert.Equal(t, uint8(64), ip.HopLimit)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), ip.SrcIP)
	assert.Equal(t, netip.MustParseAddr("2001:db8::2"), ip.DstIP)
	assert.Len(t, rest, 4)
}

func TestReadIPv6Errors(t *testing.T) {
	badVersion := ipv6Header(17, 0)
	badVersion[0] = 0x40

	_, _, err := readIPv6(badVersion)
	assert.ErrorIs(t, err, core.ErrMalformedField)

	_, _, err = readIPv6(make([]byte, 39))
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
}

func TestReadIPv6WithExtensions(t *testing.T) {
	ext := concat(
		ipv6Ext(ipv6Routing, 1), // Hop-by-Hop, 16 bytes
		ipv6Ext(6, 0),           // Routing, 8 bytes
	)
	data := concat(ipv6Header(ipv6HopByHop, len(ext)+20), ext, tcpHeader(1, 2, 0))

	ip, rest, err := readIPv6WithExtensions(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(ipv6HopByHop), ip.NextHeader)
	assert.Equal(t, uint8(6), ip.Protocol)
	assert.Len(t, ip.Extensions, 24)
	assert.Equal(t, 64, ip.Len())
	assert.Len(t, rest, 20)
}

func TestReadIPVersionSensing(t *testing.T) {
	t.Run("v4", func(t *testing.T) {
		network, _, err := readIP(ipv4Header(17, 0))
		require.NoError(t, err)
		assert.IsType(t, core.IPv4Header{}, network)
	})

	t.Run("v6", func(t *testing.T) {
		network, _, err := readIP(ipv6Header(59, 0))
		require.NoError(t, err)
		assert.IsType(t, core.IPv6Header{}, network)
		assert.Equal(t, uint8(59), network.UpperProtocol())
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := readIP(nil)
		assert.ErrorIs(t, err, core.ErrPacketTooShort)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, _, err := readIP([]byte{0x50, 0x00})
		assert.ErrorIs(t, err, core.ErrMalformedField)
	})
}

func BenchmarkReadIPv4(b *testing.B) {
	data := concat(ipv4Header(17, 8), udpHeader(5000, 5001, 0))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := readIPv4(data)
		if err != nil {
			b.Fatal(err)
		}
	}
}
