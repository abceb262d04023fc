// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/hdrstack/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// readIP decodes an IP header whose version is taken from the first nibble.
// For IPv6 the extension chain is walked as well, so the returned header's
// UpperProtocol is ready for transport dispatch.
func readIP(data []byte) (core.NetworkHeader, []byte, error) {
	if len(data) < 1 {
		return nil, nil, core.Truncated(core.LayerIPv4, 1, 0)
	}

	switch version := data[0] >> 4; version {
	case 4:
		ip, rest, err := readIPv4(data)
		if err != nil {
			return nil, nil, err
		}
		return ip, rest, nil
	case 6:
		ip, rest, err := readIPv6WithExtensions(data)
		if err != nil {
			return nil, nil, err
		}
		return ip, rest, nil
	default:
		return nil, nil, core.Malformed(core.LayerIPv4, "unsupported ip version %d", version)
	}
}

// readIPv4 decodes an IPv4 header including options.
func readIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.Truncated(core.LayerIPv4, ipv4HeaderMinLen, len(data))
	}

	if version := data[0] >> 4; version != 4 {
		return core.IPv4Header{}, nil, core.Malformed(core.LayerIPv4, "version %d", version)
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	ihl := data[0] & 0x0F
	headerLen := int(ihl) * 4
	if headerLen < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.Malformed(core.LayerIPv4, "ihl %d", ihl)
	}
	if len(data) < headerLen {
		return core.IPv4Header{}, nil, core.Truncated(core.LayerIPv4, headerLen, len(data))
	}

	totalLen := binary.BigEndian.Uint16(data[2:4])
	if int(totalLen) < headerLen {
		return core.IPv4Header{}, nil, core.Malformed(core.LayerIPv4, "total length %d below header length %d", totalLen, headerLen)
	}

	hdr := data[:headerLen:headerLen]
	flagsOffset := binary.BigEndian.Uint16(hdr[6:8])
	ip := core.IPv4Header{
		Contents:   hdr,
		IHL:        ihl,
		TOS:        hdr[1],
		TotalLen:   totalLen,
		ID:         binary.BigEndian.Uint16(hdr[4:6]),
		Flags:      uint8(flagsOffset >> 13),
		FragOffset: flagsOffset & 0x1FFF,
		TTL:        hdr[8],
		Protocol:   hdr[9],
		Checksum:   binary.BigEndian.Uint16(hdr[10:12]),
		SrcIP:      netip.AddrFrom4([4]byte(hdr[12:16])),
		DstIP:      netip.AddrFrom4([4]byte(hdr[16:20])),
		Options:    hdr[ipv4HeaderMinLen:],
	}

	return ip, data[headerLen:], nil
}

// readIPv6 decodes the fixed 40 byte IPv6 header. Extension headers are left
// in the returned remainder; Protocol is set to NextHeader.
func readIPv6(data []byte) (core.IPv6Header, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return core.IPv6Header{}, nil, core.Truncated(core.LayerIPv6, ipv6HeaderLen, len(data))
	}

	if version := data[0] >> 4; version != 6 {
		return core.IPv6Header{}, nil, core.Malformed(core.LayerIPv6, "version %d", version)
	}

	hdr := data[:ipv6HeaderLen:ipv6HeaderLen]
	first := binary.BigEndian.Uint32(hdr[0:4])
	ip := core.IPv6Header{
		Contents:     hdr,
		TrafficClass: uint8(first >> 20),
		FlowLabel:    first & 0x000FFFFF,
		PayloadLen:   binary.BigEndian.Uint16(hdr[4:6]),
		NextHeader:   hdr[6],
		HopLimit:     hdr[7],
		SrcIP:        netip.AddrFrom16([16]byte(hdr[8:24])),
		DstIP:        netip.AddrFrom16([16]byte(hdr[24:40])),
		Protocol:     hdr[6],
	}

	return ip, data[ipv6HeaderLen:], nil
}

// readIPv6WithExtensions decodes the fixed header and skips the extension
// chain behind it. The skipped bytes are recorded in Extensions.
func readIPv6WithExtensions(data []byte) (core.IPv6Header, []byte, error) {
	ip, rest, err := readIPv6(data)
	if err != nil {
		return core.IPv6Header{}, nil, err
	}

	protocol, after, err := skipIPv6Extensions(rest, ip.NextHeader)
	if err != nil {
		return core.IPv6Header{}, nil, err
	}

	n := len(rest) - len(after)
	ip.Extensions = rest[:n:n]
	ip.Protocol = protocol
	return ip, after, nil
}
