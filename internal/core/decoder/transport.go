// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/hdrstack/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// readTransport decodes the transport layer header (TCP/UDP).
// For any other protocol it returns a nil header and data unchanged.
func readTransport(protocol uint8, data []byte) (core.TransportHeader, []byte, error) {
	switch protocol {
	case core.ProtocolTCP:
		tcp, rest, err := readTCP(data)
		if err != nil {
			return nil, nil, err
		}
		return tcp, rest, nil
	case core.ProtocolUDP:
		udp, rest, err := readUDP(data)
		if err != nil {
			return nil, nil, err
		}
		return udp, rest, nil
	default:
		// Unsupported transport protocol (e.g., SCTP, ICMP): the rest is payload
		return nil, data, nil
	}
}

// readUDP decodes a UDP header.
func readUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.UDPHeader{}, nil, core.Truncated(core.LayerUDP, udpHeaderLen, len(data))
	}

	hdr := data[:udpHeaderLen:udpHeaderLen]
	udp := core.UDPHeader{
		Contents: hdr,
		SrcPort:  binary.BigEndian.Uint16(hdr[0:2]),
		DstPort:  binary.BigEndian.Uint16(hdr[2:4]),
		Length:   binary.BigEndian.Uint16(hdr[4:6]),
		Checksum: binary.BigEndian.Uint16(hdr[6:8]),
	}

	return udp, data[udpHeaderLen:], nil
}

// readTCP decodes a TCP header including options.
func readTCP(data []byte) (core.TCPHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TCPHeader{}, nil, core.Truncated(core.LayerTCP, tcpHeaderMinLen, len(data))
	}

	// Data Offset (upper 4 bits of byte 12), in 32-bit words
	dataOffset := data[12] >> 4
	headerLen := int(dataOffset) * 4
	if headerLen < tcpHeaderMinLen {
		return core.TCPHeader{}, nil, core.Malformed(core.LayerTCP, "data offset %d", dataOffset)
	}
	if len(data) < headerLen {
		return core.TCPHeader{}, nil, core.Truncated(core.LayerTCP, headerLen, len(data))
	}

	hdr := data[:headerLen:headerLen]
	tcp := core.TCPHeader{
		Contents:   hdr,
		SrcPort:    binary.BigEndian.Uint16(hdr[0:2]),
		DstPort:    binary.BigEndian.Uint16(hdr[2:4]),
		SeqNum:     binary.BigEndian.Uint32(hdr[4:8]),
		AckNum:     binary.BigEndian.Uint32(hdr[8:12]),
		DataOffset: dataOffset,
		// Byte 13: | CWR | ECE | URG | ACK | PSH | RST | SYN | FIN |
		Flags:    hdr[13] & 0x3F,
		Window:   binary.BigEndian.Uint16(hdr[14:16]),
		Checksum: binary.BigEndian.Uint16(hdr[16:18]),
		Urgent:   binary.BigEndian.Uint16(hdr[18:20]),
		Options:  hdr[tcpHeaderMinLen:],
	}

	return tcp, data[headerLen:], nil
}
