// Package core defines core types with zero external dependencies.
package core

import (
	"net"
	"net/netip"
)

// EtherType identifies the protocol carried after a link or VLAN header.
type EtherType uint16

// EtherType values recognized by the decoder.
const (
	EtherTypeIPv4         EtherType = 0x0800
	EtherTypeARP          EtherType = 0x0806
	EtherTypeVLAN         EtherType = 0x8100 // 802.1Q customer tag
	EtherTypeIPv6         EtherType = 0x86DD
	EtherTypeQinQ         EtherType = 0x88A8 // 802.1ad provider bridging
	EtherTypeDoubleTagged EtherType = 0x9100 // pre-802.1ad double tagging
)

// IsVLAN reports whether t is one of the three VLAN markers.
func (t EtherType) IsVLAN() bool {
	return t == EtherTypeVLAN || t == EtherTypeQinQ || t == EtherTypeDoubleTagged
}

// IP protocol numbers the transport dispatcher knows about.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// EthernetHeader represents an L2 Ethernet II header.
type EthernetHeader struct {
	Contents  []byte           // 14 header bytes, view into the input
	DstMAC    net.HardwareAddr // view into Contents
	SrcMAC    net.HardwareAddr // view into Contents
	EtherType EtherType
}

// Len returns the number of bytes the header occupies.
func (h EthernetHeader) Len() int { return len(h.Contents) }

// VLANTag is a single 802.1Q tag.
type VLANTag struct {
	Contents     []byte
	Priority     uint8 // PCP, 3 bits
	DropEligible bool  // DEI
	ID           uint16
	EtherType    EtherType // type of whatever follows this tag
}

// Len returns the number of bytes the tag occupies.
func (t VLANTag) Len() int { return len(t.Contents) }

// IPv4Header represents an L3 IPv4 header including options.
type IPv4Header struct {
	Contents   []byte // IHL*4 bytes
	IHL        uint8
	TOS        uint8
	TotalLen   uint16
	ID         uint16
	Flags      uint8
	FragOffset uint16
	TTL        uint8
	Protocol   uint8
	Checksum   uint16
	SrcIP      netip.Addr // value type, zero allocation
	DstIP      netip.Addr
	Options    []byte // view into Contents, empty when IHL == 5
}

// IPv6Header represents the fixed IPv6 header plus any extension headers
// skipped on the way to the upper-layer protocol.
type IPv6Header struct {
	Contents     []byte // fixed 40 bytes
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   uint8 // next header field of the fixed header
	HopLimit     uint8
	SrcIP        netip.Addr
	DstIP        netip.Addr
	// Extensions is the view over the skipped extension chain.
	Extensions []byte
	// Protocol is the upper-layer protocol number found after the chain.
	Protocol uint8
}

// TCPHeader represents an L4 TCP header including options.
type TCPHeader struct {
	Contents   []byte // DataOffset*4 bytes
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	DataOffset uint8
	Flags      uint8 // URG, ACK, PSH, RST, SYN, FIN
	Window     uint16
	Checksum   uint16
	Urgent     uint16
	Options    []byte
}

// TCP flag bits as stored in TCPHeader.Flags.
const (
	TCPFlagFIN uint8 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
)

// UDPHeader represents an L4 UDP header.
type UDPHeader struct {
	Contents []byte // 8 bytes
	SrcPort  uint16
	DstPort  uint16
	Length   uint16 // header + data, as written on the wire
	Checksum uint16
}
