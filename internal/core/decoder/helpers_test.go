package decoder

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firestige.xyz/hdrstack/internal/core"
)

var (
	testDstMAC = []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testSrcMAC = []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
)

// stackCmpOpts lets cmp compare header stacks field by field.
var stackCmpOpts = cmp.Options{
	cmp.Comparer(func(a, b netip.Addr) bool { return a == b }),
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ethHeader(etherType uint16) []byte {
	b := make([]byte, 0, ethernetHeaderLen)
	b = append(b, testDstMAC...)
	b = append(b, testSrcMAC...)
	return binary.BigEndian.AppendUint16(b, etherType)
}

func vlanTag(id uint16, etherType uint16) []byte {
	b := binary.BigEndian.AppendUint16(nil, id&0x0FFF)
	return binary.BigEndian.AppendUint16(b, etherType)
}

// ipv4Header builds a 20 byte header from 192.168.1.1 to 192.168.1.2 whose
// total length covers payloadLen bytes.
func ipv4Header(protocol uint8, payloadLen int) []byte {
	b := []byte{
		0x45,       // Version 4, IHL 5
		0x00,       // DSCP, ECN
		0x00, 0x00, // Total Length
		0x12, 0x34, // Identification
		0x40, 0x00, // Flags: DF
		0x40,       // TTL: 64
		protocol,   // Protocol
		0x00, 0x00, // Checksum
		192, 168, 1, 1, // Src IP
		192, 168, 1, 2, // Dst IP
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(ipv4HeaderMinLen+payloadLen))
	return b
}

// ipv6Header builds a 40 byte header from 2001:db8::1 to 2001:db8::2.
func ipv6Header(next uint8, payloadLen int) []byte {
	b := make([]byte, ipv6HeaderLen)
	b[0] = 0x60 // Version 6
	binary.BigEndian.PutUint16(b[4:6], uint16(payloadLen))
	b[6] = next
	b[7] = 64
	copy(b[8:24], netip.MustParseAddr("2001:db8::1").AsSlice())
	copy(b[24:40], netip.MustParseAddr("2001:db8::2").AsSlice())
	return b
}

// ipv6Ext builds a generic 8-octet-unit extension header of size (extLen+1)*8.
func ipv6Ext(next uint8, extLen uint8) []byte {
	b := make([]byte, (int(extLen)+1)*8)
	b[0] = next
	b[1] = extLen
	return b
}

func udpHeader(src, dst uint16, payloadLen int) []byte {
	b := binary.BigEndian.AppendUint16(nil, src)
	b = binary.BigEndian.AppendUint16(b, dst)
	b = binary.BigEndian.AppendUint16(b, uint16(udpHeaderLen+payloadLen))
	return binary.BigEndian.AppendUint16(b, 0)
}

func tcpHeader(src, dst uint16, flags uint8) []byte {
	return []byte{
		byte(src >> 8), byte(src),
		byte(dst >> 8), byte(dst),
		0x00, 0x00, 0x00, 0x01, // Seq Num: 1
		0x00, 0x00, 0x00, 0x02, // Ack Num: 2
		0x50,       // Data Offset: 5 (20 bytes)
		flags,      // Flags
		0x20, 0x00, // Window Size
		0x00, 0x00, // Checksum
		0x00, 0x00, // Urgent Pointer
	}
}

// requireConserved checks that headers plus payload account for every input byte.
func requireConserved(t testing.TB, stack *core.HeaderStack, inputLen int) {
	t.Helper()
	if got := stack.HeaderLen() + len(stack.Payload); got != inputLen {
		t.Fatalf("byte conservation broken: headers %d + payload %d = %d, input %d",
			stack.HeaderLen(), len(stack.Payload), got, inputLen)
	}
}
