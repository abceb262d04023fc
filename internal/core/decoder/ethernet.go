// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net"

	"firestige.xyz/hdrstack/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
)

// readEthernet decodes an Ethernet II header.
// Returns EthernetHeader and remaining payload.
func readEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetHeader{}, nil, core.Truncated(core.LayerEthernet, ethernetHeaderLen, len(data))
	}

	hdr := data[:ethernetHeaderLen:ethernetHeaderLen]
	eth := core.EthernetHeader{
		Contents:  hdr,
		DstMAC:    net.HardwareAddr(hdr[0:6]),
		SrcMAC:    net.HardwareAddr(hdr[6:12]),
		EtherType: core.EtherType(binary.BigEndian.Uint16(hdr[12:14])),
	}
	return eth, data[ethernetHeaderLen:], nil
}

// readVLANTag decodes a single 802.1Q tag: 2 bytes TCI + 2 bytes EtherType.
func readVLANTag(data []byte) (core.VLANTag, []byte, error) {
	if len(data) < vlanHeaderLen {
		return core.VLANTag{}, nil, core.Truncated(core.LayerVLAN, vlanHeaderLen, len(data))
	}

	hdr := data[:vlanHeaderLen:vlanHeaderLen]
	tci := binary.BigEndian.Uint16(hdr[0:2])
	tag := core.VLANTag{
		Contents:     hdr,
		Priority:     uint8(tci >> 13),
		DropEligible: tci&0x1000 != 0,
		ID:           tci & 0x0FFF, // Lower 12 bits are VLAN ID
		EtherType:    core.EtherType(binary.BigEndian.Uint16(hdr[2:4])),
	}
	return tag, data[vlanHeaderLen:], nil
}

// readVLAN resolves zero, one or two VLAN tags following a link header of
// type etherType. It returns the tags (nil if none), the ether type that
// governs the next layer and the remaining bytes.
//
// At most two tags are consumed. If the inner tag's type is itself a VLAN
// marker it is returned as the effective type unchanged.
func readVLAN(data []byte, etherType core.EtherType) (core.VLANHeader, core.EtherType, []byte, error) {
	if !etherType.IsVLAN() {
		return nil, etherType, data, nil
	}

	outer, rest, err := readVLANTag(data)
	if err != nil {
		return nil, 0, nil, err
	}
	if !outer.EtherType.IsVLAN() {
		return core.SingleVLAN{Tag: outer}, outer.EtherType, rest, nil
	}

	inner, rest, err := readVLANTag(rest)
	if err != nil {
		return nil, 0, nil, err
	}
	return core.DoubleVLAN{Outer: outer, Inner: inner}, inner.EtherType, rest, nil
}
