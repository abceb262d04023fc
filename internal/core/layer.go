// Package core defines core types.
package core

// Layer names a header kind in a HeaderStack.
type Layer uint8

const (
	LayerUnknown Layer = iota
	LayerEthernet
	LayerVLAN
	LayerIPv4
	LayerIPv6
	LayerIPv6Extension
	LayerTCP
	LayerUDP
)

var layerNames = [...]string{
	LayerUnknown:       "unknown",
	LayerEthernet:      "ethernet",
	LayerVLAN:          "vlan",
	LayerIPv4:          "ipv4",
	LayerIPv6:          "ipv6",
	LayerIPv6Extension: "ipv6_ext",
	LayerTCP:           "tcp",
	LayerUDP:           "udp",
}

// String returns the lowercase layer name, also used as a metric label value.
func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return layerNames[LayerUnknown]
}
