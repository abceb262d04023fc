// Package core defines the header stack produced by the decoder.
package core

// VLANHeader is either SingleVLAN or DoubleVLAN. A nil VLANHeader means the
// frame carried no tag.
type VLANHeader interface {
	Len() int
	vlan()
}

// SingleVLAN is a frame with exactly one tag.
type SingleVLAN struct {
	Tag VLANTag
}

// DoubleVLAN is a frame with an outer and an inner tag (QinQ).
type DoubleVLAN struct {
	Outer VLANTag
	Inner VLANTag
}

func (v SingleVLAN) Len() int { return v.Tag.Len() }
func (v DoubleVLAN) Len() int { return v.Outer.Len() + v.Inner.Len() }

func (SingleVLAN) vlan() {}
func (DoubleVLAN) vlan() {}

// EffectiveEtherType returns the type field of the innermost decoded tag.
func EffectiveEtherType(v VLANHeader) (EtherType, bool) {
	switch v := v.(type) {
	case SingleVLAN:
		return v.Tag.EtherType, true
	case DoubleVLAN:
		return v.Inner.EtherType, true
	}
	return 0, false
}

// NetworkHeader is either IPv4Header or IPv6Header.
type NetworkHeader interface {
	Len() int
	// UpperProtocol is the protocol number used for transport dispatch.
	UpperProtocol() uint8
	network()
}

func (h IPv4Header) Len() int             { return len(h.Contents) }
func (h IPv4Header) UpperProtocol() uint8 { return h.Protocol }
func (IPv4Header) network()               {}

func (h IPv6Header) Len() int             { return len(h.Contents) + len(h.Extensions) }
func (h IPv6Header) UpperProtocol() uint8 { return h.Protocol }
func (IPv6Header) network()               {}

// TransportHeader is either TCPHeader or UDPHeader. A nil TransportHeader
// means the protocol number was not one the decoder handles.
type TransportHeader interface {
	Len() int
	Ports() (src, dst uint16)
	transport()
}

func (h TCPHeader) Len() int                 { return len(h.Contents) }
func (h TCPHeader) Ports() (src, dst uint16) { return h.SrcPort, h.DstPort }
func (TCPHeader) transport()                 {}

func (h UDPHeader) Len() int                 { return len(h.Contents) }
func (h UDPHeader) Ports() (src, dst uint16) { return h.SrcPort, h.DstPort }
func (UDPHeader) transport()                 {}

// HeaderStack is the result of one decode call. All slices in it, including
// the header Contents, point into the buffer that was decoded; the stack must
// not be used after that buffer is reused.
type HeaderStack struct {
	Link      *EthernetHeader
	VLAN      VLANHeader
	Network   NetworkHeader
	Transport TransportHeader
	// Payload is everything after the last decoded header.
	Payload []byte
}

// HeaderLen returns the total number of bytes consumed by decoded headers.
// HeaderLen() + len(Payload) always equals the length of the decoded buffer.
func (s *HeaderStack) HeaderLen() int {
	n := 0
	if s.Link != nil {
		n += s.Link.Len()
	}
	if s.VLAN != nil {
		n += s.VLAN.Len()
	}
	if s.Network != nil {
		n += s.Network.Len()
	}
	if s.Transport != nil {
		n += s.Transport.Len()
	}
	return n
}

// Layers lists the layers present in the stack, outermost first.
func (s *HeaderStack) Layers() []Layer {
	layers := make([]Layer, 0, 6)
	if s.Link != nil {
		layers = append(layers, LayerEthernet)
	}
	switch s.VLAN.(type) {
	case SingleVLAN:
		layers = append(layers, LayerVLAN)
	case DoubleVLAN:
		layers = append(layers, LayerVLAN, LayerVLAN)
	}
	switch n := s.Network.(type) {
	case IPv4Header:
		layers = append(layers, LayerIPv4)
	case IPv6Header:
		layers = append(layers, LayerIPv6)
		if len(n.Extensions) > 0 {
			layers = append(layers, LayerIPv6Extension)
		}
	}
	switch s.Transport.(type) {
	case TCPHeader:
		layers = append(layers, LayerTCP)
	case UDPHeader:
		layers = append(layers, LayerUDP)
	}
	return layers
}
