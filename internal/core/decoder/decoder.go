// Package decoder implements L2-L4 protocol stack decoding.
//
// Decoding never copies packet bytes: every header and the payload of the
// returned stack are views into the input. A failure in any header aborts the
// whole call and no stack is returned. An ether type or protocol number the
// decoder does not handle is not a failure; it ends the stack and the
// remaining bytes become the payload.
package decoder

import "firestige.xyz/hdrstack/internal/core"

// Func decodes one buffer into a header stack.
type Func func(data []byte) (*core.HeaderStack, error)

// FromLinkLayer decodes a buffer that starts with an Ethernet II header,
// followed by up to two VLAN tags, an IP header and a transport header.
func FromLinkLayer(data []byte) (*core.HeaderStack, error) {
	eth, rest, err := readEthernet(data)
	if err != nil {
		return nil, err
	}

	vlan, etherType, rest, err := readVLAN(rest, eth.EtherType)
	if err != nil {
		return nil, err
	}

	stack := &core.HeaderStack{
		Link: &eth,
		VLAN: vlan,
	}

	var network core.NetworkHeader
	switch etherType {
	case core.EtherTypeIPv4:
		ip, ipRest, err := readIPv4(rest)
		if err != nil {
			return nil, err
		}
		network, rest = ip, ipRest
	case core.EtherTypeIPv6:
		ip, ipRest, err := readIPv6WithExtensions(rest)
		if err != nil {
			return nil, err
		}
		network, rest = ip, ipRest
	default:
		// Non-IP frame (ARP, LLDP, ...): everything after the link layer is payload
		stack.Payload = rest
		return stack, nil
	}

	transport, rest, err := readTransport(network.UpperProtocol(), rest)
	if err != nil {
		return nil, err
	}

	stack.Network = network
	stack.Transport = transport
	stack.Payload = rest
	return stack, nil
}

// FromNetworkLayer decodes a buffer that starts directly with an IPv4 or IPv6
// header. Link and VLAN are always nil in the result.
func FromNetworkLayer(data []byte) (*core.HeaderStack, error) {
	network, rest, err := readIP(data)
	if err != nil {
		return nil, err
	}

	transport, rest, err := readTransport(network.UpperProtocol(), rest)
	if err != nil {
		return nil, err
	}

	return &core.HeaderStack{
		Network:   network,
		Transport: transport,
		Payload:   rest,
	}, nil
}
