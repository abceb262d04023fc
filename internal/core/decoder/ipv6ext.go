// Package decoder implements protocol decoding.
package decoder

import "firestige.xyz/hdrstack/internal/core"

// IPv6 extension header identifiers (RFC 8200, RFC 4302, RFC 6275, RFC 7401,
// RFC 5533).
const (
	ipv6HopByHop    = 0
	ipv6Routing     = 43
	ipv6Fragment    = 44
	ipv6Auth        = 51
	ipv6DestOptions = 60
	ipv6Mobility    = 135
	ipv6HIP         = 139
	ipv6Shim6       = 140
)

const (
	ipv6FragmentLen = 8
	ipv6ExtMinLen   = 8
	maxIPv6ExtChain = 7
)

// skipIPv6Extensions walks the extension header chain starting with the
// header identified by next. It returns the first protocol number that is not
// a skippable extension header and the bytes after the chain.
//
// The walk is bounded to maxIPv6ExtChain headers.
func skipIPv6Extensions(data []byte, next uint8) (uint8, []byte, error) {
	rest := data
	for i := 0; ; i++ {
		if !isIPv6Extension(next) {
			return next, rest, nil
		}
		if i == maxIPv6ExtChain {
			return 0, nil, &core.DecodeError{
				Layer: core.LayerIPv6Extension,
				Field: "more than 7 extension headers",
				Err:   core.ErrUnterminatedExtChain,
			}
		}

		if len(rest) < ipv6ExtMinLen {
			return 0, nil, core.Truncated(core.LayerIPv6Extension, ipv6ExtMinLen, len(rest))
		}

		var hdrLen int
		switch next {
		case ipv6Fragment:
			hdrLen = ipv6FragmentLen
		case ipv6Auth:
			// Payload Len is in 4-octet units, minus 2
			hdrLen = (int(rest[1]) + 2) * 4
		default:
			// Hdr Ext Len is in 8-octet units, not including the first 8
			hdrLen = (int(rest[1]) + 1) * 8
		}
		if len(rest) < hdrLen {
			return 0, nil, core.Truncated(core.LayerIPv6Extension, hdrLen, len(rest))
		}

		next = rest[0]
		rest = rest[hdrLen:]
	}
}

func isIPv6Extension(next uint8) bool {
	switch next {
	case ipv6HopByHop, ipv6Routing, ipv6Fragment, ipv6Auth, ipv6DestOptions,
		ipv6Mobility, ipv6HIP, ipv6Shim6:
		return true
	}
	return false
}
