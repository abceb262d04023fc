// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"firestige.xyz/hdrstack/internal/core"
)

// Entry selects where in the protocol stack a buffer starts.
type Entry uint8

const (
	// EntryAuto picks the entry point from the capture link type.
	EntryAuto Entry = iota
	// EntryLink decodes from the Ethernet header.
	EntryLink
	// EntryNetwork decodes from the IP header.
	EntryNetwork
)

func (e Entry) String() string {
	switch e {
	case EntryLink:
		return "link"
	case EntryNetwork:
		return "network"
	default:
		return "auto"
	}
}

// ParseEntry parses "auto", "link" or "network".
func ParseEntry(s string) (Entry, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return EntryAuto, nil
	case "link", "ethernet":
		return EntryLink, nil
	case "network", "ip":
		return EntryNetwork, nil
	default:
		return EntryAuto, fmt.Errorf("%w: unknown entry %q (must be auto, link or network)", core.ErrConfigInvalid, s)
	}
}

// linkTypeBSDRaw is DLT_RAW as written by some BSD libpcap builds.
const linkTypeBSDRaw layers.LinkType = 12

// ForLinkType returns the entry point matching a pcap link type.
func ForLinkType(lt layers.LinkType) (Func, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return FromLinkLayer, nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6, linkTypeBSDRaw:
		return FromNetworkLayer, nil
	default:
		return nil, fmt.Errorf("%w: %s (%d)", core.ErrUnsupportedLinkType, lt, uint32(lt))
	}
}

// Resolve returns the decode function for e. For EntryAuto the link type of
// the capture decides.
func (e Entry) Resolve(lt layers.LinkType) (Func, error) {
	switch e {
	case EntryLink:
		return FromLinkLayer, nil
	case EntryNetwork:
		return FromNetworkLayer, nil
	default:
		return ForLinkType(lt)
	}
}
