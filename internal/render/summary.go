// Package render turns decoded header stacks into printable summaries.
package render

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"firestige.xyz/hdrstack/internal/core"
	"firestige.xyz/hdrstack/internal/pipeline"
)

// Summary is a flat, serializable view of one decoded packet.
type Summary struct {
	Index     uint64            `json:"index,omitempty" yaml:"index,omitempty"`
	Timestamp string            `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Length    int               `json:"length" yaml:"length"`
	Layers    []string          `json:"layers,omitempty" yaml:"layers,omitempty"`
	Link      *LinkSummary      `json:"link,omitempty" yaml:"link,omitempty"`
	VLAN      []VLANSummary     `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	Network   *NetworkSummary   `json:"network,omitempty" yaml:"network,omitempty"`
	Transport *TransportSummary `json:"transport,omitempty" yaml:"transport,omitempty"`
	Payload   *PayloadSummary   `json:"payload,omitempty" yaml:"payload,omitempty"`
	Error     *ErrorSummary     `json:"error,omitempty" yaml:"error,omitempty"`
	Skipped   string            `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type LinkSummary struct {
	Src       string `json:"src" yaml:"src"`
	Dst       string `json:"dst" yaml:"dst"`
	EtherType string `json:"ether_type" yaml:"ether_type"`
}

type VLANSummary struct {
	ID           uint16 `json:"id" yaml:"id"`
	Priority     uint8  `json:"priority" yaml:"priority"`
	DropEligible bool   `json:"drop_eligible,omitempty" yaml:"drop_eligible,omitempty"`
	EtherType    string `json:"ether_type" yaml:"ether_type"`
}

type NetworkSummary struct {
	Version   int    `json:"version" yaml:"version"`
	Src       string `json:"src" yaml:"src"`
	Dst       string `json:"dst" yaml:"dst"`
	Protocol  uint8  `json:"protocol" yaml:"protocol"`
	TTL       uint8  `json:"ttl" yaml:"ttl"` // hop limit for IPv6
	HeaderLen int    `json:"header_len" yaml:"header_len"`
	ExtLen    int    `json:"ext_len,omitempty" yaml:"ext_len,omitempty"`
}

type TransportSummary struct {
	Protocol  string `json:"protocol" yaml:"protocol"`
	SrcPort   uint16 `json:"src_port" yaml:"src_port"`
	DstPort   uint16 `json:"dst_port" yaml:"dst_port"`
	HeaderLen int    `json:"header_len" yaml:"header_len"`
	Flags     string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Seq       uint32 `json:"seq,omitempty" yaml:"seq,omitempty"`
	Ack       uint32 `json:"ack,omitempty" yaml:"ack,omitempty"`
	Window    uint16 `json:"window,omitempty" yaml:"window,omitempty"`
}

type PayloadSummary struct {
	Length int    `json:"length" yaml:"length"`
	Hex    string `json:"hex,omitempty" yaml:"hex,omitempty"`
}

type ErrorSummary struct {
	Kind    string `json:"kind" yaml:"kind"`
	Layer   string `json:"layer" yaml:"layer"`
	Message string `json:"message" yaml:"message"`
}

// Summarize builds a Summary for stack. At most hexBytes payload bytes are
// included as hex; 0 omits the dump.
func Summarize(stack *core.HeaderStack, length, hexBytes int) Summary {
	s := Summary{Length: length}
	if stack == nil {
		return s
	}

	for _, l := range stack.Layers() {
		s.Layers = append(s.Layers, l.String())
	}

	if eth := stack.Link; eth != nil {
		s.Link = &LinkSummary{
			Src:       eth.SrcMAC.String(),
			Dst:       eth.DstMAC.String(),
			EtherType: etherTypeString(eth.EtherType),
		}
	}

	switch v := stack.VLAN.(type) {
	case core.SingleVLAN:
		s.VLAN = []VLANSummary{vlanSummary(v.Tag)}
	case core.DoubleVLAN:
		s.VLAN = []VLANSummary{vlanSummary(v.Outer), vlanSummary(v.Inner)}
	}

	switch ip := stack.Network.(type) {
	case core.IPv4Header:
		s.Network = &NetworkSummary{
			Version:   4,
			Src:       ip.SrcIP.String(),
			Dst:       ip.DstIP.String(),
			Protocol:  ip.Protocol,
			TTL:       ip.TTL,
			HeaderLen: ip.Len(),
		}
	case core.IPv6Header:
		s.Network = &NetworkSummary{
			Version:   6,
			Src:       ip.SrcIP.String(),
			Dst:       ip.DstIP.String(),
			Protocol:  ip.Protocol,
			TTL:       ip.HopLimit,
			HeaderLen: ip.Len(),
			ExtLen:    len(ip.Extensions),
		}
	}

	switch tp := stack.Transport.(type) {
	case core.TCPHeader:
		s.Transport = &TransportSummary{
			Protocol:  core.LayerTCP.String(),
			SrcPort:   tp.SrcPort,
			DstPort:   tp.DstPort,
			HeaderLen: tp.Len(),
			Flags:     TCPFlags(tp.Flags),
			Seq:       tp.SeqNum,
			Ack:       tp.AckNum,
			Window:    tp.Window,
		}
	case core.UDPHeader:
		s.Transport = &TransportSummary{
			Protocol:  core.LayerUDP.String(),
			SrcPort:   tp.SrcPort,
			DstPort:   tp.DstPort,
			HeaderLen: tp.Len(),
		}
	}

	s.Payload = &PayloadSummary{Length: len(stack.Payload)}
	if hexBytes > 0 && len(stack.Payload) > 0 {
		n := min(hexBytes, len(stack.Payload))
		s.Payload.Hex = hex.EncodeToString(stack.Payload[:n])
	}
	return s
}

// FromResult builds a Summary for one pipeline result.
func FromResult(r pipeline.Result, hexBytes int) Summary {
	s := Summarize(r.Stack, len(r.Data), hexBytes)
	s.Index = r.Index
	if !r.Timestamp.IsZero() {
		s.Timestamp = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	s.Skipped = r.Skipped
	if r.Err != nil {
		s.Error = errorSummary(r.Err)
	}
	return s
}

func errorSummary(err error) *ErrorSummary {
	var de *core.DecodeError
	if errors.As(err, &de) {
		return &ErrorSummary{Kind: de.Kind(), Layer: de.Layer.String(), Message: de.Error()}
	}
	return &ErrorSummary{Kind: "other", Layer: core.LayerUnknown.String(), Message: err.Error()}
}

// ErrorOf is the summary of a failed decode outside a pipeline.
func ErrorOf(length int, err error) Summary {
	return Summary{Length: length, Error: errorSummary(err)}
}

func vlanSummary(t core.VLANTag) VLANSummary {
	return VLANSummary{
		ID:           t.ID,
		Priority:     t.Priority,
		DropEligible: t.DropEligible,
		EtherType:    etherTypeString(t.EtherType),
	}
}

func etherTypeString(t core.EtherType) string {
	return fmt.Sprintf("0x%04x", uint16(t))
}

var tcpFlagNames = []struct {
	bit  uint8
	name string
}{
	{core.TCPFlagFIN, "FIN"},
	{core.TCPFlagSYN, "SYN"},
	{core.TCPFlagRST, "RST"},
	{core.TCPFlagPSH, "PSH"},
	{core.TCPFlagACK, "ACK"},
	{core.TCPFlagURG, "URG"},
}

// TCPFlags formats flag bits as "SYN,ACK".
func TCPFlags(flags uint8) string {
	var names []string
	for _, f := range tcpFlagNames {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}
