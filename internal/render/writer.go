package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/hdrstack/internal/core"
	"firestige.xyz/hdrstack/internal/pipeline"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses "text", "json" or "yaml".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (must be text, json or yaml)", core.ErrConfigInvalid, s)
	}
}

// Writer encodes summaries to an io.Writer. JSON output is one object per
// line, YAML output one document per summary.
type Writer struct {
	out     io.Writer
	format  Format
	jsonEnc *json.Encoder
	yamlEnc *yaml.Encoder
}

// NewWriter creates a writer for the given format.
func NewWriter(out io.Writer, format Format) *Writer {
	w := &Writer{out: out, format: format}
	switch format {
	case FormatJSON:
		w.jsonEnc = json.NewEncoder(out)
	case FormatYAML:
		w.yamlEnc = yaml.NewEncoder(out)
		w.yamlEnc.SetIndent(2)
	}
	return w
}

// Write encodes one summary.
func (w *Writer) Write(s Summary) error {
	return w.encode(s, func() string { return Line(s) })
}

// WriteStats encodes the run counters.
func (w *Writer) WriteStats(snap pipeline.Snapshot) error {
	return w.encode(snap, func() string { return StatsLine(snap) })
}

func (w *Writer) encode(v any, line func() string) error {
	switch w.format {
	case FormatJSON:
		return w.jsonEnc.Encode(v)
	case FormatYAML:
		return w.yamlEnc.Encode(v)
	default:
		_, err := fmt.Fprintln(w.out, line())
		return err
	}
}

// Close flushes buffered YAML output.
func (w *Writer) Close() error {
	if w.yamlEnc != nil {
		return w.yamlEnc.Close()
	}
	return nil
}

// Sink adapts the writer to a pipeline sink. Skipped packets are not printed.
func (w *Writer) Sink(hexBytes int) pipeline.Sink {
	return pipeline.SinkFunc(func(r pipeline.Result) error {
		if r.Skipped != "" {
			return nil
		}
		return w.Write(FromResult(r, hexBytes))
	})
}

// Line formats a summary as a single text line, for example
//
//	#1 eth 00:11:22:33:44:55 > 66:77:88:99:aa:bb vlan 42 ipv4 10.0.0.1 > 10.0.0.2 ttl 64 udp 5060 > 5060 payload 2
func Line(s Summary) string {
	var b strings.Builder
	sep := func() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
	}

	if s.Index > 0 {
		fmt.Fprintf(&b, "#%d", s.Index)
	}
	if s.Timestamp != "" {
		sep()
		b.WriteString(s.Timestamp)
	}
	if s.Skipped != "" {
		sep()
		fmt.Fprintf(&b, "skipped %s", s.Skipped)
		return b.String()
	}
	if s.Error != nil {
		sep()
		fmt.Fprintf(&b, "error %s: %s", s.Error.Kind, s.Error.Message)
		return b.String()
	}

	if s.Link != nil {
		sep()
		fmt.Fprintf(&b, "eth %s > %s", s.Link.Src, s.Link.Dst)
	}
	if len(s.VLAN) > 0 {
		ids := make([]string, len(s.VLAN))
		for i, v := range s.VLAN {
			ids[i] = fmt.Sprint(v.ID)
		}
		sep()
		fmt.Fprintf(&b, "vlan %s", strings.Join(ids, ","))
	}
	if n := s.Network; n != nil {
		sep()
		fmt.Fprintf(&b, "ipv%d %s > %s", n.Version, n.Src, n.Dst)
		if n.Version == 6 {
			fmt.Fprintf(&b, " hlim %d", n.TTL)
			if n.ExtLen > 0 {
				fmt.Fprintf(&b, " ext %d", n.ExtLen)
			}
		} else {
			fmt.Fprintf(&b, " ttl %d", n.TTL)
		}
		if s.Transport == nil {
			fmt.Fprintf(&b, " proto %d", n.Protocol)
		}
	}
	if t := s.Transport; t != nil {
		sep()
		fmt.Fprintf(&b, "%s %d > %d", t.Protocol, t.SrcPort, t.DstPort)
		if t.Protocol == core.LayerTCP.String() {
			fmt.Fprintf(&b, " [%s] seq %d ack %d win %d", t.Flags, t.Seq, t.Ack, t.Window)
		}
	}
	if p := s.Payload; p != nil {
		sep()
		fmt.Fprintf(&b, "payload %d", p.Length)
		if p.Hex != "" {
			fmt.Fprintf(&b, " %s", p.Hex)
		}
	}
	return b.String()
}

// StatsLine formats run counters as a single text line.
func StatsLine(snap pipeline.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "packets=%d decoded=%d failed=%d filtered=%d oversized=%d",
		snap.Packets, snap.Decoded, snap.Failed, snap.Filtered, snap.Oversized)

	names := make([]string, 0, len(snap.Layers))
	for name := range snap.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%d", name, snap.Layers[name])
	}
	return b.String()
}
