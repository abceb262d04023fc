package pipeline

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/hdrstack/internal/core"
	"firestige.xyz/hdrstack/internal/core/decoder"
	"firestige.xyz/hdrstack/internal/metrics"
)

// Mock implementations for testing

// MockSource replays a fixed list of packets.
type MockSource struct {
	mu      sync.Mutex
	packets []core.RawPacket
	pos     int
	failAt  int // index that returns an error, -1 for none
}

func NewMockSource(frames ...[]byte) *MockSource {
	s := &MockSource{failAt: -1}
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		s.packets = append(s.packets, core.RawPacket{
			Data:       f,
			Timestamp:  ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLen: uint32(len(f)),
			OrigLen:    uint32(len(f)),
			LinkType:   uint32(layers.LinkTypeEthernet),
		})
	}
	return s
}

func (m *MockSource) ReadPacket() (core.RawPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == m.failAt {
		return core.RawPacket{}, errors.New("disk on fire")
	}
	if m.pos >= len(m.packets) {
		return core.RawPacket{}, io.EOF
	}
	p := m.packets[m.pos]
	m.pos++
	return p, nil
}

// MockSink collects results.
type MockSink struct {
	mu      sync.Mutex
	results []Result
	failAt  uint64 // index whose write fails, 0 for none
}

func (m *MockSink) Write(r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt != 0 && r.Index == m.failAt {
		return errors.New("sink closed")
	}
	m.results = append(m.results, r)
	return nil
}

func (m *MockSink) Results() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.results...)
}

// etherTypeFilter accepts frames with the given ether type.
type etherTypeFilter uint16

func (f etherTypeFilter) Match(data []byte) bool {
	return len(data) >= 14 && uint16(data[12])<<8|uint16(data[13]) == uint16(f)
}

func udpFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5060}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func arpFrame() []byte {
	f := make([]byte, 42)
	f[12], f[13] = 0x08, 0x06
	return f
}

// Test cases

func TestPipeline_BasicFlow(t *testing.T) {
	frames := make([][]byte, 50)
	for i := range frames {
		frames[i] = udpFrame(t, []byte{byte(i)})
	}
	src := NewMockSource(frames...)
	sink := &MockSink{}

	p, err := NewBuilder().WithWorkers(4).WithQueueSize(8).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.Entry() != "link" {
		t.Errorf("Expected entry link, got %s", p.Entry())
	}

	if err := p.Run(context.Background(), src, Ordered(sink)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := sink.Results()
	if len(results) != len(frames) {
		t.Fatalf("Expected %d results, got %d", len(frames), len(results))
	}
	for i, r := range results {
		if r.Index != uint64(i+1) {
			t.Errorf("result %d: expected index %d, got %d", i, i+1, r.Index)
		}
		if r.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, r.Err)
			continue
		}
		// gopacket pads short frames to 60 bytes, the padding stays in the payload
		if len(r.Stack.Payload) == 0 || r.Stack.Payload[0] != byte(i) {
			t.Errorf("result %d: payload %x out of order", i, r.Stack.Payload)
		}
	}

	stats := p.Stats().Snapshot()
	if stats.Packets != 50 || stats.Decoded != 50 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Layers["udp"] != 50 || stats.Layers["ipv4"] != 50 || stats.Layers["ethernet"] != 50 {
		t.Errorf("unexpected layer counts %v", stats.Layers)
	}
	if p.Stats().Layer(core.LayerTCP) != 0 {
		t.Errorf("Expected no tcp layers")
	}
}

func TestPipeline_DecodeErrorsDoNotStopRun(t *testing.T) {
	good := udpFrame(t, []byte("ok"))
	src := NewMockSource(good, good[:20], good, arpFrame())
	sink := &MockSink{}

	p, err := New(Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := sink.Results()
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	if !errors.Is(results[1].Err, core.ErrPacketTooShort) {
		t.Errorf("Expected truncated error, got %v", results[1].Err)
	}
	if results[1].Stack != nil {
		t.Errorf("Expected no stack for a failed decode")
	}
	if results[3].Err != nil || results[3].Stack.Network != nil {
		t.Errorf("Expected ARP frame to decode as link-only stack")
	}

	stats := p.Stats().Snapshot()
	if stats.Decoded != 3 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPipeline_SkipsOversizedAndFiltered(t *testing.T) {
	small := udpFrame(t, nil)
	big := udpFrame(t, make([]byte, 200))
	src := NewMockSource(small, big, arpFrame(), small)
	sink := &MockSink{}

	p, err := New(Config{
		Workers:        2,
		MaxPacketBytes: 100,
		Filter:         etherTypeFilter(0x0800),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background(), src, Ordered(sink)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := sink.Results()
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	if results[1].Skipped != metrics.SkipOversized {
		t.Errorf("Expected packet 2 oversized, got %q", results[1].Skipped)
	}
	if results[2].Skipped != metrics.SkipFiltered {
		t.Errorf("Expected packet 3 filtered, got %q", results[2].Skipped)
	}
	if results[0].Skipped != "" || results[0].Stack == nil {
		t.Errorf("Expected packet 1 decoded")
	}

	stats := p.Stats().Snapshot()
	if stats.Packets != 4 || stats.Decoded != 2 || stats.Oversized != 1 || stats.Filtered != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPipeline_SourceErrorStopsRun(t *testing.T) {
	f := udpFrame(t, nil)
	src := NewMockSource(f, f, f)
	src.failAt = 1

	p, err := New(Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Run(context.Background(), src, &MockSink{})
	if err == nil || err.Error() != "read packet 2: disk on fire" {
		t.Errorf("Expected source error, got %v", err)
	}
}

func TestPipeline_SinkErrorStopsRun(t *testing.T) {
	f := udpFrame(t, nil)
	src := NewMockSource(f, f, f, f)

	p, err := New(Config{Workers: 1, QueueSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Run(context.Background(), src, &MockSink{failAt: 2})
	if err == nil {
		t.Fatal("Expected sink error")
	}
}

func TestPipeline_ContextCancelled(t *testing.T) {
	src := NewMockSource(udpFrame(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(ctx, src, &MockSink{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPipeline_EntryResolution(t *testing.T) {
	p, err := New(Config{LinkType: layers.LinkTypeRaw})
	if err != nil {
		t.Fatal(err)
	}
	if p.Entry() != "network" {
		t.Errorf("Expected network entry for raw link type, got %s", p.Entry())
	}

	p, err = New(Config{Entry: decoder.EntryLink, LinkType: layers.LinkTypeRaw})
	if err != nil {
		t.Fatal(err)
	}
	if p.Entry() != "link" {
		t.Errorf("Expected forced link entry, got %s", p.Entry())
	}

	_, err = New(Config{LinkType: layers.LinkTypeLinuxSLL})
	if !errors.Is(err, core.ErrUnsupportedLinkType) {
		t.Errorf("Expected ErrUnsupportedLinkType, got %v", err)
	}
}

func TestOrdered(t *testing.T) {
	sink := &MockSink{}
	o := Ordered(sink)
	for _, idx := range []uint64{3, 1, 4, 2} {
		if err := o.Write(Result{Index: idx}); err != nil {
			t.Fatal(err)
		}
	}

	results := sink.Results()
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != uint64(i+1) {
			t.Errorf("position %d: got index %d", i, r.Index)
		}
	}
}

func TestStatsReset(t *testing.T) {
	var s Stats
	s.Packets.Add(3)
	s.addLayers(&core.HeaderStack{Link: &core.EthernetHeader{}})
	s.Reset()

	snap := s.Snapshot()
	if snap.Packets != 0 || len(snap.Layers) != 0 {
		t.Errorf("Expected empty stats after reset, got %+v", snap)
	}
}
