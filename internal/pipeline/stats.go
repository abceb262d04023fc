package pipeline

import (
	"sync/atomic"

	"firestige.xyz/hdrstack/internal/core"
)

// numLayers bounds the per-layer counter array.
const numLayers = int(core.LayerUDP) + 1

// Stats contains run counters. All fields are safe for concurrent use.
type Stats struct {
	Packets   atomic.Uint64 // read from the source
	Filtered  atomic.Uint64 // rejected by the filter
	Oversized atomic.Uint64 // larger than the size limit
	Decoded   atomic.Uint64
	Failed    atomic.Uint64

	layers [numLayers]atomic.Uint64
}

func (s *Stats) addLayers(stack *core.HeaderStack) {
	for _, l := range stack.Layers() {
		if int(l) < numLayers {
			s.layers[l].Add(1)
		}
	}
}

// Layer returns how many headers of layer l were decoded.
func (s *Stats) Layer(l core.Layer) uint64 {
	if int(l) >= numLayers {
		return 0
	}
	return s.layers[l].Load()
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Packets   uint64            `json:"packets" yaml:"packets"`
	Filtered  uint64            `json:"filtered" yaml:"filtered"`
	Oversized uint64            `json:"oversized" yaml:"oversized"`
	Decoded   uint64            `json:"decoded" yaml:"decoded"`
	Failed    uint64            `json:"failed" yaml:"failed"`
	Layers    map[string]uint64 `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Packets:   s.Packets.Load(),
		Filtered:  s.Filtered.Load(),
		Oversized: s.Oversized.Load(),
		Decoded:   s.Decoded.Load(),
		Failed:    s.Failed.Load(),
		Layers:    make(map[string]uint64),
	}
	for i := range s.layers {
		if n := s.layers[i].Load(); n > 0 {
			snap.Layers[core.Layer(i).String()] = n
		}
	}
	return snap
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.Packets.Store(0)
	s.Filtered.Store(0)
	s.Oversized.Store(0)
	s.Decoded.Store(0)
	s.Failed.Store(0)
	for i := range s.layers {
		s.layers[i].Store(0)
	}
}
