// Package pipeline fans header decoding of a packet source out over workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/gopacket/layers"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/hdrstack/internal/core"
	"firestige.xyz/hdrstack/internal/core/decoder"
	"firestige.xyz/hdrstack/internal/filter"
	"firestige.xyz/hdrstack/internal/metrics"
)

const defaultQueueSize = 1024

// Source yields raw packets. ReadPacket returns io.EOF when it is exhausted.
type Source interface {
	ReadPacket() (core.RawPacket, error)
}

// Sink receives one Result per packet read. Write calls are serialized.
type Sink interface {
	Write(Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result) error

// Write calls f(r).
func (f SinkFunc) Write(r Result) error { return f(r) }

// Result is the outcome for a single packet.
type Result struct {
	Index     uint64            // 1-based position in the source
	Timestamp time.Time         // capture timestamp
	Data      []byte            // raw frame, Stack views point into it
	Stack     *core.HeaderStack // nil when Err is set or the packet was skipped
	Err       error             // decode failure
	Skipped   string            // metrics.SkipFiltered or metrics.SkipOversized
}

// Config contains pipeline configuration.
type Config struct {
	Entry          decoder.Entry
	LinkType       layers.LinkType // link type of the source, used by EntryAuto
	Workers        int             // <= 0 means one per CPU
	QueueSize      int             // raw packet channel buffer size
	MaxPacketBytes uint64          // 0 disables the size limit
	Filter         filter.Filter   // nil accepts everything
}

// Pipeline decodes packets from a Source and hands results to a Sink.
type Pipeline struct {
	cfg    Config
	decode decoder.Func
	entry  string
	stats  Stats
	sinkMu sync.Mutex
}

// New creates a new pipeline. It fails when the entry point cannot be
// resolved for the configured link type.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Filter == nil {
		cfg.Filter = filter.AcceptAll{}
	}

	decode, err := cfg.Entry.Resolve(cfg.LinkType)
	if err != nil {
		return nil, err
	}

	entry := cfg.Entry
	if entry == decoder.EntryAuto {
		entry = decoder.EntryNetwork
		if cfg.LinkType == layers.LinkTypeEthernet {
			entry = decoder.EntryLink
		}
	}

	return &Pipeline{
		cfg:    cfg,
		decode: decode,
		entry:  entry.String(),
	}, nil
}

// Entry returns the resolved entry point name ("link" or "network").
func (p *Pipeline) Entry() string { return p.entry }

// Stats returns the run counters.
func (p *Pipeline) Stats() *Stats { return &p.stats }

type job struct {
	index uint64
	raw   core.RawPacket
}

// Run reads src until io.EOF and blocks until every packet has been handed to
// sink. Decode failures are reported per packet and never stop the run; a
// source error, a sink error or ctx cancellation does.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) error {
	slog.Info("pipeline starting",
		"entry", p.entry,
		"workers", p.cfg.Workers,
		"queue_size", p.cfg.QueueSize,
		"max_packet_bytes", p.cfg.MaxPacketBytes)

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, p.cfg.QueueSize)

	g.Go(func() error {
		defer close(jobs)
		return p.readLoop(ctx, src, sink, jobs)
	})
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			return p.decodeLoop(ctx, sink, jobs)
		})
	}

	err := g.Wait()

	snap := p.stats.Snapshot()
	slog.Info("pipeline stopped",
		"packets", snap.Packets,
		"decoded", snap.Decoded,
		"failed", snap.Failed,
		"filtered", snap.Filtered,
		"oversized", snap.Oversized)
	return err
}

// readLoop pulls packets from src, applies the size limit and the filter, and
// feeds the rest to the workers.
func (p *Pipeline) readLoop(ctx context.Context, src Source, sink Sink, jobs chan<- job) error {
	var index uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := src.ReadPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read packet %d: %w", index+1, err)
		}
		index++
		p.stats.Packets.Add(1)

		if reason := p.skipReason(raw.Data); reason != "" {
			metrics.PacketsSkippedTotal.WithLabelValues(reason).Inc()
			res := Result{Index: index, Timestamp: raw.Timestamp, Data: raw.Data, Skipped: reason}
			if err := p.emit(sink, res); err != nil {
				return err
			}
			continue
		}

		select {
		case jobs <- job{index: index, raw: raw}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) skipReason(data []byte) string {
	if p.cfg.MaxPacketBytes > 0 && uint64(len(data)) > p.cfg.MaxPacketBytes {
		p.stats.Oversized.Add(1)
		return metrics.SkipOversized
	}
	if !p.cfg.Filter.Match(data) {
		p.stats.Filtered.Add(1)
		return metrics.SkipFiltered
	}
	return ""
}

func (p *Pipeline) decodeLoop(ctx context.Context, sink Sink, jobs <-chan job) error {
	for j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		stack, err := p.decode(j.raw.Data)
		metrics.DecodeLatencySeconds.Observe(time.Since(start).Seconds())
		metrics.ObserveDecode(p.entry, stack, err)

		if err != nil {
			p.stats.Failed.Add(1)
			slog.Debug("decode failed", "index", j.index, "error", err)
		} else {
			p.stats.Decoded.Add(1)
			p.stats.addLayers(stack)
		}

		res := Result{
			Index:     j.index,
			Timestamp: j.raw.Timestamp,
			Data:      j.raw.Data,
			Stack:     stack,
			Err:       err,
		}
		if err := p.emit(sink, res); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) emit(sink Sink, r Result) error {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	if err := sink.Write(r); err != nil {
		return fmt.Errorf("sink write packet %d: %w", r.Index, err)
	}
	return nil
}

// Ordered returns a Sink that forwards results to next in Index order,
// buffering results that arrive ahead of a lower index. Run reports every
// packet it reads, skipped ones included, so indices have no gaps.
func Ordered(next Sink) Sink {
	return &orderedSink{
		next:    next,
		want:    1,
		pending: make(map[uint64]Result),
	}
}

type orderedSink struct {
	mu      sync.Mutex
	next    Sink
	want    uint64
	pending map[uint64]Result
}

func (o *orderedSink) Write(r Result) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending[r.Index] = r
	for {
		res, ok := o.pending[o.want]
		if !ok {
			return nil
		}
		delete(o.pending, o.want)
		o.want++
		if err := o.next.Write(res); err != nil {
			return err
		}
	}
}
