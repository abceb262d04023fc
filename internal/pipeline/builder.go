package pipeline

import (
	"github.com/google/gopacket/layers"

	"firestige.xyz/hdrstack/internal/core/decoder"
	"firestige.xyz/hdrstack/internal/filter"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			LinkType:  layers.LinkTypeEthernet,
			QueueSize: defaultQueueSize,
		},
	}
}

// WithEntry sets the decode entry point.
func (b *Builder) WithEntry(e decoder.Entry) *Builder {
	b.config.Entry = e
	return b
}

// WithLinkType sets the link type of the source, used by EntryAuto.
func (b *Builder) WithLinkType(lt layers.LinkType) *Builder {
	b.config.LinkType = lt
	return b
}

// WithWorkers sets the number of decode goroutines.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithQueueSize sets the raw packet channel buffer size.
func (b *Builder) WithQueueSize(size int) *Builder {
	b.config.QueueSize = size
	return b
}

// WithMaxPacketBytes sets the size above which packets are skipped.
func (b *Builder) WithMaxPacketBytes(n uint64) *Builder {
	b.config.MaxPacketBytes = n
	return b
}

// WithFilter sets the prefilter.
func (b *Builder) WithFilter(f filter.Filter) *Builder {
	b.config.Filter = f
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}
