// Package file reads packets from pcap and pcapng capture files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/hdrstack/internal/core"
)

// Magic numbers used to tell the two capture formats apart.
const (
	pcapMagicMicros     = 0xa1b2c3d4
	pcapMagicNanos      = 0xa1b23c4d
	pcapMagicMicrosSwap = 0xd4c3b2a1
	pcapMagicNanosSwap  = 0x4d3cb2a1
	pcapngSectionHeader = 0x0a0d0d0a
)

// packetReader is implemented by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads frames from a capture file.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	format string
}

// NewSource creates a file source. The file is opened by Start.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	return &Source{path: path}, nil
}

// Start opens the capture file and detects its format.
func (s *Source) Start(_ context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", s.path, err)
	}

	reader, format, err := newPacketReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture file %s: %w", s.path, err)
	}

	s.file = f
	s.reader = reader
	s.format = format
	return nil
}

// newPacketReader peeks at the magic number and builds the matching reader.
func newPacketReader(br *bufio.Reader) (packetReader, string, error) {
	magic, err := br.Peek(4)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrUnknownFileFormat, err)
	}

	switch binary.BigEndian.Uint32(magic) {
	case pcapngSectionHeader:
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, "", err
		}
		return r, "pcapng", nil
	case pcapMagicMicros, pcapMagicNanos, pcapMagicMicrosSwap, pcapMagicNanosSwap:
		r, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, "", err
		}
		return r, "pcap", nil
	default:
		return nil, "", fmt.Errorf("%w: magic 0x%x", core.ErrUnknownFileFormat, magic)
	}
}

// ReadPacket returns the next frame. It returns io.EOF at the end of the file.
// Each call returns a freshly allocated Data slice, so packets may be decoded
// concurrently.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.reader == nil {
		return core.RawPacket{}, fmt.Errorf("file source not started")
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
		LinkType:   uint32(s.reader.LinkType()),
	}, nil
}

// LinkType returns the link type of the capture.
func (s *Source) LinkType() layers.LinkType {
	if s.reader == nil {
		return layers.LinkTypeEthernet // default
	}
	return s.reader.LinkType()
}

// Format returns "pcap" or "pcapng" once started.
func (s *Source) Format() string { return s.format }

// Stop closes the file.
func (s *Source) Stop() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	return err
}
