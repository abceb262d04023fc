// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is a frame read from a capture source.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length on the wire
	LinkType   uint32    // pcap LINKTYPE_* value of the source
}
