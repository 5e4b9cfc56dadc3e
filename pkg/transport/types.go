// Package transport opens the byte stream a link runs on, from a URL.
package transport

import (
	"io"
	"sync"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Stream adapts a PacketReadWriter to a byte stream. Each Write is sent
// as one packet, packets are read back to back.
type Stream struct {
	Packets PacketReadWriter
	Closer  io.Closer

	rlock   sync.Mutex
	pending []byte
	wlock   sync.Mutex
}

// NewStream creates a Stream. closer may be nil.
func NewStream(packets PacketReadWriter, closer io.Closer) *Stream {
	return &Stream{Packets: packets, Closer: closer}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.rlock.Lock()
	defer s.rlock.Unlock()
	for len(s.pending) == 0 {
		pkt, err := s.Packets.ReadPacket()
		if err != nil {
			return 0, err
		}
		s.pending = pkt
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	s.wlock.Lock()
	defer s.wlock.Unlock()
	if err := s.Packets.WritePacket(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *Stream) Close() error {
	if s.Closer != nil {
		return s.Closer.Close()
	}
	if c, ok := s.Packets.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
