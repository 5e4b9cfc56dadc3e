// Package link provides the framed serial protocol between the host tool and
// the device.
package link

// A frame carries exactly one msgs.Typed envelope followed by a CRC-32/IEEE of
// the envelope bytes (little endian). The whole is COBS stuffed so the only
// 0x00 byte on the wire is the trailing delimiter.
//
// Receivers accumulate bytes into a fixed-capacity window, so a peer that
// never sends a delimiter can't grow memory. Broken frames are dropped and
// the receiver resynchronizes on the next delimiter.
//
// Producer: host tool and device (both directions)
// Consumer: host tool and device (both directions)
