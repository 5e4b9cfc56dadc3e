package nvs

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/sigurn/crc16"
)

const (
	// MaxValueLen is the max length of a value in bytes.
	MaxValueLen = 64

	pageMagic        uint16 = 0x4e56
	pageHeaderSize          = 4
	recordHeaderSize        = 4
	maxRecordBody           = 1 + MaxValueLen
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

func align(n, word int) int {
	if r := n % word; r != 0 {
		return n + word - r
	}
	return n
}

// MaxRecordSize returns the size of the largest record for a word size.
func MaxRecordSize(wordSize int) int {
	return align(recordHeaderSize+maxRecordBody, wordSize)
}

type record struct {
	key   Key
	value string
	off   int64 // offset on flash
	size  int   // aligned size on flash
}

func checkItem(key Key, value string) error {
	if !key.IsValid() {
		return newError(SerializationError, "invalid key %d", uint8(key))
	}
	if len(value) > MaxValueLen {
		return newError(ItemTooBig, "%s: %d bytes exceeds %d", key, len(value), MaxValueLen)
	}
	if !utf8.ValidString(value) {
		return newError(SerializationError, "%s: value is not valid utf-8", key)
	}
	return nil
}

func recordSize(value string, wordSize int) int {
	return align(recordHeaderSize+1+len(value), wordSize)
}

// encodeRecord writes a record into buf, returns the number of bytes used.
func encodeRecord(buf []byte, key Key, value string, wordSize int) (int, error) {
	if err := checkItem(key, value); err != nil {
		return 0, err
	}
	size := recordSize(value, wordSize)
	if len(buf) < size {
		return 0, &StorageError{Kind: BufferTooSmall, Needed: size}
	}
	body := buf[recordHeaderSize : recordHeaderSize+1+len(value)]
	body[0] = byte(key)
	copy(body[1:], value)
	binary.LittleEndian.PutUint16(buf[0:], uint16(len(body)))
	binary.LittleEndian.PutUint16(buf[2:], crc16.Checksum(body, crcTable))
	for i := recordHeaderSize + len(body); i < size; i++ {
		buf[i] = Erased
	}
	return size, nil
}

func isErased(b []byte) bool {
	for _, v := range b {
		if v != Erased {
			return false
		}
	}
	return true
}

type pageHeader struct {
	seq uint16
}

func encodePageHeader(buf []byte, seq uint16) {
	binary.LittleEndian.PutUint16(buf[0:], pageMagic)
	binary.LittleEndian.PutUint16(buf[2:], seq)
}

// decodePageHeader returns nil for an erased page.
func decodePageHeader(buf []byte) (*pageHeader, *StorageError) {
	if isErased(buf[:pageHeaderSize]) {
		return nil, nil
	}
	if magic := binary.LittleEndian.Uint16(buf[0:]); magic != pageMagic {
		return nil, newError(Corrupted, "bad page magic 0x%04x", magic)
	}
	return &pageHeader{seq: binary.LittleEndian.Uint16(buf[2:])}, nil
}

// seqBefore compares sequence numbers as serial numbers.
func seqBefore(a, b uint16) bool {
	return int16(a-b) < 0
}
