// Package nvs stores a small fixed set of configuration values in a range of
// NOR flash as an append-only log of records.
//
// The range is split into pages. A page starts with a one word header
// carrying a magic and a sequence number, followed by records packed front
// to back. A record is
//
//	len u16 | crc16 u16 | key u8 | value
//
// padded with 0xFF to the word size. len counts key and value bytes, crc16 is
// CRC-16/ARC over key and value. An all 0xFF record header ends the written
// part of a page. The current value of a key is the last record met scanning
// pages in sequence order, so nothing is ever overwritten in place.
//
// One page is always kept erased. When the active page fills up, the spare
// page is opened, the records of the oldest page that are still current are
// carried into it and the oldest page is erased to become the next spare.
package nvs
