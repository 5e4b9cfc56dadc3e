package nvs

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/sigurn/crc16"
)

// Store is the append-only key value log over a Range of a Flash.
// It's not safe for concurrent use, share it through a Handle.
type Store struct {
	dev        Flash
	r          Range
	wordSize   int
	pageSize   int
	headerSize int
	pages      int
	released   bool
}

var claims = struct {
	sync.Mutex
	ranges map[Flash][]Range
}{ranges: make(map[Flash][]Range)}

// Take claims r of dev and returns the only Store of that range.
// It panics if r overlaps a range already claimed on dev, or the range
// doesn't fit the geometry of dev. Both are startup faults.
func Take(dev Flash, r Range) *Store {
	s, err := newStore(dev, r)
	if err != nil {
		panic(err)
	}
	claims.Lock()
	defer claims.Unlock()
	for _, claimed := range claims.ranges[dev] {
		if claimed.Overlaps(r) {
			panic(fmt.Sprintf("nvs: range %s overlaps claimed range %s", r, claimed))
		}
	}
	claims.ranges[dev] = append(claims.ranges[dev], r)
	glog.V(1).Infof("nvs: took range %s, %d pages of %d bytes", r, s.pages, s.pageSize)
	return s
}

func newStore(dev Flash, r Range) (*Store, error) {
	word, page := dev.WordSize(), dev.PageSize()
	if page > 0xffff {
		return nil, newError(BufferTooBig, "page size %d exceeds 0xffff", page)
	}
	if word <= 0 || page <= 0 || page%word != 0 {
		return nil, newError(Storage, "invalid geometry word %d, page %d", word, page)
	}
	if r.Offset < 0 || r.End() > dev.Size() {
		return nil, newError(Storage, "range %s out of device size 0x%x", r, dev.Size())
	}
	if r.Offset%int64(page) != 0 || r.Length%int64(page) != 0 || r.Length < int64(page) {
		return nil, newError(Storage, "range %s not aligned to pages of %d bytes", r, page)
	}
	s := &Store{
		dev:        dev,
		r:          r,
		wordSize:   word,
		pageSize:   page,
		headerSize: align(pageHeaderSize, word),
		pages:      int(r.Length / int64(page)),
	}
	if s.headerSize+MaxRecordSize(word) > page {
		return nil, newError(BufferTooSmall, "page size %d too small", page)
	}
	return s, nil
}

// Release drops the claim of the range. The Store must not be used after.
func (s *Store) Release() {
	claims.Lock()
	defer claims.Unlock()
	if s.released {
		return
	}
	s.released = true
	ranges := claims.ranges[s.dev]
	for n, r := range ranges {
		if r == s.r {
			ranges = append(ranges[:n], ranges[n+1:]...)
			break
		}
	}
	if len(ranges) == 0 {
		delete(claims.ranges, s.dev)
	} else {
		claims.ranges[s.dev] = ranges
	}
}

// Range returns the claimed range.
func (s *Store) Range() Range {
	return s.r
}

type page struct {
	off     int64
	seq     uint16
	end     int64 // offset after the last record
	records []record
}

type layout struct {
	used []*page // in sequence order, oldest first
	free []int64
}

func (l *layout) latest() map[Key]record {
	current := make(map[Key]record)
	for _, p := range l.used {
		for _, rec := range p.records {
			current[rec.key] = rec
		}
	}
	return current
}

func (s *Store) pageOffset(n int) int64 {
	return s.r.Offset + int64(n)*int64(s.pageSize)
}

func (s *Store) scan() (*layout, error) {
	l := &layout{}
	buf := make([]byte, s.pageSize)
	for n := 0; n < s.pages; n++ {
		off := s.pageOffset(n)
		if _, err := s.dev.ReadAt(buf, off); err != nil {
			return nil, deviceError(err)
		}
		hdr, herr := decodePageHeader(buf)
		if herr != nil {
			herr.Err = fmt.Errorf("page 0x%x: %w", off, herr.Err)
			return nil, herr
		}
		if hdr == nil {
			if !isErased(buf) {
				return nil, newError(Corrupted, "page 0x%x: data in erased page", off)
			}
			l.free = append(l.free, off)
			continue
		}
		p, err := s.scanPage(buf, off, hdr.seq)
		if err != nil {
			return nil, err
		}
		l.used = append(l.used, p)
	}
	sort.SliceStable(l.used, func(i, j int) bool {
		return seqBefore(l.used[i].seq, l.used[j].seq)
	})
	return l, nil
}

func (s *Store) scanPage(buf []byte, off int64, seq uint16) (*page, error) {
	p := &page{off: off, seq: seq}
	pos := s.headerSize
	for pos+recordHeaderSize <= len(buf) {
		hdr := buf[pos : pos+recordHeaderSize]
		if isErased(hdr) {
			break
		}
		n := int(binary.LittleEndian.Uint16(hdr[0:]))
		size := align(recordHeaderSize+n, s.wordSize)
		if n < 1 || n > maxRecordBody || pos+size > len(buf) {
			return nil, newError(Corrupted, "record at 0x%x: invalid length %d", off+int64(pos), n)
		}
		body := buf[pos+recordHeaderSize : pos+recordHeaderSize+n]
		if sum := binary.LittleEndian.Uint16(hdr[2:]); sum != crc16.Checksum(body, crcTable) {
			return nil, newError(Corrupted, "record at 0x%x: checksum mismatch", off+int64(pos))
		}
		key := Key(body[0])
		if !key.IsValid() {
			return nil, newError(SerializationError, "record at 0x%x: unknown key %d", off+int64(pos), body[0])
		}
		if !utf8.Valid(body[1:]) {
			return nil, newError(SerializationError, "record at 0x%x: invalid utf-8", off+int64(pos))
		}
		p.records = append(p.records, record{
			key:   key,
			value: string(body[1:]),
			off:   off + int64(pos),
			size:  size,
		})
		pos += size
	}
	if !isErased(buf[pos:]) {
		return nil, newError(Corrupted, "page 0x%x: data after end of records", off)
	}
	p.end = off + int64(pos)
	return p, nil
}

// Fetch returns the current value of key.
func (s *Store) Fetch(key Key) (string, bool, error) {
	if !key.IsValid() {
		return "", false, newError(SerializationError, "invalid key %d", uint8(key))
	}
	l, err := s.scan()
	if err != nil {
		return "", false, err
	}
	rec, ok := l.latest()[key]
	return rec.value, ok, nil
}

// Snapshot returns current values of all stored keys.
func (s *Store) Snapshot() (map[Key]string, error) {
	l, err := s.scan()
	if err != nil {
		return nil, err
	}
	values := make(map[Key]string)
	for key, rec := range l.latest() {
		values[key] = rec.value
	}
	return values, nil
}

// Store appends a record setting key to value.
func (s *Store) Store(key Key, value string) error {
	buf := make([]byte, MaxRecordSize(s.wordSize))
	size, err := encodeRecord(buf, key, value, s.wordSize)
	if err != nil {
		return err
	}
	if s.headerSize+size > s.pageSize {
		return newError(ItemTooBig, "record of %d bytes exceeds page", size)
	}
	l, err := s.scan()
	if err != nil {
		return err
	}
	for attempt := 0; attempt <= s.pages; attempt++ {
		if n := len(l.used); n > 0 {
			if active := l.used[n-1]; active.end+int64(size) <= active.off+int64(s.pageSize) {
				if _, err := s.dev.WriteAt(buf[:size], active.end); err != nil {
					return deviceError(err)
				}
				return nil
			}
		}
		if err := s.advance(l); err != nil {
			return err
		}
		if l, err = s.scan(); err != nil {
			return err
		}
	}
	return newError(FullStorage, "no space for %s", key)
}

// advance opens a new active page, reclaiming the oldest page when only the
// spare one is left.
func (s *Store) advance(l *layout) error {
	var seq uint16
	if n := len(l.used); n > 0 {
		seq = l.used[n-1].seq + 1
	}
	switch {
	case len(l.used) == 0 && len(l.free) > 0, len(l.free) > 1:
		return s.openPage(l.free[0], seq)
	case len(l.free) == 1 && len(l.used) > 0:
		return s.reclaim(l, seq)
	case len(l.free) == 0 && len(l.used) > 1 && !holdsLive(l, l.used[0]):
		// a reclaim was interrupted after the carry, finish it.
		oldest := l.used[0].off
		if err := s.dev.Erase(oldest, oldest+int64(s.pageSize)); err != nil {
			return deviceError(err)
		}
		return nil
	}
	return newError(FullStorage, "all %d pages in use", s.pages)
}

func (s *Store) openPage(off int64, seq uint16) error {
	hdr := make([]byte, s.headerSize)
	for i := range hdr {
		hdr[i] = Erased
	}
	encodePageHeader(hdr, seq)
	if _, err := s.dev.WriteAt(hdr, off); err != nil {
		return deviceError(err)
	}
	glog.V(2).Infof("nvs: opened page 0x%x seq %d", off, seq)
	return nil
}

// liveRecords returns records of p which are still current.
func liveRecords(l *layout, p *page) []record {
	current := l.latest()
	var live []record
	for _, rec := range p.records {
		if current[rec.key].off == rec.off {
			live = append(live, rec)
		}
	}
	return live
}

func holdsLive(l *layout, p *page) bool {
	return len(liveRecords(l, p)) > 0
}

func (s *Store) reclaim(l *layout, seq uint16) error {
	oldest := l.used[0]
	carry := liveRecords(l, oldest)
	carrySize := 0
	for _, rec := range carry {
		carrySize += rec.size
	}
	if s.headerSize+carrySize > s.pageSize {
		return newError(FullStorage, "live records of page 0x%x don't fit", oldest.off)
	}
	spare := l.free[0]
	if err := s.openPage(spare, seq); err != nil {
		return err
	}
	pos := spare + int64(s.headerSize)
	buf := make([]byte, MaxRecordSize(s.wordSize))
	for _, rec := range carry {
		size, err := encodeRecord(buf, rec.key, rec.value, s.wordSize)
		if err != nil {
			return err
		}
		if _, err := s.dev.WriteAt(buf[:size], pos); err != nil {
			return deviceError(err)
		}
		pos += int64(size)
	}
	if err := s.dev.Erase(oldest.off, oldest.off+int64(s.pageSize)); err != nil {
		return deviceError(err)
	}
	glog.V(1).Infof("nvs: reclaimed page 0x%x, carried %d records", oldest.off, len(carry))
	return nil
}

// Erase erases the whole range, all values are lost.
func (s *Store) Erase() error {
	if err := s.dev.Erase(s.r.Offset, s.r.End()); err != nil {
		return deviceError(err)
	}
	glog.Warningf("nvs: erased range %s", s.r)
	return nil
}
