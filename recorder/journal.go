// Package recorder journals every raw inbound feed event, verbatim,
// before sequence classification. The journal exists for offline
// replay and debugging; a write failure is reported and dropped, never
// allowed to block event application.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

var ErrCorruptRecord = errors.New("recorder: corrupt record")

const (
	evtPrefix = "evt/"
	cursorKey = "meta/cursor"
)

// Entry is one journaled event.
type Entry struct {
	Index   uint64
	Time    int64
	Payload []byte
}

type Journal struct {
	db   *pebble.DB
	next atomic.Uint64
}

func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", dir, err)
	}
	j := &Journal{db: db}

	// Resume the arrival index after the last journaled entry.
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(evtPrefix),
		UpperBound: []byte(evtPrefix + "~"),
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if iter.Last() && iter.Valid() {
		if idx, err := parseKey(iter.Key()); err == nil {
			j.next.Store(idx + 1)
		}
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one raw payload. NoSync: the journal is a diagnostic
// artifact, not the source of truth, and must stay off the hot path's
// critical latency.
func (j *Journal) Record(payload []byte) error {
	idx := j.next.Add(1) - 1
	rec := encodeRecord(time.Now().UnixNano(), payload)
	return j.db.Set(keyFor(idx), rec, pebble.NoSync)
}

// Scan walks entries with index >= from, in arrival order. fn errors
// stop the walk.
func (j *Journal) Scan(from uint64, fn func(Entry) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(from),
		UpperBound: []byte(evtPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		idx, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		ts, payload, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(Entry{Index: idx, Time: ts, Payload: payload}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Cursor returns the index after the last broadcast entry.
func (j *Journal) Cursor() (uint64, error) {
	val, closer, err := j.db.Get([]byte(cursorKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, ErrCorruptRecord
	}
	return binary.BigEndian.Uint64(val), nil
}

func (j *Journal) SetCursor(n uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return j.db.Set([]byte(cursorKey), buf, pebble.Sync)
}

// binary framing: [time:8][len:4][payload][crc:4], little endian,
// crc over time+len+payload.
func encodeRecord(ts int64, payload []byte) []byte {
	buf := make([]byte, 12+len(payload)+4)
	binary.LittleEndian.PutUint64(buf[:8], uint64(ts))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[12:], payload)
	sum := crc32.ChecksumIEEE(buf[: 12+len(payload)])
	binary.LittleEndian.PutUint32(buf[12+len(payload):], sum)
	return buf
}

func decodeRecord(b []byte) (int64, []byte, error) {
	if len(b) < 16 {
		return 0, nil, ErrCorruptRecord
	}
	n := binary.LittleEndian.Uint32(b[8:12])
	if len(b) != int(16+n) {
		return 0, nil, ErrCorruptRecord
	}
	want := binary.LittleEndian.Uint32(b[12+n:])
	if crc32.ChecksumIEEE(b[:12+n]) != want {
		return 0, nil, ErrCorruptRecord
	}
	ts := int64(binary.LittleEndian.Uint64(b[:8]))
	payload := append([]byte(nil), b[12:12+n]...)
	return ts, payload, nil
}

func keyFor(idx uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", evtPrefix, idx))
}

func parseKey(key []byte) (uint64, error) {
	var idx uint64
	if _, err := fmt.Sscanf(string(key), evtPrefix+"%d", &idx); err != nil {
		return 0, fmt.Errorf("recorder: bad key %q: %w", key, err)
	}
	return idx, nil
}
