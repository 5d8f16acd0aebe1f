package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"marketsim/pkg/sim"
)

// Record kinds persisted by the event journal.
const (
	RecordOrder uint8 = iota + 1
	RecordTrade
	RecordLine
)

// Record is one journal entry. Gob-encoded under an ascending sequence key,
// so iterating the keyspace replays the run in event order.
type Record struct {
	Kind    uint8
	Side    uint8
	Volume  int64
	Price   int64
	Seconds float64
	Fields  []string
}

// EventJournal is an append-only pebble store of every engine event. It
// exists for post-run replay and inspection; the simulation never reads it.
type EventJournal struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq uint64
	err error
}

// OpenEventJournal opens (or creates) the journal at dir.
func OpenEventJournal(dir string) (*EventJournal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open event journal: %w", err)
	}
	return &EventJournal{db: db}, nil
}

// keys: e:<8-byte big-endian sequence>
func (j *EventJournal) nextKey() []byte {
	key := make([]byte, 2+8)
	copy(key, "e:")
	binary.BigEndian.PutUint64(key[2:], j.seq)
	j.seq++
	return key
}

func (j *EventJournal) append(r Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	val, err := encodeGob(r)
	if err == nil {
		err = j.db.Set(j.nextKey(), val, pebble.NoSync)
	}
	if err != nil && j.err == nil {
		j.err = fmt.Errorf("journal append: %w", err)
	}
}

func (j *EventJournal) OnOrderEvent(side sim.Side, volume, price int64) {
	j.append(Record{Kind: RecordOrder, Side: uint8(side), Volume: volume, Price: price})
}

func (j *EventJournal) OnTrade(seconds float64, price int64) {
	j.append(Record{Kind: RecordTrade, Seconds: seconds, Price: price})
}

func (j *EventJournal) OnLogLine(fields []string) {
	j.append(Record{Kind: RecordLine, Fields: fields})
}

// Flush forces buffered writes to stable storage and reports the first
// append error seen.
func (j *EventJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.db.Flush(); err != nil && j.err == nil {
		j.err = fmt.Errorf("journal flush: %w", err)
	}
	return j.err
}

// Close flushes and closes the store.
func (j *EventJournal) Close() error {
	err := j.Flush()
	if cerr := j.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Replay calls fn for every record in append order.
func (j *EventJournal) Replay(fn func(seq uint64, r Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("e:"),
		UpperBound: []byte("e;"), // ';' is the byte after ':'
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var r Record
		if err := decodeGob(iter.Value(), &r); err != nil {
			return fmt.Errorf("journal decode: %w", err)
		}
		seq := binary.BigEndian.Uint64(iter.Key()[2:])
		if err := fn(seq, r); err != nil {
			return err
		}
	}
	return iter.Error()
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

var _ sim.EventSink = (*EventJournal)(nil)
