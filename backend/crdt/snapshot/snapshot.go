// Package snapshot encodes tracker state into a compact binary form and back.
// Every span field is plain data (two integers, a status triple, two optional
// identifiers), so the format is a flat CBOR record list in document order.
package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/multierr"

	"weft/backend/crdt/span"
	"weft/backend/crdt/tracker"
)

// Version of the snapshot format.
const Version = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

type snapshotRecord struct {
	Version int          `cbor:"1,keyasint"`
	Spans   []spanRecord `cbor:"2,keyasint"`
}

type spanRecord struct {
	Actor       uint64    `cbor:"1,keyasint"`
	Counter     int32     `cbor:"2,keyasint"`
	Length      int       `cbor:"3,keyasint"`
	Pending     bool      `cbor:"4,keyasint,omitempty"`
	DeleteCount int       `cbor:"5,keyasint,omitempty"`
	UndoCount   int       `cbor:"6,keyasint,omitempty"`
	OriginLeft  *idRecord `cbor:"7,keyasint,omitempty"`
	OriginRight *idRecord `cbor:"8,keyasint,omitempty"`
}

type idRecord struct {
	Actor   uint64 `cbor:"1,keyasint"`
	Counter int32  `cbor:"2,keyasint"`
}

func encodeMaybeID(m span.MaybeID) *idRecord {
	if !m.Ok {
		return nil
	}
	return &idRecord{Actor: uint64(m.ID.Actor), Counter: int32(m.ID.Counter)}
}

func decodeMaybeID(r *idRecord) span.MaybeID {
	if r == nil {
		return span.MaybeID{}
	}
	return span.SomeID(span.NewID(span.Actor(r.Actor), span.Counter(r.Counter)))
}

// Encode serializes the tracker's runs in document order.
func Encode(t *tracker.Tracker) ([]byte, error) {
	rec := snapshotRecord{
		Version: Version,
		Spans:   make([]spanRecord, 0, t.RunCount()),
	}

	for s := range t.Runs() {
		rec.Spans = append(rec.Spans, spanRecord{
			Actor:       uint64(s.ID.Actor),
			Counter:     int32(s.ID.Counter),
			Length:      s.Length,
			Pending:     s.Status.Pending(),
			DeleteCount: s.Status.DeleteCount(),
			UndoCount:   s.Status.UndoCount(),
			OriginLeft:  encodeMaybeID(s.OriginLeft),
			OriginRight: encodeMaybeID(s.OriginRight),
		})
	}

	return encMode.Marshal(rec)
}

// Decode rebuilds a tracker from an encoded snapshot.
// All malformed records are reported, not just the first one.
func Decode(data []byte) (*tracker.Tracker, error) {
	var rec snapshotRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	if rec.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d, want %d", rec.Version, Version)
	}

	var verr error
	for i, sr := range rec.Spans {
		if sr.Length <= 0 {
			verr = multierr.Append(verr, fmt.Errorf("span %d: non-positive length %d", i, sr.Length))
		}
		if _, err := span.RestoreStatus(sr.Pending, sr.DeleteCount, sr.UndoCount); err != nil {
			verr = multierr.Append(verr, fmt.Errorf("span %d: %w", i, err))
		}
	}
	if verr != nil {
		return nil, verr
	}

	t := tracker.New()
	for i, sr := range rec.Spans {
		status, err := span.RestoreStatus(sr.Pending, sr.DeleteCount, sr.UndoCount)
		if err != nil {
			panic("BUG: status validated above")
		}

		s := span.New(
			span.NewID(span.Actor(sr.Actor), span.Counter(sr.Counter)),
			sr.Length,
			decodeMaybeID(sr.OriginLeft),
			decodeMaybeID(sr.OriginRight),
		)
		s.Status = status

		if err := t.Append(s); err != nil {
			return nil, fmt.Errorf("span %d: %w", i, err)
		}
	}

	return t, nil
}
