package device

import (
	"fmt"
	"slices"
)

// Gap is an inclusive range of device log ids that were never delivered.
type Gap struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (g Gap) String() string {
	if g.From == g.To {
		return fmt.Sprintf("%d", g.From)
	}
	return fmt.Sprintf("%d-%d", g.From, g.To)
}

// Size is the number of missing ids in the range.
func (g Gap) Size() int64 {
	return g.To - g.From + 1
}

// Batch is a cleaned set of entries ready to be appended after a cursor.
type Batch struct {
	Entries   []LogEntry
	Stale     int // ids at or below the cursor
	Duplicate int
	Reordered bool
}

// MaxID returns the highest device log id in the batch, or 0 when empty.
func (b Batch) MaxID() int64 {
	if len(b.Entries) == 0 {
		return 0
	}
	return b.Entries[len(b.Entries)-1].DeviceLogID
}

// Anomalous reports whether the device returned stale, duplicate or
// out-of-order records.
func (b Batch) Anomalous() bool {
	return b.Stale > 0 || b.Duplicate > 0 || b.Reordered
}

// PrepareBatch drops records with ids at or below cursor, orders the rest
// ascending by id and keeps only the first record per id.
func PrepareBatch(cursor int64, records []LogEntry) Batch {
	var b Batch
	fresh := make([]LogEntry, 0, len(records))
	var last int64
	for i, r := range records {
		if r.DeviceLogID <= cursor {
			b.Stale++
			continue
		}
		if i > 0 && r.DeviceLogID < last {
			b.Reordered = true
		}
		last = r.DeviceLogID
		fresh = append(fresh, r)
	}

	slices.SortStableFunc(fresh, func(a, c LogEntry) int {
		switch {
		case a.DeviceLogID < c.DeviceLogID:
			return -1
		case a.DeviceLogID > c.DeviceLogID:
			return 1
		}
		return 0
	})

	b.Entries = fresh[:0]
	for _, r := range fresh {
		if n := len(b.Entries); n > 0 && b.Entries[n-1].DeviceLogID == r.DeviceLogID {
			b.Duplicate++
			continue
		}
		b.Entries = append(b.Entries, r)
	}
	return b
}

// DetectGaps returns the missing id ranges between the cursor and the
// batch and inside the batch. entries must be sorted ascending and unique.
// The leading range is only checked when the cursor is set.
func DetectGaps(cursor Cursor, entries []LogEntry) []Gap {
	var gaps []Gap
	prev := cursor.LastProcessedID
	checkLeading := cursor.Set
	for i, e := range entries {
		if i == 0 && !checkLeading {
			prev = e.DeviceLogID
			continue
		}
		if e.DeviceLogID > prev+1 {
			gaps = append(gaps, Gap{From: prev + 1, To: e.DeviceLogID - 1})
		}
		prev = e.DeviceLogID
	}
	return gaps
}

// MissingCount sums the sizes of gaps.
func MissingCount(gaps []Gap) int64 {
	var n int64
	for _, g := range gaps {
		n += g.Size()
	}
	return n
}
