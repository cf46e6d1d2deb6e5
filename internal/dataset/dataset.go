// Package dataset holds the tabular structure produced by an analyser: one
// analysis interval key, a header row and one row per sample id.
package dataset

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/apperrors"
)

// HeaderKey is the row key carrying the column names.
const HeaderKey = "0"

// sampleIDColumn is implicit in every dataset and must not appear in the header.
const sampleIDColumn = "sampleid"

// Row is one ordered row of values.
type Row []string

// Dataset is an ordered mapping from sample id to row under a single
// analysis interval key. Row order is the order rows were added.
type Dataset struct {
	intervalKey string
	header      Row
	sampleIDs   []string
	rows        map[string]Row
}

// New creates an empty dataset.
func New(intervalKey string, header Row) *Dataset {
	return &Dataset{
		intervalKey: intervalKey,
		header:      append(Row(nil), header...),
		rows:        make(map[string]Row),
	}
}

// Add appends a row, replacing the values of an existing sample id in place.
func (d *Dataset) Add(sampleID string, row Row) {
	if _, ok := d.rows[sampleID]; !ok {
		d.sampleIDs = append(d.sampleIDs, sampleID)
	}
	d.rows[sampleID] = append(Row(nil), row...)
}

// AnalysisIntervalKey returns the single top-level key.
func (d *Dataset) AnalysisIntervalKey() string {
	return d.intervalKey
}

// FirstRow returns the header.
func (d *Dataset) FirstRow() Row {
	return append(Row(nil), d.header...)
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.sampleIDs)
}

// Row returns the row stored for sampleID.
func (d *Dataset) Row(sampleID string) (Row, bool) {
	r, ok := d.rows[sampleID]
	return r, ok
}

// Rows calls fn for every data row in order and stops when fn returns false.
func (d *Dataset) Rows(fn func(sampleID string, row Row) bool) {
	for _, sid := range d.sampleIDs {
		if !fn(sid, d.rows[sid]) {
			return
		}
	}
}

// SampleIDsUsed returns every sample id once, in first-seen order.
func (d *Dataset) SampleIDsUsed() []string {
	return lo.Uniq(d.sampleIDs)
}

// IDsUsed returns the entity ids of all sample ids, de-duplicated in
// first-seen order.
func (d *Dataset) IDsUsed() ([]int64, error) {
	ids := make([]int64, 0, len(d.sampleIDs))
	for _, sid := range d.sampleIDs {
		parsed, err := ParseSampleID(sid)
		if err != nil {
			return nil, err
		}
		ids = append(ids, parsed.EntityID)
	}
	return lo.Uniq(ids), nil
}

// Validate checks the structural rules every dataset must satisfy before it
// enters the pipeline.
func (d *Dataset) Validate() error {
	if len(d.header) == 0 {
		return fmt.Errorf("%w: header is empty", apperrors.ErrMalformedDataset)
	}
	if len(d.sampleIDs) == 0 {
		return fmt.Errorf("%w: no data rows", apperrors.ErrMalformedDataset)
	}

	var hasIndicator, hasTarget bool
	for _, col := range d.header {
		lower := strings.ToLower(col)
		if lower == sampleIDColumn {
			return fmt.Errorf("%w: header must not contain a %q column", apperrors.ErrMalformedDataset, sampleIDColumn)
		}
		hasIndicator = hasIndicator || strings.Contains(lower, "indicator")
		hasTarget = hasTarget || strings.Contains(lower, "target")
	}
	if !hasIndicator || !hasTarget {
		return fmt.Errorf("%w: header needs at least one indicator column and a target column", apperrors.ErrMalformedDataset)
	}

	for _, sid := range d.sampleIDs {
		if n := len(d.rows[sid]); n != len(d.header) {
			return fmt.Errorf("%w: row %s has %d values, header has %d", apperrors.ErrMalformedDataset, sid, n, len(d.header))
		}
	}
	return nil
}

// Shuffled returns a copy with the row order randomized. Every sample id
// keeps its own values.
func (d *Dataset) Shuffled() *Dataset {
	out := d.clone()
	out.sampleIDs = lo.Shuffle(out.sampleIDs)
	return out
}

// Merge combines the rows of a and b. Rows of a come first; a sample id
// present in both keeps a's values.
func Merge(a, b *Dataset) (*Dataset, error) {
	if err := sameStructure(a, b); err != nil {
		return nil, err
	}
	out := a.clone()
	b.Rows(func(sid string, row Row) bool {
		if _, ok := out.rows[sid]; !ok {
			out.Add(sid, row)
		}
		return true
	})
	return out, nil
}

// Diff returns the rows of a whose sample id does not appear in b.
func Diff(a, b *Dataset) (*Dataset, error) {
	if a.intervalKey != b.intervalKey {
		return nil, fmt.Errorf("%w: analysis interval %q differs from %q", apperrors.ErrStructuralMismatch, a.intervalKey, b.intervalKey)
	}
	out := New(a.intervalKey, a.header)
	a.Rows(func(sid string, row Row) bool {
		if _, ok := b.rows[sid]; !ok {
			out.Add(sid, row)
		}
		return true
	})
	return out, nil
}

// Split cuts the dataset in two at index n of its row order.
func (d *Dataset) Split(n int) (head, tail *Dataset) {
	n = max(0, min(n, len(d.sampleIDs)))
	head = New(d.intervalKey, d.header)
	tail = New(d.intervalKey, d.header)
	for i, sid := range d.sampleIDs {
		if i < n {
			head.Add(sid, d.rows[sid])
		} else {
			tail.Add(sid, d.rows[sid])
		}
	}
	return head, tail
}

// SampleIDMapper rewrites sample ids, e.g. through an identity map.
type SampleIDMapper interface {
	PseudonymSampleID(sampleID string) (string, error)
}

// Pseudonymize returns a copy whose sample ids went through m. Values are
// left untouched.
func (d *Dataset) Pseudonymize(m SampleIDMapper) (*Dataset, error) {
	out := New(d.intervalKey, d.header)
	for _, sid := range d.sampleIDs {
		mapped, err := m.PseudonymSampleID(sid)
		if err != nil {
			return nil, fmt.Errorf("failed to pseudonymize sample %s: %w", sid, err)
		}
		out.Add(mapped, d.rows[sid])
	}
	return out, nil
}

func (d *Dataset) clone() *Dataset {
	out := New(d.intervalKey, d.header)
	for _, sid := range d.sampleIDs {
		out.Add(sid, d.rows[sid])
	}
	return out
}

func sameStructure(a, b *Dataset) error {
	if a.intervalKey != b.intervalKey {
		return fmt.Errorf("%w: analysis interval %q differs from %q", apperrors.ErrStructuralMismatch, a.intervalKey, b.intervalKey)
	}
	if len(a.header) != len(b.header) {
		return fmt.Errorf("%w: headers have %d and %d columns", apperrors.ErrStructuralMismatch, len(a.header), len(b.header))
	}
	for i := range a.header {
		if a.header[i] != b.header[i] {
			return fmt.Errorf("%w: header column %d is %q and %q", apperrors.ErrStructuralMismatch, i, a.header[i], b.header[i])
		}
	}
	return nil
}
