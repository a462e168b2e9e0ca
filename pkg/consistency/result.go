package consistency

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
)

// CalculatedResult is one chunk read from one side. MaxUniqueKeyValue is the
// checkpoint the next chunk starts after.
type CalculatedResult struct {
	MaxUniqueKeyValue any
	RecordsCount      int
	// Records hold scanned column values in each side's own row order.
	Records [][]any
	// Columns names the record positions; it is not part of equality.
	Columns []string
}

// MismatchKind classifies the first difference between two chunks.
type MismatchKind string

const (
	MismatchRecordsCount MismatchKind = "RECORDS_COUNT"
	MismatchMaxUniqueKey MismatchKind = "MAX_UNIQUE_KEY"
	MismatchColumnCount  MismatchKind = "COLUMN_COUNT"
	MismatchColumnValue  MismatchKind = "COLUMN_VALUE"
)

// Mismatch describes where two chunk results first differ. Left and Right
// hold the differing values; for record and column kinds they are counts.
type Mismatch struct {
	Kind        MismatchKind
	RecordIndex int
	ColumnIndex int
	Column      string
	Left        any
	Right       any
	LeftRecord  []any
	RightRecord []any
}

func (m *Mismatch) String() string {
	switch m.Kind {
	case MismatchColumnValue:
		return fmt.Sprintf("%s: record %d column %q: %s != %s; left=%s right=%s",
			m.Kind, m.RecordIndex, m.Column,
			logging.SanitizeValue(m.Left), logging.SanitizeValue(m.Right),
			formatRecord(m.LeftRecord), formatRecord(m.RightRecord))
	case MismatchColumnCount:
		return fmt.Sprintf("%s: record %d has %v columns on the left and %v on the right", m.Kind, m.RecordIndex, m.Left, m.Right)
	default:
		return fmt.Sprintf("%s: %s != %s", m.Kind, logging.SanitizeValue(m.Left), logging.SanitizeValue(m.Right))
	}
}

func formatRecord(record []any) string {
	parts := make([]any, len(record))
	for i, v := range record {
		parts[i] = logging.SanitizeValue(v)
	}
	return fmt.Sprint(parts)
}

// Diff returns the first difference between r and other, or nil when they
// are equal. Large objects compare by content; any other differing column
// stops the scan.
func (r *CalculatedResult) Diff(other *CalculatedResult) *Mismatch {
	if r == nil || other == nil {
		if r == other {
			return nil
		}
		return &Mismatch{Kind: MismatchRecordsCount, Left: recordsCount(r), Right: recordsCount(other)}
	}
	if r.RecordsCount != other.RecordsCount {
		return &Mismatch{Kind: MismatchRecordsCount, Left: r.RecordsCount, Right: other.RecordsCount}
	}
	if !valuesEqual(r.MaxUniqueKeyValue, other.MaxUniqueKeyValue) {
		return &Mismatch{Kind: MismatchMaxUniqueKey, Left: r.MaxUniqueKeyValue, Right: other.MaxUniqueKeyValue}
	}
	if len(r.Records) != len(other.Records) {
		return &Mismatch{Kind: MismatchRecordsCount, Left: len(r.Records), Right: len(other.Records)}
	}

	for i := range r.Records {
		left, right := r.Records[i], other.Records[i]
		if len(left) != len(right) {
			return &Mismatch{
				Kind: MismatchColumnCount, RecordIndex: i,
				Left: len(left), Right: len(right),
				LeftRecord: left, RightRecord: right,
			}
		}
		for j := range left {
			if valuesEqual(left[j], right[j]) {
				continue
			}
			return &Mismatch{
				Kind: MismatchColumnValue, RecordIndex: i, ColumnIndex: j, Column: r.columnName(j),
				Left: left[j], Right: right[j],
				LeftRecord: left, RightRecord: right,
			}
		}
	}
	return nil
}

// Equal reports whether both chunks hold the same records under the same checkpoint.
func (r *CalculatedResult) Equal(other *CalculatedResult) bool {
	return r.Diff(other) == nil
}

// Hash covers the same fields as Equal, so equal results hash equally.
func (r *CalculatedResult) Hash() uint64 {
	if r == nil {
		return 0
	}
	d := xxhash.New()
	_, _ = d.WriteString(canonicalValue(r.MaxUniqueKeyValue))
	_, _ = d.WriteString(fmt.Sprintf("\x1e%d", r.RecordsCount))
	for _, record := range r.Records {
		_, _ = d.WriteString("\x1e")
		for _, v := range record {
			_, _ = d.WriteString(canonicalValue(v))
			_, _ = d.WriteString("\x1f")
		}
	}
	return d.Sum64()
}

func (r *CalculatedResult) columnName(i int) string {
	if i < len(r.Columns) {
		return r.Columns[i]
	}
	return fmt.Sprintf("#%d", i+1)
}

func recordsCount(r *CalculatedResult) int {
	if r == nil {
		return 0
	}
	return r.RecordsCount
}
