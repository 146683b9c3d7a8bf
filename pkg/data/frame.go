package data

import (
	"strconv"
	"strings"
)

// Kind classifies a column by its cell contents.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// missingTokens are the cell values read as "no value".
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"NULL": {}, "null": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#NA": {},
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// ParseNumber parses a cell as a float. Booleans count as 1 and 0.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	switch strings.ToLower(s) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	return 0, false
}

// Frame is a table of raw string cells with named columns.
// It is owned by a single request and mutated in place.
type Frame struct {
	header []string
	rows   [][]string
}

// NewFrame builds a Frame from a header and rows. Rows are not copied.
func NewFrame(header []string, rows [][]string) *Frame {
	return &Frame{header: normalizeHeader(header), rows: rows}
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.header...) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Index returns the position of a column or -1.
func (f *Frame) Index(name string) int {
	for i, h := range f.header {
		if h == name {
			return i
		}
	}
	return -1
}

// Has reports whether the frame has the column.
func (f *Frame) Has(name string) bool { return f.Index(name) >= 0 }

// Column returns a copy of the named column's cells, or nil when absent.
func (f *Frame) Column(name string) []string {
	j := f.Index(name)
	if j < 0 {
		return nil
	}
	return f.ColumnAt(j)
}

// ColumnAt returns a copy of the cells of column j.
func (f *Frame) ColumnAt(j int) []string {
	col := make([]string, len(f.rows))
	for i, row := range f.rows {
		col[i] = row[j]
	}
	return col
}

// Kind reports whether every cell of the column parses as a number.
func (f *Frame) Kind(name string) Kind {
	j := f.Index(name)
	if j < 0 {
		return Categorical
	}
	for _, row := range f.rows {
		if _, ok := ParseNumber(row[j]); !ok {
			return Categorical
		}
	}
	return Numeric
}

// DropColumns removes every column for which drop returns true and
// returns the removed names.
func (f *Frame) DropColumns(drop func(name string) bool) []string {
	keep := make([]int, 0, len(f.header))
	var dropped []string
	for j, h := range f.header {
		if drop(h) {
			dropped = append(dropped, h)
			continue
		}
		keep = append(keep, j)
	}
	if len(dropped) == 0 {
		return nil
	}

	header := make([]string, len(keep))
	for k, j := range keep {
		header[k] = f.header[j]
	}
	for i, row := range f.rows {
		out := make([]string, len(keep))
		for k, j := range keep {
			out[k] = row[j]
		}
		f.rows[i] = out
	}
	f.header = header
	return dropped
}

// DropMissingRows removes rows with any missing cell and returns how many were removed.
func (f *Frame) DropMissingRows() int {
	kept := f.rows[:0]
	for _, row := range f.rows {
		complete := true
		for _, cell := range row {
			if IsMissing(cell) {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, row)
		}
	}
	n := len(f.rows) - len(kept)
	f.rows = kept
	return n
}

// AppendColumn adds a column at the end. cells must have one entry per row.
func (f *Frame) AppendColumn(name string, cells []string) {
	f.header = append(f.header, name)
	for i := range f.rows {
		f.rows[i] = append(f.rows[i], cells[i])
	}
}
