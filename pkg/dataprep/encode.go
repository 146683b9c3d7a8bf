package dataprep

import (
	"fmt"
	"sort"
	"strconv"

	"mlviz/pkg/data"
)

// DefaultMaxCategories is the largest number of distinct values a column may
// have before one-hot encoding refuses it.
const DefaultMaxCategories = 100

// CardinalityError names a categorical column with too many distinct values.
type CardinalityError struct {
	Column   string
	Distinct int
	Limit    int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("Column %s has over %d unique values, which is too many for one-hot encoding", e.Column, e.Limit)
}

// Categories returns the distinct values of col in sorted order.
func Categories(col []string) []string {
	unique := map[string]struct{}{}
	for _, v := range col {
		unique[v] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for v := range unique {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EncodeCategorical one-hot encodes a slice of string categories. Indicator
// columns follow the sorted order of the returned categories.
func EncodeCategorical(col []string) ([][]float64, []string) {
	cats := Categories(col)
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		index[c] = i
	}
	out := make([][]float64, len(col))
	for i, v := range col {
		vec := make([]float64, len(cats))
		vec[index[v]] = 1
		out[i] = vec
	}
	return out, cats
}

// LabelEncode maps each distinct value to its position in sorted order.
func LabelEncode(col []string) ([]int, []string) {
	cats := Categories(col)
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		index[c] = i
	}
	out := make([]int, len(col))
	for i, v := range col {
		out[i] = index[v]
	}
	return out, cats
}

// NumericLabelEncode encodes numeric class values in ascending numeric order.
// Classes are returned formatted so "1.0" and "1" collapse to the same class.
func NumericLabelEncode(col []string) ([]int, []string, error) {
	vals := make([]float64, len(col))
	unique := map[float64]struct{}{}
	for i, s := range col {
		v, ok := data.ParseNumber(s)
		if !ok {
			return nil, nil, fmt.Errorf("value %q is not numeric", s)
		}
		vals[i] = v
		unique[v] = struct{}{}
	}
	sorted := make([]float64, 0, len(unique))
	for v := range unique {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)

	index := make(map[float64]int, len(sorted))
	classes := make([]string, len(sorted))
	for i, v := range sorted {
		index[v] = i
		classes[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = index[v]
	}
	return out, classes, nil
}

// CheckCardinality fails when any of the named columns has more than limit distinct values.
func CheckCardinality(f *data.Frame, columns []string, limit int) error {
	for _, name := range columns {
		if n := len(Categories(f.Column(name))); n > limit {
			return &CardinalityError{Column: name, Distinct: n, Limit: limit}
		}
	}
	return nil
}

// OneHot replaces each named column with indicator columns "<name>_<value>"
// appended after the remaining columns, in the order the names are given.
// An indicator name already in use gets a ".n" suffix.
func OneHot(f *data.Frame, columns []string) {
	if len(columns) == 0 {
		return
	}
	type expansion struct {
		name string
		oh   [][]float64
		cats []string
	}
	expansions := make([]expansion, 0, len(columns))
	encode := make(map[string]bool, len(columns))
	for _, name := range columns {
		oh, cats := EncodeCategorical(f.Column(name))
		expansions = append(expansions, expansion{name: name, oh: oh, cats: cats})
		encode[name] = true
	}
	f.DropColumns(func(name string) bool { return encode[name] })

	taken := make(map[string]bool)
	for _, name := range f.Columns() {
		taken[name] = true
	}
	for _, e := range expansions {
		for k, cat := range e.cats {
			cells := make([]string, len(e.oh))
			for i := range e.oh {
				if e.oh[i][k] == 1 {
					cells[i] = "1"
				} else {
					cells[i] = "0"
				}
			}
			f.AppendColumn(uniqueName(taken, e.name+"_"+cat), cells)
		}
	}
}

// uniqueName returns name, or name with the first free ".n" suffix, and marks it taken.
func uniqueName(taken map[string]bool, name string) string {
	out := name
	for n := 1; taken[out]; n++ {
		out = name + "." + strconv.Itoa(n)
	}
	taken[out] = true
	return out
}
