package dataprep

import (
	"errors"
	"strings"

	"mlviz/pkg/data"
)

var (
	ErrTargetNotFound = errors.New("Target column not found in the dataset")
	ErrEmptyDataset   = errors.New("Dataset is empty after removing null values")
	ErrNoFeatures     = errors.New("Dataset has no feature columns left after preprocessing")
)

// IsUnnamed matches the columns left behind when an index column is re-imported.
func IsUnnamed(name string) bool { return strings.HasPrefix(name, "Unnamed") }

// IsIDColumn matches "id", "ID", "Id_user", "identifier" and so on.
func IsIDColumn(name string) bool { return strings.HasPrefix(strings.ToLower(name), "id") }

// DropUnnamed removes index-like unnamed columns, never the protected one.
func DropUnnamed(f *data.Frame, protect string) []string {
	return f.DropColumns(func(name string) bool { return name != protect && IsUnnamed(name) })
}

// DropIDColumns removes identifier columns, never the protected one.
func DropIDColumns(f *data.Frame, protect string) []string {
	return f.DropColumns(func(name string) bool { return name != protect && IsIDColumn(name) })
}

// DropMissing removes incomplete rows and fails when nothing is left.
func DropMissing(f *data.Frame) (int, error) {
	n := f.DropMissingRows()
	if f.Len() == 0 {
		return n, ErrEmptyDataset
	}
	return n, nil
}
