package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNotCSV is returned for uploads whose name lacks the .csv suffix.
	ErrNotCSV = errors.New("File must be a CSV file")
	// ErrParse wraps every failure of the CSV reader.
	ErrParse = errors.New("could not parse CSV")
)

const bom = "\ufeff"

// ValidateFilename checks the upload name and returns the base name to store it under.
func ValidateFilename(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || !strings.HasSuffix(strings.ToLower(base), ".csv") {
		return "", ErrNotCSV
	}
	return base, nil
}

// LoadCSV opens path and parses it with ReadCSV.
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses delimited data with a header row into a Frame.
// Every row must carry as many fields as the header.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rows := make([][]string, 0, 64)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		rows = append(rows, rec)
	}

	return &Frame{header: normalizeHeader(header), rows: rows}, nil
}

// normalizeHeader names blank columns "Unnamed: i" and suffixes duplicates with ".n",
// matching what spreadsheet exports re-imported with an index column look like.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// WriteCSV writes a header and float rows, the format used for processed datasets.
func WriteCSV(w io.Writer, header []string, rows [][]float64) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, row := range rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(rec[:len(row)]); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
