// Package dataset builds pipekit datasets from delimited text files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vvka-141/pipekit/pkg/pipekit"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultNullValues are the cell values read as NULL when Options.NullValues
// is nil. They follow the spellings spreadsheet and dataframe tools emit.
var DefaultNullValues = []string{"", "NA", "N/A", "n/a", "#N/A", "NULL", "null", "NaN", "nan", "None", "<NA>"}

// Options configures ReadCSV. The zero value reads comma-separated UTF-8 with
// type inference.
type Options struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// Encoding is a WHATWG encoding label such as "utf-8", "windows-1250" or
	// "latin1". Empty means UTF-8.
	Encoding string

	// NullValues overrides DefaultNullValues.
	NullValues []string

	// NoInference keeps every non-NULL cell as a string.
	NoInference bool
}

// ReadCSV reads a header row followed by data rows into a Dataset.
//
// Each column's values are converted to the narrowest type every non-NULL
// cell parses as: int64, then float64, then bool, otherwise string. Blank
// header cells become "Unnamed: N" and repeated names get ".1", ".2" suffixes,
// so the result always passes Dataset.Validate.
func ReadCSV(r io.Reader, opts Options) (*pipekit.Dataset, error) {
	decoded, err := decode(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header row: %w", pipekit.ErrInvalidDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w: %w", err, pipekit.ErrInvalidDataset)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w: %w", err, pipekit.ErrInvalidDataset)
	}

	columns := columnNames(header)
	nulls := nullSet(opts.NullValues)

	convert := make([]func(string) any, len(columns))
	for i := range columns {
		if opts.NoInference {
			convert[i] = asString
			continue
		}
		convert[i] = sniff(records, i, nulls)
	}

	ds := pipekit.NewDataset(columns...)
	for _, rec := range records {
		row := make(pipekit.Row, len(columns))
		for i, name := range columns {
			cell := rec[i]
			if nulls[cell] {
				continue
			}
			row[name] = convert[i](cell)
		}
		ds.Append(row)
	}
	return ds, nil
}

func decode(r io.Reader, label string) (io.Reader, error) {
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, pipekit.ErrInvalidConfig)
	}
	// A byte order mark, when present, takes precedence over the label.
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func columnNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for seen[name] > 0 {
			name = base + "." + strconv.Itoa(seen[base])
			seen[base]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func nullSet(values []string) map[string]bool {
	if values == nil {
		values = DefaultNullValues
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// sniff picks the converter for column i.
func sniff(records [][]string, i int, nulls map[string]bool) func(string) any {
	isInt, isFloat, isBool := true, true, true
	for _, rec := range records {
		cell := rec[i]
		if nulls[cell] {
			continue
		}
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			break
		}
	}

	switch {
	case isInt:
		return func(s string) any {
			n, _ := strconv.ParseInt(s, 10, 64)
			return n
		}
	case isFloat:
		return func(s string) any {
			f, _ := strconv.ParseFloat(s, 64)
			return f
		}
	case isBool:
		return func(s string) any {
			b, _ := parseBool(s)
			return b
		}
	default:
		return asString
	}
}

func asString(s string) any { return s }

// parseBool accepts the spellings pandas reads as booleans.
func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	default:
		return false, false
	}
}
