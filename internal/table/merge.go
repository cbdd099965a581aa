package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"unicode/utf8"
)

// utf8BOM is the byte order mark some exports prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Merge reads each CSV part-file and concatenates their rows in file-list
// order. The first row of the first file fixes the column count; any row in
// any file with a different width fails the merge with *SchemaMismatchError.
// Files must be UTF-8 (*EncodingError otherwise).
func Merge(paths []string) (*Table, error) {
	merged := &Table{}

	for _, path := range paths {
		rows, err := readCSV(path, merged.Columns)
		if err != nil {
			return nil, err
		}
		if merged.Columns == 0 && len(rows) > 0 {
			merged.Columns = len(rows[0])
		}
		merged.Rows = append(merged.Rows, rows...)
	}

	return merged, nil
}

// readCSV parses one part-file. want is the expected column count, or 0 if
// this file establishes it.
func readCSV(path string, want int) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		return nil, &EncodingError{File: path, Line: invalidLine(data)}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // width checked below for a precise error

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, row := range rows {
		if want == 0 {
			want = len(row)
			continue
		}
		if len(row) != want {
			return nil, &SchemaMismatchError{File: path, Got: len(row), Want: want}
		}
	}

	return rows, nil
}

// invalidLine returns the 1-based line number of the first invalid UTF-8
// sequence in data.
func invalidLine(data []byte) int {
	line := 1
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		data = data[size:]
	}
	return line
}
