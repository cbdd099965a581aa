// Package table reads CSV part-files and merges them into a single in-memory
// table. The merge is a pure function of its inputs: rows keep their order
// within each file, files keep their list order, and every part-file must
// agree with the first one on column count.
package table

import "fmt"

// Table is a merged set of rows sharing one column count. Rows are
// positionally indexed; no named schema is guaranteed across sources.
type Table struct {
	Rows    [][]string
	Columns int
}

// SchemaMismatchError indicates a part-file whose column count differs from
// the first part-file in the merge.
type SchemaMismatchError struct {
	File string
	Got  int
	Want int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: %d columns, want %d", e.File, e.Got, e.Want)
}

// EncodingError indicates a part-file that is not valid UTF-8.
type EncodingError struct {
	File string
	Line int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid utf-8 in %s at line %d", e.File, e.Line)
}
