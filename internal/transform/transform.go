// Package transform reduces a merged export table to the deduplicated,
// count-annotated summary published to the report sheet.
//
// The reduction is: facility filter → positional projection of six columns
// (the first is the business key) → per-key occurrence count → first-wins
// dedupe of the attribute values → final column ordering with the count
// interposed between the third and fourth attribute. That ordering is what
// the report consumers expect; it is not incidental.
package transform

import (
	"fmt"
	"strconv"
)

// KeyName and QuantityName are the fixed header names of the key and count
// columns in the published report.
const (
	KeyName      = "Chave"
	QuantityName = "Quantidade"
)

// Config describes the business transform.
type Config struct {
	// FacilityColumn is the zero-based index of the facility-code column.
	FacilityColumn int

	// Facility is the exact facility code to retain. Case-sensitive, no
	// normalization.
	Facility string

	// Columns are the six zero-based source column indices to project, in
	// output order. Columns[0] is the key column.
	Columns []int

	// AttributeNames are the header names of the five projected attribute
	// columns, in projection order.
	AttributeNames []string
}

// Record is one deduplicated report row: a distinct key, the attribute
// values of its first occurrence, and how many source rows collapsed into
// it.
type Record struct {
	Key        string
	Attributes [5]string
	Quantity   int
}

// ColumnIndexError indicates a configured column index that does not exist
// in the source table. This is a configuration error, not a data error, and
// is never retried.
type ColumnIndexError struct {
	Index   int
	Columns int
}

func (e *ColumnIndexError) Error() string {
	return fmt.Sprintf("column index %d out of range for table with %d columns", e.Index, e.Columns)
}

// Validate checks the shape of the config independent of any table.
func (c Config) Validate() error {
	if len(c.Columns) != 6 {
		return fmt.Errorf("transform config: %d projection columns, want 6", len(c.Columns))
	}
	if len(c.AttributeNames) != 5 {
		return fmt.Errorf("transform config: %d attribute names, want 5", len(c.AttributeNames))
	}
	if c.Facility == "" {
		return fmt.Errorf("transform config: facility filter value is empty")
	}
	return nil
}

// Header returns the seven published column names in final order.
func (c Config) Header() []string {
	return []string{
		KeyName,
		c.AttributeNames[0],
		c.AttributeNames[1],
		c.AttributeNames[2],
		QuantityName,
		c.AttributeNames[3],
		c.AttributeNames[4],
	}
}

// Row renders the record in the final published column order.
func (r Record) Row() []string {
	return []string{
		r.Key,
		r.Attributes[0],
		r.Attributes[1],
		r.Attributes[2],
		strconv.Itoa(r.Quantity),
		r.Attributes[3],
		r.Attributes[4],
	}
}

// Apply runs the full transform over the merged table rows. The result holds
// exactly one Record per distinct key, in first-occurrence order; attribute
// values are those of the first projected row for that key.
//
// An empty table (or one with no rows matching the facility filter) yields
// an empty result and no error. A configured index outside the table's
// column count fails with *ColumnIndexError.
func Apply(rows [][]string, columns int, cfg Config) ([]Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if cfg.FacilityColumn < 0 || cfg.FacilityColumn >= columns {
		return nil, &ColumnIndexError{Index: cfg.FacilityColumn, Columns: columns}
	}
	for _, idx := range cfg.Columns {
		if idx < 0 || idx >= columns {
			return nil, &ColumnIndexError{Index: idx, Columns: columns}
		}
	}

	// Insert-if-absent ordered map: first occurrence fixes the attributes,
	// later occurrences only bump the count.
	byKey := make(map[string]*Record)
	var ordered []*Record

	for _, row := range rows {
		if row[cfg.FacilityColumn] != cfg.Facility {
			continue
		}

		key := row[cfg.Columns[0]]
		rec, seen := byKey[key]
		if !seen {
			rec = &Record{Key: key}
			for i := 0; i < 5; i++ {
				rec.Attributes[i] = row[cfg.Columns[i+1]]
			}
			byKey[key] = rec
			ordered = append(ordered, rec)
		}
		rec.Quantity++
	}

	out := make([]Record, len(ordered))
	for i, rec := range ordered {
		out[i] = *rec
	}
	return out, nil
}
