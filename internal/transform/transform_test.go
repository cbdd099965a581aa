package transform

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func testConfig() Config {
	return Config{
		FacilityColumn: 12,
		Facility:       "SoC_SP_Cravinhos",
		Columns:        []int{0, 9, 15, 17, 2, 23},
		AttributeNames: []string{"Coluna9", "Coluna15", "Coluna17", "Coluna2", "Coluna23"},
	}
}

// wideRow builds a 24-column row with the key, facility and a marker value
// in every other cell so projections are distinguishable.
func wideRow(key, facility, marker string) []string {
	row := make([]string, 24)
	for i := range row {
		row[i] = fmt.Sprintf("%s-c%d", marker, i)
	}
	row[0] = key
	row[12] = facility
	return row
}

func TestApply_FilterAndCount(t *testing.T) {
	rows := [][]string{
		wideRow("K1", "SoC_SP_Cravinhos", "r1"),
		wideRow("K2", "Other", "r2"),
		wideRow("K1", "SoC_SP_Cravinhos", "r3"),
	}

	recs, err := Apply(rows, 24, testConfig())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(recs))
	}
	if recs[0].Key != "K1" {
		t.Errorf("Key = %q, want %q", recs[0].Key, "K1")
	}
	if recs[0].Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", recs[0].Quantity)
	}
}

func TestApply_FirstOccurrenceWins(t *testing.T) {
	rows := [][]string{
		wideRow("K1", "SoC_SP_Cravinhos", "first"),
		wideRow("K1", "SoC_SP_Cravinhos", "second"),
	}

	for run := 0; run < 3; run++ {
		recs, err := Apply(rows, 24, testConfig())
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got := recs[0].Attributes[0]; got != "first-c9" {
			t.Errorf("run %d: Attributes[0] = %q, want %q", run, got, "first-c9")
		}
	}
}

func TestApply_KeyUniquenessAndQuantitySum(t *testing.T) {
	var rows [][]string
	keys := []string{"A", "B", "A", "C", "B", "A"}
	for i, k := range keys {
		rows = append(rows, wideRow(k, "SoC_SP_Cravinhos", fmt.Sprintf("r%d", i)))
	}

	recs, err := Apply(rows, 24, testConfig())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	seen := map[string]bool{}
	sum := 0
	for _, r := range recs {
		if seen[r.Key] {
			t.Errorf("duplicate key %q in output", r.Key)
		}
		seen[r.Key] = true
		if r.Quantity < 1 {
			t.Errorf("key %q: Quantity = %d, want >= 1", r.Key, r.Quantity)
		}
		sum += r.Quantity
	}
	if sum != len(keys) {
		t.Errorf("sum(Quantity) = %d, want %d", sum, len(keys))
	}

	// First-occurrence order
	wantOrder := []string{"A", "B", "C"}
	for i, r := range recs {
		if r.Key != wantOrder[i] {
			t.Errorf("record %d key = %q, want %q", i, r.Key, wantOrder[i])
		}
	}
}

func TestApply_NoMatches(t *testing.T) {
	rows := [][]string{
		wideRow("K1", "Elsewhere", "r1"),
	}

	recs, err := Apply(rows, 24, testConfig())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(records) = %d, want 0", len(recs))
	}
}

func TestApply_EmptyInput(t *testing.T) {
	recs, err := Apply(nil, 0, testConfig())
	if err != nil {
		t.Fatalf("Apply() on empty table error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(records) = %d, want 0", len(recs))
	}
}

func TestApply_ColumnIndexOutOfRange(t *testing.T) {
	rows := [][]string{
		{"K1", "x", "y"},
	}

	cfg := testConfig() // indices up to 23, table has 3 columns
	_, err := Apply(rows, 3, cfg)
	var idxErr *ColumnIndexError
	if !errors.As(err, &idxErr) {
		t.Fatalf("Apply() error = %T, want *ColumnIndexError", err)
	}
	if idxErr.Columns != 3 {
		t.Errorf("ColumnIndexError.Columns = %d, want 3", idxErr.Columns)
	}
}

func TestHeaderAndRow_FinalColumnOrder(t *testing.T) {
	cfg := testConfig()

	wantHeader := []string{"Chave", "Coluna9", "Coluna15", "Coluna17", "Quantidade", "Coluna2", "Coluna23"}
	if got := cfg.Header(); !reflect.DeepEqual(got, wantHeader) {
		t.Errorf("Header() = %v, want %v", got, wantHeader)
	}

	rec := Record{
		Key:        "K1",
		Attributes: [5]string{"a1", "a2", "a3", "a4", "a5"},
		Quantity:   7,
	}
	wantRow := []string{"K1", "a1", "a2", "a3", "7", "a4", "a5"}
	if got := rec.Row(); !reflect.DeepEqual(got, wantRow) {
		t.Errorf("Row() = %v, want %v", got, wantRow)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"five columns", func(c *Config) { c.Columns = c.Columns[:5] }, true},
		{"four names", func(c *Config) { c.AttributeNames = c.AttributeNames[:4] }, true},
		{"empty facility", func(c *Config) { c.Facility = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
