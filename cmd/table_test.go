package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteFixedTableAlignsColumns(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeTable(&buf, "fixed", []string{"witness", "cost"}, [][]string{
		{"A", "0.0000"},
		{"W2", "1.5000"},
	})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "witness") || !strings.Contains(out, "W2") {
		t.Fatalf("fixed table missing expected content: %q", out)
	}
}

func TestWriteTableCSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeTable(&buf, "csv", []string{"witness", "cost"}, [][]string{
		{"A", "0.0000"},
	})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	want := "witness,cost\nA,0.0000\n"
	if buf.String() != want {
		t.Fatalf("csv table = %q, want %q", buf.String(), want)
	}
}

func TestWriteTableTSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeTable(&buf, "tsv", []string{"witness", "cost"}, [][]string{
		{"A", "0.0000"},
	})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	want := "witness\tcost\nA\t0.0000\n"
	if buf.String() != want {
		t.Fatalf("tsv table = %q, want %q", buf.String(), want)
	}
}

func TestWriteTableJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeTable(&buf, "json", []string{"witness", "cost"}, [][]string{
		{"A", "0.0000"},
	})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0]["witness"] != "A" || rows[0]["cost"] != "0.0000" {
		t.Fatalf("rows = %+v, want one row witness=A cost=0.0000", rows)
	}
}

func TestWriteTableUnknownFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := writeTable(&buf, "xml", nil, nil); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}
