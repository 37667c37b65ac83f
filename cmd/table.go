package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// writeTable renders rows (with header as the first row) in the requested
// format: "fixed" (aligned columns, the default), "csv", "tsv", or "json"
// (an array of objects keyed by header).
func writeTable(w io.Writer, format string, header []string, rows [][]string) error {
	switch format {
	case "", "fixed":
		return writeFixedTable(w, header, rows)
	case "csv":
		return writeDelimitedTable(w, header, rows, ',')
	case "tsv":
		return writeDelimitedTable(w, header, rows, '\t')
	case "json":
		return writeJSONTable(w, header, rows)
	default:
		return fmt.Errorf("unknown table format %q (want fixed, csv, tsv, or json)", format)
	}
}

func writeFixedTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeDelimitedTable(w io.Writer, header []string, rows [][]string, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeJSONTable(w io.Writer, header []string, rows [][]string) error {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		obj := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(row) {
				obj[col] = row[j]
			}
		}
		out[i] = obj
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
