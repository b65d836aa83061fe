package csv_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/transitarchive/gtfs/csv"
)

func open(t *testing.T, content string) *csv.File {
	t.Helper()
	f, err := csv.New("stops.txt", io.NopCloser(strings.NewReader(content)))
	if err != nil {
		t.Fatalf("failed to open test table: %s", err)
	}
	return f
}

func readAll(t *testing.T, f *csv.File) [][]string {
	t.Helper()
	var rows [][]string
	for f.NextRow() {
		row := make([]string, len(f.Headers()))
		for i := range row {
			row[i] = f.Cell(i)
		}
		rows = append(rows, row)
	}
	if err := f.Err(); err != nil {
		t.Fatalf("read error: %s", err)
	}
	return rows
}

func TestReadBasic(t *testing.T) {
	f := open(t, "stop_id,stop_name\na,Alpha\nb,Beta\n")
	if diff := cmp.Diff(f.Headers(), []string{"stop_id", "stop_name"}); diff != "" {
		t.Errorf("unexpected headers (-got, +want):\n%s", diff)
	}
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha"}, {"b", "Beta"}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestReadBOM(t *testing.T) {
	f := open(t, "\uFEFFstop_id,stop_name\na,Alpha\n")
	if got := f.ColumnIndex("stop_id"); got != 0 {
		t.Errorf("ColumnIndex(\"stop_id\") = %d, want 0; BOM not stripped", got)
	}
}

func TestHeaderWhitespaceTrimmed(t *testing.T) {
	f := open(t, "stop_id , stop_name\na,Alpha\n")
	if diff := cmp.Diff(f.Headers(), []string{"stop_id", "stop_name"}); diff != "" {
		t.Errorf("unexpected headers (-got, +want):\n%s", diff)
	}
}

func TestRaggedRowPadded(t *testing.T) {
	f := open(t, "stop_id,stop_name,stop_desc\na,Alpha\n")
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha", ""}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestEmptyRowEndsTable(t *testing.T) {
	f := open(t, "stop_id,stop_name\na,Alpha\n,\nb,Beta\n")
	rows := readAll(t, f)
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1: an empty row ends the table", len(rows))
	}
}

func TestBlankLineEndsTable(t *testing.T) {
	f := open(t, "stop_id,stop_name\na,Alpha\n\nb,Beta\n")
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha"}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestBlankCRLFLineEndsTable(t *testing.T) {
	f := open(t, "stop_id,stop_name\r\na,Alpha\r\n\r\nb,Beta\r\n")
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha"}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestBlankLineInsideQuotedCell(t *testing.T) {
	f := open(t, "stop_id,stop_name\na,\"Alpha\n\nthe first\"\nb,Beta\n")
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha\n\nthe first"}, {"b", "Beta"}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestQuotedCells(t *testing.T) {
	f := open(t, "stop_id,stop_name\na,\"Alpha, the first\"\n")
	rows := readAll(t, f)
	want := [][]string{{"a", "Alpha, the first"}}
	if diff := cmp.Diff(rows, want); diff != "" {
		t.Errorf("unexpected rows (-got, +want):\n%s", diff)
	}
}

func TestColumnIndexAbsent(t *testing.T) {
	f := open(t, "stop_id\na\n")
	if got := f.ColumnIndex("stop_name"); got != -1 {
		t.Errorf("ColumnIndex(\"stop_name\") = %d, want -1", got)
	}
}

func TestRowNumber(t *testing.T) {
	f := open(t, "stop_id\na\nb\n")
	var numbers []int
	for f.NextRow() {
		numbers = append(numbers, f.RowNumber())
	}
	if diff := cmp.Diff(numbers, []int{1, 2}); diff != "" {
		t.Errorf("unexpected row numbers (-got, +want):\n%s", diff)
	}
}

func TestEmptyFile(t *testing.T) {
	if _, err := csv.New("stops.txt", io.NopCloser(strings.NewReader(""))); err == nil {
		t.Errorf("expected an error for a file with no header")
	}
}

func TestWriterUsesLF(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, record := range [][]string{{"stop_id", "stop_name"}, {"a", "Alpha, the first"}} {
		if err := w.Write(record); err != nil {
			t.Fatalf("write error: %s", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush error: %s", err)
	}
	want := "stop_id,stop_name\na,\"Alpha, the first\"\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output %q, want %q", got, want)
	}
}
