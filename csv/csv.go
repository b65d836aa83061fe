// Package csv is a wrapper around the stdlib csv library tailored to GTFS
// tables: byte-order-mark tolerant reading, ragged row padding, and the
// LF/RFC 4180 output conventions the format requires.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/transitarchive/gtfs/constants"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File reads one GTFS table.
type File struct {
	name      constants.StaticFile
	csvReader *csv.Reader
	headers   []string
	headerMap map[string]int
	row       []string
	rowNumber int
	ioErr     error
	done      bool
	closer    func() error
}

// New reads the header row of a GTFS table and returns a File positioned
// before the first data row.
func New(name constants.StaticFile, reader io.ReadCloser) (*File, error) {
	csvReader := newTableReader(reader)
	csvReader.FieldsPerRecord = -1
	header, err := csvReader.Read()
	if err == io.EOF {
		reader.Close()
		return nil, fmt.Errorf("%s contains no rows", name)
	} else if err != nil {
		reader.Close()
		return nil, err
	}
	m := map[string]int{}
	for i, cell := range header {
		header[i] = strings.TrimSpace(cell)
		m[header[i]] = i
	}
	return &File{
		name:      name,
		csvReader: csvReader,
		headers:   header,
		headerMap: m,
		closer:    reader.Close,
	}, nil
}

func (f *File) Name() constants.StaticFile {
	return f.name
}

// Headers returns the header cells, in file order and with surrounding
// whitespace removed.
func (f *File) Headers() []string {
	return f.headers
}

// ColumnIndex returns the position of the named column in the header, or
// -1 if the header does not declare it.
func (f *File) ColumnIndex(name string) int {
	i, ok := f.headerMap[name]
	if !ok {
		return -1
	}
	return i
}

// NextRow advances to the next data row. It returns false at end of data,
// on a read error (see Err), and on a wholly empty row, which GTFS treats
// as the end of the table.
func (f *File) NextRow() bool {
	if f.done {
		return false
	}
	cells, err := f.csvReader.Read()
	if err == io.EOF {
		f.done = true
		return false
	}
	if err != nil {
		f.done = true
		f.ioErr = err
		return false
	}
	empty := true
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			empty = false
			break
		}
	}
	if empty {
		f.done = true
		return false
	}
	// Pad ragged rows so cells line up with the header.
	for len(cells) < len(f.headers) {
		cells = append(cells, "")
	}
	f.row = cells
	f.rowNumber++
	return true
}

// Cell returns the value of column i in the current row.
func (f *File) Cell(i int) string {
	if i < 0 || i >= len(f.row) {
		return ""
	}
	return f.row[i]
}

// RowNumber is the 1-based index of the current data row. The header row
// is not counted.
func (f *File) RowNumber() int {
	return f.rowNumber
}

func (f *File) Err() error {
	return f.ioErr
}

func (f *File) Close() error {
	closeErr := f.closer()
	if f.ioErr != nil {
		return f.ioErr
	}
	return closeErr
}

// Writer emits one GTFS table with LF line endings and RFC 4180 quoting.
type Writer struct {
	csvWriter *csv.Writer
}

func NewWriter(w io.Writer) *Writer {
	csvWriter := csv.NewWriter(w)
	csvWriter.UseCRLF = false
	return &Writer{csvWriter: csvWriter}
}

func (w *Writer) Write(record []string) error {
	return w.csvWriter.Write(record)
}

func (w *Writer) Flush() error {
	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// newTableReader builds the CSV reader for one table. The BOM override
// detects a UTF BOM (Byte Order Mark) at the start of the data and
// transforms to UTF8 accordingly (from: https://stackoverflow.com/a/76023436);
// if there is no BOM the data passes through unchanged. The tableEnd
// transformer then cuts the stream at the first blank line, which GTFS
// treats as the end of the table.
func newTableReader(reader io.Reader) *csv.Reader {
	transformer := transform.Chain(
		unicode.BOMOverride(encoding.Nop.NewDecoder()),
		&tableEnd{atBOL: true},
	)
	return csv.NewReader(transform.NewReader(reader, transformer))
}

// tableEnd passes bytes through until a wholly empty line appears
// outside of a quoted cell, then reports end of data. encoding/csv skips
// blank lines before a caller can see them, so the cut has to happen
// ahead of the parser.
type tableEnd struct {
	inQuotes bool
	atBOL    bool
	done     bool
}

func (t *tableEnd) Reset() {
	*t = tableEnd{atBOL: true}
}

func (t *tableEnd) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if t.done {
		return 0, len(src), nil
	}
	for nSrc < len(src) {
		c := src[nSrc]
		if t.atBOL && !t.inQuotes {
			if c == '\n' {
				t.done = true
				return nDst, len(src), nil
			}
			if c == '\r' {
				if nSrc+1 >= len(src) && !atEOF {
					// need the next byte to tell a blank CRLF line from
					// a stray carriage return
					return nDst, nSrc, transform.ErrShortSrc
				}
				if nSrc+1 < len(src) && src[nSrc+1] == '\n' {
					t.done = true
					return nDst, len(src), nil
				}
			}
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		switch c {
		case '"':
			t.inQuotes = !t.inQuotes
			t.atBOL = false
		case '\n':
			t.atBOL = true
		default:
			t.atBOL = false
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
